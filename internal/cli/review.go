package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ethanasm/mcp-review/internal/cache"
	"github.com/ethanasm/mcp-review/internal/config"
	"github.com/ethanasm/mcp-review/internal/gitctx"
	"github.com/ethanasm/mcp-review/internal/host"
	"github.com/ethanasm/mcp-review/internal/output"
	"github.com/ethanasm/mcp-review/internal/providers"
	"github.com/ethanasm/mcp-review/internal/redact"
	"github.com/ethanasm/mcp-review/internal/review"
)

const defaultRange = "HEAD~1..HEAD"

// Review flags
var (
	flagStaged         bool
	flagProvider       string
	flagModel          string
	flagEndpoint       string
	flagFocus          string
	flagFormat         string
	flagOut            string
	flagMaxFiles       int
	flagNoCache        bool
	flagNoRedact       bool
	flagFailOnCritical bool
)

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagStaged, "staged", false, "Review staged changes instead of a commit range")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider or shortcut (see 'providers list')")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Provider API base URL")
	cmd.Flags().StringVar(&flagFocus, "focus", "", "Focus areas (comma-separated: "+strings.Join(review.FocusAreas(), ", ")+")")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format ("+strings.Join(config.Formats, ", ")+")")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "Maximum changed files to preload")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Skip the review cache")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagFailOnCritical, "fail-on-critical", false, "Exit 1 when the review reports critical issues")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagEndpoint != "" {
		m["endpoint"] = flagEndpoint
	}
	if flagFocus != "" {
		m["focus"] = flagFocus
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagMaxFiles > 0 {
		m["maxFiles"] = strconv.Itoa(flagMaxFiles)
	}
	return m
}

func providerConfig(cfg config.Config) providers.Config {
	return providers.Config{
		Provider:  cfg.Provider,
		Kind:      providers.Kind(cfg.ProviderKind),
		Model:     cfg.Model,
		Endpoint:  cfg.Endpoint,
		APIKeyEnv: cfg.APIKeyEnv,
	}
}

// reviewTarget is what to diff: a revision range or the index.
type reviewTarget struct {
	label    string
	from, to string
	staged   bool
}

func parseTarget(args []string, staged bool) (reviewTarget, error) {
	if staged {
		if len(args) > 0 {
			return reviewTarget{}, fmt.Errorf("--staged does not take a range")
		}
		return reviewTarget{label: "staged", staged: true}, nil
	}
	rng := defaultRange
	if len(args) > 0 {
		rng = args[0]
	}
	from, to, err := gitctx.ParseRange(rng)
	if err != nil {
		return reviewTarget{}, err
	}
	return reviewTarget{label: from + ".." + to, from: from, to: to}, nil
}

// serverSpecs points the bundled servers at the binary installed next to
// this one, when there is one, and roots them at the repository.
func serverSpecs(servers []config.Server, root string) []config.Server {
	bundled := bundledServerCommand()
	out := make([]config.Server, 0, len(servers))
	for _, s := range servers {
		if s.Command == config.ServerCommand {
			s.Command = bundled
			if !slices.Contains(s.Args, "--root") {
				s.Args = append(slices.Clone(s.Args), "--root", root)
			}
		}
		out = append(out, s)
	}
	return out
}

func bundledServerCommand() string {
	exe, err := os.Executable()
	if err != nil {
		return config.ServerCommand
	}
	sibling := filepath.Join(filepath.Dir(exe), config.ServerCommand)
	if _, err := os.Stat(sibling); err == nil {
		return sibling
	}
	return config.ServerCommand
}

// excludePathspecs turns ignore globs into git pathspecs.
func excludePathspecs(ignore []string) []string {
	var out []string
	for _, p := range ignore {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, ":(exclude,glob)"+p)
		}
	}
	return out
}

// filterStats drops ignored files and recomputes the totals.
func filterStats(stats gitctx.DiffStats, ignore []string) gitctx.DiffStats {
	out := gitctx.DiffStats{}
	for _, f := range stats.Files {
		if gitctx.ShouldIgnoreFile(f.Path, ignore) {
			continue
		}
		out.Files = append(out.Files, f)
		out.FilesChanged++
		out.Insertions += f.Insertions
		out.Deletions += f.Deletions
	}
	return out
}

// prefetch gathers the diff, its stats and the commit messages of target.
// It is run alongside host initialization.
func prefetch(ctx context.Context, g *errgroup.Group, repo gitctx.Repo, target reviewTarget, cfg config.Config, in *review.Input) {
	in.Range = target.label
	opts := gitctx.DiffOptions{ContextLines: cfg.ContextLines, Paths: excludePathspecs(cfg.Ignore)}

	g.Go(func() error {
		var err error
		if target.staged {
			in.Diff, err = repo.GetStagedDiff(ctx, opts)
		} else {
			in.Diff, err = repo.GetDiff(ctx, target.from, target.to, opts)
		}
		return err
	})
	g.Go(func() error {
		var stats gitctx.DiffStats
		var err error
		if target.staged {
			stats, err = repo.GetStagedDiffStats(ctx)
		} else {
			stats, err = repo.GetDiffStats(ctx, target.from, target.to)
		}
		if err != nil {
			return err
		}
		in.Stats = filterStats(stats, cfg.Ignore)
		return nil
	})
	if target.staged {
		return
	}
	g.Go(func() error {
		commits, err := repo.GetCommitMessages(ctx, target.from, target.to)
		if err != nil {
			logger.Warn("reading commit messages", "range", target.label, "error", err)
			return nil
		}
		in.Commits = commits
		return nil
	})
}

func runReview(ctx context.Context, target reviewTarget, cfg config.Config) {
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}
	if flagNoCache {
		cfg.Cache.Enabled = false
	}

	pcfg := providerConfig(cfg)
	resolved, err := providers.Resolve(pcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}
	provider, err := providers.New(pcfg, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if providers.IsAuthError(err) {
			exitCode = ExitAuthError
		} else {
			exitCode = ExitUsageError
		}
		return
	}
	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitUsageError
		return
	}

	repo := gitctx.Open("")
	root, err := repo.Root(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	opts := review.Options{
		Model:         resolved.Model,
		MaxTokens:     cfg.MaxTokens,
		MaxRounds:     cfg.MaxRounds,
		MaxDiffTokens: cfg.MaxDiffTokens,
		Focus:         review.MergeFocus(cfg.Focus, rules),
		Rules:         rules,
		Preload:       cfg.Preload,
		MaxFiles:      cfg.MaxFiles,
		Ignore:        cfg.Ignore,
		Files:         os.DirFS(root),
		Logger:        logger,
	}
	if cfg.Privacy.RedactSecrets {
		opts.Redact = redact.Text
	}

	h := host.New(host.Options{
		Servers:       serverSpecs(cfg.Servers, root),
		Provider:      provider,
		Review:        opts,
		Cacheable:     cfg.CacheableTools,
		TokenBudget:   cfg.TokenBudget,
		ClientVersion: version,
		Logger:        logger,
	})
	defer func() {
		if err := h.Shutdown(); err != nil {
			logger.Debug("shutting down tool servers", "error", err)
		}
	}()

	status := newStatusLine(os.Stderr)
	status.SetText("Starting tool servers and reading changes")

	var in review.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Initialize(gctx) })
	prefetch(gctx, g, repo, target, cfg, &in)
	if err := g.Wait(); err != nil {
		status.Fail("could not prepare review")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}
	if len(h.Servers()) == 0 && len(cfg.Servers) > 0 {
		logger.Warn("no tool servers available, reviewing without tools")
	}

	if strings.TrimSpace(in.Diff) == "" {
		status.Clear()
		fmt.Fprintf(os.Stderr, "No changes to review in %s.\n", target.label)
		return
	}

	c := openCache(cfg)
	if res, ok := c.GetCachedReview(in.Diff, cfg, resolved.Model); ok {
		status.Clear()
		logger.Debug("using cached review", "id", res.ID)
		finish(res, cfg)
		return
	}

	res, err := h.RunReview(ctx, in, status)
	if err != nil {
		status.Fail("review failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if providers.IsAuthError(err) {
			exitCode = ExitAuthError
		} else {
			exitCode = ExitRuntimeError
		}
		return
	}
	status.Clear()

	if err := c.CacheReview(in.Diff, cfg, resolved.Model, res); err != nil {
		logger.Warn("caching review", "error", err)
	}
	finish(res, cfg)
}

func openCache(cfg config.Config) *cache.Cache {
	c, err := cache.FromConfig(cfg)
	if err != nil {
		logger.Warn("review cache unavailable", "error", err)
		c, _ = cache.New(false, "", 0)
	}
	return c
}

func finish(res *review.Result, cfg config.Config) {
	if err := output.WriteResult(res, cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}
	if flagFailOnCritical && res.HasCritical() {
		exitCode = ExitFindings
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review [range]",
	Short: "Review a commit range (default " + defaultRange + ") or staged changes",
	Long: "Review code changes using an LLM provider. The range argument takes the " +
		"form from..to; a bare revision means rev..HEAD.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args, flagStaged)
		if err != nil {
			return err
		}
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		runReview(ctx, target, cfg)
		return nil
	},
}

func init() {
	addReviewFlags(reviewCmd)
}
