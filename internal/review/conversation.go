package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ethanasm/mcp-review/internal/gitctx"
	"github.com/ethanasm/mcp-review/internal/observe"
	"github.com/ethanasm/mcp-review/internal/providers"
	"github.com/ethanasm/mcp-review/internal/registry"
)

// DefaultMaxRounds is the number of tool rounds allowed before the model must
// answer.
const DefaultMaxRounds = 2

// ToolRouter lists and runs tools. *registry.Registry implements it.
type ToolRouter interface {
	AvailableTools() []registry.Capability
	CallTool(ctx context.Context, call registry.ToolCall) (registry.Result, error)
}

// Progress receives phase text during a review. Implementations must be safe
// to call from the goroutine running the review.
type Progress interface {
	SetText(text string)
}

// Input is the prefetched change under review.
type Input struct {
	Range   string
	Diff    string
	Stats   gitctx.DiffStats
	Commits []gitctx.CommitInfo
}

// Options configures a Conversation.
type Options struct {
	Model         string
	MaxTokens     int
	MaxRounds     int
	MaxDiffTokens int
	Focus         []string
	Rules         *Rules

	// Preload inlines the changed files when the diff was not truncated.
	Preload      bool
	MaxFiles     int
	MaxFileChars int
	Ignore       []string
	// Files is where preloaded files are read from, usually os.DirFS of the
	// repository root.
	Files fs.FS

	// Redact, when set, is applied to the diff, preloaded files and every
	// tool result before they enter the conversation.
	Redact func(string) string
	Logger *slog.Logger
}

// Conversation runs one review session against a provider.
type Conversation struct {
	provider providers.Provider
	tools    ToolRouter
	opts     Options
	log      *slog.Logger
}

// NewConversation creates a Conversation. tools may be nil, in which case the
// model is never offered any tools.
func NewConversation(provider providers.Provider, tools ToolRouter, opts Options) *Conversation {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.MaxDiffTokens <= 0 {
		opts.MaxDiffTokens = DefaultMaxDiffTokens
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Conversation{provider: provider, tools: tools, opts: opts, log: log}
}

type noProgress struct{}

func (noProgress) SetText(string) {}

// Run reviews in and returns the parsed result. Provider errors are fatal;
// tool failures are reported back to the model as error results.
func (c *Conversation) Run(ctx context.Context, in Input, progress Progress) (*Result, error) {
	if progress == nil {
		progress = noProgress{}
	}
	log := observe.Logger(ctx, c.log)

	progress.SetText("Reading diff")
	diff := c.redact(in.Diff)
	trunc := TruncateDiff(diff, c.opts.MaxDiffTokens)
	if trunc.Truncated {
		log.Info("diff truncated", "omitted", trunc.OmittedFiles, "total", trunc.TotalFiles)
	}

	var files []FileContent
	if c.opts.Preload && !trunc.Truncated && c.opts.Files != nil {
		progress.SetText("Loading changed files")
		paths := in.Stats.Paths()
		if len(paths) == 0 {
			paths = DiffPaths(in.Diff)
		}
		files = PreloadFiles(ctx, c.opts.Files, paths, PreloadOptions{
			Ignore:   c.opts.Ignore,
			MaxFiles: c.opts.MaxFiles,
			MaxChars: c.opts.MaxFileChars,
			Logger:   c.log,
		})
		for i := range files {
			files[i].Content = c.redact(files[i].Content)
		}
	}

	prompt := BuildInitialPrompt(PromptInput{
		Range:      in.Range,
		Diff:       trunc.Diff,
		Stats:      in.Stats,
		Commits:    in.Commits,
		Focus:      MergeFocus(c.opts.Focus, c.opts.Rules),
		Rules:      c.opts.Rules,
		Truncation: trunc,
		Files:      files,
	})

	var catalog []providers.Tool
	if c.tools != nil {
		for _, t := range c.tools.AvailableTools() {
			catalog = append(catalog, providers.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
	}

	messages := []providers.Message{providers.UserText(prompt)}
	var usage TokenUsage
	rounds := 0
	var final providers.Response

	for {
		var tools []providers.Tool
		if rounds < c.opts.MaxRounds {
			tools = catalog
		}
		if len(tools) > 0 {
			progress.SetText(fmt.Sprintf("Round %d/%d", rounds+1, c.opts.MaxRounds))
		} else {
			progress.SetText("Writing review...")
		}

		resp, err := c.call(ctx, rounds, messages, tools, progress)
		if err != nil {
			return nil, err
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.ProviderCalls++

		uses := resp.ToolUses()
		if resp.StopReason != providers.StopToolUse || len(tools) == 0 || len(uses) == 0 {
			final = resp
			break
		}

		messages = append(messages, providers.Message{Role: providers.RoleAssistant, Content: resp.Content})
		progress.SetText(fmt.Sprintf("Running %d tool calls", len(uses)))
		results := c.dispatch(ctx, uses)
		messages = append(messages, providers.Message{Role: providers.RoleUser, Content: results})
		rounds++
	}

	res, ok := ParseReview(final.Text())
	if !ok {
		log.Warn("model output had no parseable review block; using fallback")
	}
	res.ID = newResultID()
	res.Range = in.Range
	res.Model = c.opts.Model
	res.Stats = in.Stats
	res.TokenUsage = &usage
	res.TruncationNote = trunc.Note()
	return res, nil
}

func (c *Conversation) call(ctx context.Context, round int, messages []providers.Message, tools []providers.Tool, progress Progress) (providers.Response, error) {
	ctx, span := observe.StartSpan(ctx, "review.round")
	defer span.End()
	span.SetAttributes(
		attribute.Int("review.round", round),
		attribute.Int("review.tools", len(tools)),
		attribute.String("provider.name", c.provider.Name()),
	)

	resp, err := c.provider.Call(ctx, providers.Request{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    SystemPrompt(),
		Messages:  messages,
		Tools:     tools,
		Status:    progress.SetText,
	})
	if err != nil {
		observe.Fail(span, err)
		return providers.Response{}, fmt.Errorf("calling %s: %w", c.provider.Name(), err)
	}
	span.SetAttributes(
		attribute.String("provider.stop_reason", string(resp.StopReason)),
		attribute.Int("provider.input_tokens", resp.Usage.InputTokens),
		attribute.Int("provider.output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}

// dispatch runs every tool use concurrently and returns one result block per
// use, in the order the model asked for them.
func (c *Conversation) dispatch(ctx context.Context, uses []*providers.ToolUseBlock) []providers.Block {
	results := make([]providers.Block, len(uses))
	var g errgroup.Group
	for i, use := range uses {
		g.Go(func() error {
			results[i] = c.runTool(ctx, use)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Conversation) runTool(ctx context.Context, use *providers.ToolUseBlock) *providers.ToolResultBlock {
	block := &providers.ToolResultBlock{ToolUseID: use.ID}
	if c.tools == nil {
		block.Content = "Unknown tool: " + use.Name
		block.IsError = true
		return block
	}
	res, err := c.tools.CallTool(ctx, registry.ToolCall{Name: use.Name, Arguments: json.RawMessage(use.Input)})
	if err != nil {
		var serr *registry.ServerError
		if errors.As(err, &serr) {
			c.log.Warn("tool server failed", "server", serr.Server, "tool", use.Name, "err", serr.Err)
		} else {
			c.log.Warn("tool call failed", "tool", use.Name, "err", err)
		}
		block.Content = "Error: " + err.Error()
		block.IsError = true
		return block
	}
	block.Content = c.redact(res.Content)
	block.IsError = res.IsError
	return block
}

func (c *Conversation) redact(s string) string {
	if c.opts.Redact == nil {
		return s
	}
	return c.opts.Redact(s)
}
