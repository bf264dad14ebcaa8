package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethanasm/mcp-review/internal/cache"
	"github.com/ethanasm/mcp-review/internal/config"
)

var flagCacheJSON bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear stored review results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored review result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Clearing works even when caching is switched off in config.
		c, err := loadCache(true)
		if err != nil {
			return err
		}
		removed, err := c.Clear()
		if err != nil {
			return fmt.Errorf("clearing %s: %w", c.Dir(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries removed).\n", removed)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print cache location and usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCache(false)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !c.Enabled() {
			fmt.Fprintln(out, "Cache is disabled.")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading cache stats: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if flagCacheJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		return printStats(out, stats)
	},
}

// loadCache opens the configured cache. force opens it even if disabled.
func loadCache(force bool) (*cache.Cache, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	enabled := cfg.Cache.Enabled || force
	c, err := cache.New(enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func printStats(w io.Writer, s cache.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Directory:\t%s\n", s.Dir)
	fmt.Fprintf(tw, "Entries:\t%d\n", s.Entries)
	fmt.Fprintf(tw, "Expired:\t%d\n", s.Expired)
	fmt.Fprintf(tw, "Size:\t%d bytes\n", s.TotalBytes)
	return tw.Flush()
}

func init() {
	cacheShowCmd.Flags().BoolVar(&flagCacheJSON, "json", false, "print statistics as JSON")
	cacheCmd.AddCommand(cacheClearCmd, cacheShowCmd)
}
