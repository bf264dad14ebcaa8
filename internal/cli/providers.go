package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethanasm/mcp-review/internal/config"
	"github.com/ethanasm/mcp-review/internal/providers"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Provider shortcuts and credential checks",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider shortcuts",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDIALECT\tDEFAULT MODEL\tKEY\tENDPOINT")
		for _, s := range providers.Shortcuts() {
			key := s.APIKeyEnv
			if s.NoAuth {
				key = "(none)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Kind, s.Model, key, s.Endpoint)
		}
		w.Flush()
	},
}

var providersDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider configuration and credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		pcfg := providerConfig(cfg)
		resolved, err := providers.Resolve(pcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s, %s)...\n", resolved.Name, resolved.Model, resolved.Endpoint)

		p, err := providers.New(pcfg, os.Getenv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitUsageError
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		resp, err := p.Call(ctx, providers.Request{
			System:    "Respond with exactly: ok",
			Messages:  []providers.Message{providers.UserText("ping")},
			MaxTokens: 10,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding (%q)\n", resolved.Name, strings.TrimSpace(resp.Text()))
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersDoctorCmd)
	providersDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	providersDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
	providersDoctorCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Endpoint to check")
}
