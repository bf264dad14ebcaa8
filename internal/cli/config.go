package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethanasm/mcp-review/internal/config"
)

var flagConfigProject bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, edit, and inspect configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file populated with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configTarget()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file already exists at %s\n", path)
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := config.SaveTo(path, config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one value in a configuration file",
	Long: `Change one value in the user configuration file, or in the project file
with --project. List values are comma-separated. Run 'mcp-review config keys'
for the accepted keys.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		path, err := configTarget()
		if err != nil {
			return err
		}
		// Only this file's values are rewritten; env and other layers stay out.
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := config.SetField(&cfg, key, value); err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if err := config.SaveTo(path, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration in effect here",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := config.ConfigPath()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "user:    %s%s\n", user, missingSuffix(user))
		fmt.Fprintf(out, "project: %s%s\n", config.ProjectFileName, missingSuffix(config.ProjectFileName))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys accepted by 'config set'",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range config.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
	},
}

// configTarget is the file init and set write to.
func configTarget() (string, error) {
	if flagConfigProject {
		return config.ProjectFileName, nil
	}
	return config.ConfigPath()
}

func missingSuffix(path string) string {
	if _, err := os.Stat(path); err != nil {
		return " (not found)"
	}
	return ""
}

func init() {
	for _, c := range []*cobra.Command{configInitCmd, configSetCmd} {
		c.Flags().BoolVar(&flagConfigProject, "project", false, "write "+config.ProjectFileName+" in the current directory instead of the user file")
	}
	configCmd.AddCommand(configInitCmd, configSetCmd, configShowCmd, configPathCmd, configKeysCmd)
}
