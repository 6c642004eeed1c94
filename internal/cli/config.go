package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/prrisk/internal/config"
)

var flagForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage prrisk configuration",
}

// configPath is the file the config subcommands read and write.
func configPath() string {
	path, _ := config.ResolvePath(flagConfig)
	return path
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.Init(path, flagForce); err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value by its dotted key, for example analysis.max_files or ai.model.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		cfg := config.Default()
		if err := config.LoadFile(&cfg, path, false); err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		if err := cfg.Validate(); err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}

		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("saving config: %w", err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
