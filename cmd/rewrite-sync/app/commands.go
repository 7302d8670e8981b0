// Package app provides the commands of the rewrite-sync CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/logging"
	"github.com/stacklok/rewrite-sync/internal/versions"
)

// NewRootCmd creates a new root command for rewrite-sync.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "rewrite-sync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Merge remote rewrite rule sources into one published document",
		Long: `rewrite-sync downloads rewrite rule documents from a fixed list of sources,
keeps a local snapshot of the sources marked cacheable, merges everything into
one document with a provenance header and publishes it to a git repository.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if viper.GetBool("debug") {
				slog.SetDefault(logging.New(logging.WithLevel(slog.LevelDebug)))
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rewrite-sync %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}

// loadConfig loads the configuration named by the --config flag, applying
// environment overrides. Without --config the defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	opts := []config.Option{config.WithEnvOverrides()}
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
