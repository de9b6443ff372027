// Package commands builds the scanforge cobra CLI, adapted from the
// teacher's cmd/pentora/commands/root.go: a persistent pre-run that loads
// configuration and sets the global log level, wired here onto
// pkg/config.Manager and pkg/logging instead of the DAG-engine AppManager.
package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/pkg/appctx"
	"github.com/scanforge/scanforge/pkg/config"
	"github.com/scanforge/scanforge/pkg/logging"
)

const cliExecutable = "scanforge"

// NewCommand constructs the top-level scanforge CLI command, wiring global
// flags and the configuration precedence chain before any subcommand runs.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		verbosityCount int
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "scanforge is a high-throughput, multi-host TCP/UDP port scanner",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			ctx := appctx.WithConfig(cmd.Context(), manager)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}

			level := parseVerbosity(manager.Get().Log.Level, verbosityCount, verbose)
			if err := logging.ConfigureGlobalLogging(level.String()); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (debug level)")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// parseVerbosity mirrors the teacher's root.go rule: --verbose forces debug,
// otherwise -v is repeatable (0=>configured level, 1=>info, 2+=>debug), and
// the configured log.level is the floor when no verbosity flag is given.
func parseVerbosity(configured string, count int, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	switch {
	case count <= 0:
		if lvl, err := zerolog.ParseLevel(configured); err == nil {
			return lvl
		}
		return zerolog.InfoLevel
	case count == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
