package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"omibyte.io/tasker/targets"
)

var (
	rootOpts = struct {
		verbose bool
		targets string
	}{}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rootCmd = &cobra.Command{
		Use:   "taskersim",
		Short: "Simulate the tasker scheduler on a host",
		Long:  "Run task scenarios on a simulated Cortex-M core and inspect the targets tasker supports.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rootOpts.verbose {
				logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
		},
		SilenceUsage: true,
	}
)

// targetTable returns the embedded targets unless a table file was given.
func targetTable() (targets.Targets, error) {
	if len(rootOpts.targets) == 0 {
		return targets.All(), nil
	}
	data, err := os.ReadFile(rootOpts.targets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetTableBad, err)
	}
	table, err := targets.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTargetTableBad, rootOpts.targets, err)
	}
	return table, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "log scheduler activity to stderr")
	rootCmd.PersistentFlags().StringVar(&rootOpts.targets, "targets", "", "target table to use instead of the built-in one")

	rootCmd.AddCommand(runCmd, targetsCmd, layoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
