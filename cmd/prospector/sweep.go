package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a batch sweep once and print its summary",
	Long:  "Run a sweep without the HTTP server, for schedulers that prefer launching a process.",
}

var sweepRescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Force re-score every lead of every user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, func(ctx context.Context, a *app) (any, error) {
			return a.sweeper.RescoreAll(ctx)
		})
	},
}

var sweepFocusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Generate today's focus list for every user that lacks one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, func(ctx context.Context, a *app) (any, error) {
			return a.sweeper.GenerateDailyFocus(ctx)
		})
	},
}

func init() {
	sweepCmd.AddCommand(sweepRescoreCmd)
	sweepCmd.AddCommand(sweepFocusCmd)
}

func runSweep(cmd *cobra.Command, sweep func(ctx context.Context, a *app) (any, error)) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := sweep(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
