package main

import (
	"github.com/spf13/cobra"
)

var scoreForce bool

var scoreCmd = &cobra.Command{
	Use:   "score <lead-id>",
	Short: "Score a single lead and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreForce, "force", false,
		"Recompute even when the lead already has a score")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.scoring.ScoreLead(cmd.Context(), args[0], scoreForce)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outcome.Response())
}
