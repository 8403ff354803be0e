package main

import (
	"context"
	"fmt"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/analysis"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [content]",
	Short: "Run the local heuristic analysis on a piece of text",
	Long:  "Analyze text with the deterministic lexicon fallback, without network access or a running server.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	heuristic := analysis.NewHeuristic()
	payload, _, err := heuristic.Call(ctx, args[0])
	if err != nil {
		return fmt.Errorf("heuristic analysis: %w", err)
	}

	result, err := analysis.ParseAnalysis("cli", payload, types.ProvenanceFallback)
	if err != nil {
		return fmt.Errorf("parse analysis: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Emotions:   %v\n", result.PrimaryEmotions)
	fmt.Fprintf(out, "Intensity:  %.2f\n", result.EmotionalIntensity)
	fmt.Fprintf(out, "Confidence: %.2f\n", result.Confidence)
	if len(result.CoreAdjustments) == 0 {
		fmt.Fprintln(out, "No core adjustments.")
		return nil
	}
	w := newTabWriter(out)
	fmt.Fprintln(w, "CORE\tADJUSTMENT")
	for _, id := range types.AllCoreIDs() {
		if adj, ok := result.CoreAdjustments[id]; ok {
			fmt.Fprintf(w, "%s\t%+.2f\n", id, adj)
		}
	}
	w.Flush()

	return nil
}
