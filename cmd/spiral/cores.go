package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var coresCmd = &cobra.Command{
	Use:   "cores",
	Short: "Show the current emotional core levels",
	Args:  cobra.NoArgs,
	RunE:  runCores,
}

func init() {
	coresCmd.Flags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and SPIRAL_DB_PATH)")
	coresCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(coresCmd)
}

func runCores(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cores, err := db.GetAllCores(ctx)
	if err != nil {
		return fmt.Errorf("read cores: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"cores": cores})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "CORE\tLEVEL\tTREND\tMILESTONES\tLAST UPDATED")
	for _, c := range cores {
		milestones := "-"
		if len(c.Milestones) > 0 {
			parts := make([]string, len(c.Milestones))
			for i, m := range c.Milestones {
				parts[i] = fmt.Sprintf("%.2f", m)
			}
			milestones = strings.Join(parts, ",")
		}
		fmt.Fprintf(w, "%s\t%.3f\t%s\t%s\t%s\n",
			c.ID,
			c.CurrentLevel,
			c.Trend,
			milestones,
			c.LastUpdated.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}
