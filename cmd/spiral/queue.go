package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the offline analysis queue",
	Args:  cobra.NoArgs,
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and SPIRAL_DB_PATH)")
	queueCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := db.ListQueue(ctx)
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"queue": items,
			"total": len(items),
		})
	}

	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ENTRY\tENQUEUED\tATTEMPTS\tSTATUS")
	for _, item := range items {
		status := "pending"
		if item.Abandoned {
			status = "abandoned"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			item.EntryID,
			item.EnqueuedAt.Format("2006-01-02 15:04"),
			item.Attempts,
			status,
		)
	}
	w.Flush()

	return nil
}
