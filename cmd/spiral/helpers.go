package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/config"
	"github.com/mikedesigns-nvisia/spiral-journal/internal/store"
)

var (
	dbPathOverride string
	jsonOutput     bool
)

// resolveStore opens the configured SQLite store with optional --db override.
func resolveStore() (*store.SQLiteStore, error) {
	path := dbPathOverride
	if path == "" {
		dbCfg, err := config.LoadDatabaseConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = dbCfg.Path
	}
	return store.NewSQLiteStore(path)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
