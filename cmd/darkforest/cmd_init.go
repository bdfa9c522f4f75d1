package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/darkforest/internal/pathutil"
	"github.com/nvandessel/darkforest/internal/store"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the .darkforest data directory",
		Long: `Create the .darkforest/ directory under the project root, its reports/
subdirectory and the session database.

Examples:
  darkforest init
  darkforest init --root ~/games/darkforest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			dataDir := store.LocalDataPath(root)
			reportsDir := filepath.Join(dataDir, pathutil.ReportsDirName)
			if err := os.MkdirAll(reportsDir, 0700); err != nil {
				return fmt.Errorf("failed to create %s: %w", reportsDir, err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dbPath := ""
			integrity := ""
			if sq, ok := a.store.(*store.SQLiteStore); ok {
				dbPath = sq.Path()
				if err := sq.CheckIntegrity(cmd.Context()); err != nil {
					return fmt.Errorf("database check failed: %w", err)
				}
				integrity = "ok"
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"status":      "initialized",
					"data_dir":    dataDir,
					"reports_dir": reportsDir,
					"database":    dbPath,
					"integrity":   integrity,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized %s\n", dataDir)
			fmt.Fprintf(out, "  Reports:  %s\n", reportsDir)
			if dbPath != "" {
				fmt.Fprintf(out, "  Database: %s (integrity %s)\n", dbPath, integrity)
			}
			return nil
		},
	}

	return cmd
}
