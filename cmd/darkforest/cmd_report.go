package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nvandessel/darkforest/internal/pathutil"
	"github.com/nvandessel/darkforest/internal/report"
	"github.com/nvandessel/darkforest/internal/store"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export and inspect result reports",
		Long: `Export a completed session as a JSON report, or as a checksummed
gzip archive with --compress, and verify or read exported files.

Examples:
  darkforest report export <session-id>
  darkforest report export <session-id> --compress
  darkforest report verify .darkforest/reports/dark_forest_results_2026-05-04_<session>.json.gz
  darkforest report show .darkforest/reports/dark_forest_results_2026-05-04_<session>.json`,
	}

	cmd.AddCommand(
		newReportExportCmd(),
		newReportVerifyCmd(),
		newReportShowCmd(),
	)

	return cmd
}

// reportDir is the configured report directory or <root>/.darkforest/reports.
func (a *app) reportDir() string {
	if a.cfg.Report.Dir != "" {
		return a.cfg.Report.Dir
	}
	return filepath.Join(store.LocalDataPath(a.root), pathutil.ReportsDirName)
}

// exportReport builds the report for a completed session and writes it to
// output, or to the default file in the report directory when output is empty.
func exportReport(ctx context.Context, a *app, sessionID, output string, compress bool) (string, *report.Report, error) {
	snap, err := a.manager.Snapshot(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	r, err := report.Build(a.catalog, &snap.Session, snap.Decisions, a.now())
	if err != nil {
		return "", nil, err
	}
	path, err := report.Export(r, report.ExportOptions{
		Path:     output,
		Dir:      a.reportDir(),
		Compress: compress,
	})
	if err != nil {
		return "", nil, fmt.Errorf("report export failed: %w", err)
	}
	return path, r, nil
}

func newReportExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the report for a completed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			compress, _ := cmd.Flags().GetBool("compress")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				compress = compress || a.cfg.Report.Compress
				path, r, err := exportReport(ctx, a, args[0], output, compress)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, map[string]any{
						"path":       path,
						"compressed": compress,
						"session_id": r.SessionID,
						"profile":    r.Profile.Type,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report for %s (%s) written to %s\n", r.SessionID, r.Profile.Label, path)
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: <report dir>/dark_forest_results_<date>_<session>.json)")
	cmd.Flags().Bool("compress", false, "Write a checksummed gzip archive")

	return cmd
}

func newReportVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a report archive checksum",
		Long: `Check the SHA-256 checksum recorded in a report archive header.
Plain JSON reports carry no checksum.

Examples:
  darkforest report verify .darkforest/reports/dark_forest_results_2026-05-04_<session>.json.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			hdr, err := report.Verify(filePath)
			if err != nil {
				if jsonOut {
					if encErr := printJSON(cmd, map[string]any{
						"file":    filePath,
						"valid":   false,
						"error":   err.Error(),
						"message": "Checksum verification FAILED",
					}); encErr != nil {
						return encErr
					}
				} else {
					fmt.Fprintf(out, "FAILED: %v\n", err)
					fmt.Fprintf(out, "  File: %s\n", filePath)
				}
				return fmt.Errorf("checksum verification failed")
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"file":    filePath,
					"valid":   true,
					"header":  hdr,
					"message": "Checksum OK",
				})
			}
			fmt.Fprintf(out, "OK: checksum verified\n")
			fmt.Fprintf(out, "  File:      %s\n", filePath)
			fmt.Fprintf(out, "  Session:   %s\n", hdr.SessionID)
			fmt.Fprintf(out, "  Decisions: %d\n", hdr.DecisionCount)
			return nil
		},
	}
}

func newReportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print an exported report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var r *report.Report
			var err error
			if strings.HasSuffix(args[0], ".gz") {
				r, _, err = report.ReadArchive(args[0])
			} else {
				r, err = report.Read(args[0])
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, r)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (%s, %s)\n", r.SessionID, r.UserID, r.ContextName)
			fmt.Fprintf(out, "  Exported: %s\n", r.ExportedAt.Format("2006-01-02 15:04 MST"))
			for _, d := range r.Decisions {
				fmt.Fprintf(out, "  %d. %-18s %s\n", d.ScenarioIndex+1, d.ChoiceLabel, d.ScenarioTitle)
			}
			fmt.Fprintf(out, "  Scores: cooperation %.2f, caution %.2f, aggression %.2f\n",
				r.FinalScores.Cooperation, r.FinalScores.Caution, r.FinalScores.Aggression)
			fmt.Fprintf(out, "\nProfile: %s\n  %s\n", r.Profile.Label, r.Profile.Description)
			return nil
		},
	}
}
