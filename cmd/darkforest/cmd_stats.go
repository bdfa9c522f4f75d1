package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/darkforest/internal/analytics"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics across stored sessions",
		Long: `Summarize every stored session: completion rate, average scores of
completed runs, and how profiles and contexts are distributed.

Examples:
  darkforest stats
  darkforest stats --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				st, err := analytics.Load(ctx, a.store)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, st)
				}

				out := cmd.OutOrStdout()
				if st.TotalSessions == 0 {
					fmt.Fprintln(out, "No sessions found.")
					return nil
				}

				fmt.Fprintf(out, "Sessions:   %d total, %d completed (%.0f%%)\n",
					st.TotalSessions, st.CompletedSessions, st.CompletionRate*100)
				if st.CompletedSessions == 0 {
					return nil
				}
				fmt.Fprintf(out, "Decisions:  %.1f per completed run\n", st.AverageDecisionsPerRun)
				fmt.Fprintf(out, "Averages:   cooperation %.2f, caution %.2f, aggression %.2f\n",
					st.AverageCooperation, st.AverageCaution, st.AverageAggression)

				fmt.Fprintln(out, "\nProfiles:")
				for _, p := range models.ProfileTypes {
					if n := st.ProfileDistribution[p]; n > 0 {
						fmt.Fprintf(out, "  %-24s %d\n", profile.Label(p), n)
					}
				}

				fmt.Fprintln(out, "\nContexts:")
				for _, c := range a.catalog.Contexts {
					if n := st.ContextDistribution[c.ID]; n > 0 {
						fmt.Fprintf(out, "  %-24s %d\n", c.Name, n)
					}
				}
				return nil
			})
		},
	}

	return cmd
}
