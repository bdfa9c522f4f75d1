package main

import (
	"fmt"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [context]",
		Short: "List contexts and choices, or the scenarios of one context",
		Long: `Without arguments, list the four contexts and the three choices.
With a context, print its scenarios in play order and its critique.

Examples:
  darkforest catalog
  darkforest catalog science
  darkforest catalog policy --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cat, err := catalog.Default()
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if jsonOut {
					return printJSON(cmd, map[string]any{
						"contexts":   cat.Contexts,
						"choices":    cat.Choices,
						"criticisms": cat.Criticisms,
					})
				}
				fmt.Fprintln(out, "Contexts:")
				for _, c := range cat.Contexts {
					fmt.Fprintf(out, "  %-11s %s: %s\n", c.ID, c.Name, c.Description)
				}
				fmt.Fprintln(out, "\nChoices:")
				printChoices(out, cat)
				return nil
			}

			c, err := models.ParseContext(args[0])
			if err != nil {
				return err
			}
			info, err := cat.Context(c)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, info)
			}
			fmt.Fprintf(out, "%s\n%s\n", info.Name, info.Description)
			for i := range info.Scenarios {
				printScenario(out, i, len(info.Scenarios), &info.Scenarios[i])
			}
			if info.Critique.Flaws != "" {
				fmt.Fprintf(out, "\nCritique: %s\n", info.Critique.Flaws)
			}
			return nil
		},
	}

	return cmd
}
