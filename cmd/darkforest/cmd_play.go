package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/sanitize"
	"github.com/spf13/cobra"
)

// errInputClosed is returned when stdin ends before the run finishes.
var errInputClosed = errors.New("input closed")

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a full simulation interactively",
		Long: `Run one session from intro to results, reading answers from stdin.

Answer each scenario with 1, 2 or 3 or with the choice id (communicate,
silence, escalate). If --context is omitted you are asked for one first.
An unfinished run stays stored and can be continued with the session
subcommands.

Examples:
  darkforest play --user alice --context science
  darkforest play --report --compress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			ctxName, _ := cmd.Flags().GetString("context")
			writeReport, _ := cmd.Flags().GetBool("report")
			compress, _ := cmd.Flags().GetBool("compress")

			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			return withApp(cmd, func(ctx context.Context, a *app) error {
				var c models.Context
				var err error
				if ctxName != "" {
					if c, err = models.ParseContext(ctxName); err != nil {
						return err
					}
				} else {
					if c, err = promptContext(in, out, a); err != nil {
						return err
					}
				}

				s, err := a.manager.Start(ctx, sanitize.UserID(user), c)
				if err != nil {
					return err
				}
				id := s.ID
				info, err := a.catalog.Context(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s (session %s)\n%s\n", info.Name, id, info.Description)

				if s, err = a.manager.Begin(ctx, id); err != nil {
					return err
				}
				total := len(info.Scenarios)

				for !s.Completed {
					printScenario(out, s.CurrentScenario, total, &info.Scenarios[s.CurrentScenario])
					choice, err := promptChoice(in, out, a)
					if err != nil {
						return fmt.Errorf("%w; session %s is saved at scenario %d", err, id, s.CurrentScenario+1)
					}

					res, err := a.manager.Decide(ctx, id, choice)
					if err != nil {
						return err
					}
					printDecision(out, res)

					if s, err = a.manager.Advance(ctx, id); err != nil {
						return err
					}
				}

				fmt.Fprintln(out, "\nFinal scores:")
				printScores(out, *s)
				printProfile(out, s.Profile)

				if writeReport {
					path, _, err := exportReport(ctx, a, id, "", compress || a.cfg.Report.Compress)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\nReport written to %s\n", path)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("user", "", "Player identifier (default: anonymous)")
	cmd.Flags().String("context", "", "Context: business, philosophy, science or policy (prompted when empty)")
	cmd.Flags().Bool("report", false, "Export a report when the run completes")
	cmd.Flags().Bool("compress", false, "Write the report as a checksummed archive")

	return cmd
}

// readLine prints label and returns the next non-empty input line.
func readLine(in *bufio.Scanner, out io.Writer, label string) (string, error) {
	for {
		fmt.Fprint(out, label)
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", errInputClosed
		}
		if line := strings.TrimSpace(in.Text()); line != "" {
			return line, nil
		}
	}
}

func promptContext(in *bufio.Scanner, out io.Writer, a *app) (models.Context, error) {
	fmt.Fprintln(out, "Choose a context:")
	for i, c := range a.catalog.Contexts {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, c.Name)
	}
	for {
		line, err := readLine(in, out, "> ")
		if err != nil {
			return "", err
		}
		c, err := parseContextInput(line)
		if err == nil {
			return c, nil
		}
		fmt.Fprintf(out, "Unknown context %q\n", line)
	}
}

func promptChoice(in *bufio.Scanner, out io.Writer, a *app) (models.Choice, error) {
	fmt.Fprintln(out, "\nYour response:")
	printChoices(out, a.catalog)
	for {
		line, err := readLine(in, out, "> ")
		if err != nil {
			return "", err
		}
		ch, err := parseChoiceInput(line)
		if err == nil {
			return ch, nil
		}
		fmt.Fprintf(out, "Unknown choice %q\n", line)
	}
}
