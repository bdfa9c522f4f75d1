package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/sanitize"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive a session one step at a time",
		Long: `Create and step through sessions without the interactive loop.
Each subcommand performs exactly one state transition.

Examples:
  darkforest session start --user alice --context business
  darkforest session begin <id>
  darkforest session decide <id> silence
  darkforest session advance <id>
  darkforest session show <id>`,
	}

	cmd.AddCommand(
		newSessionStartCmd(),
		newSessionContextCmd(),
		newSessionBeginCmd(),
		newSessionDecideCmd(),
		newSessionAdvanceCmd(),
		newSessionResetCmd(),
		newSessionShowCmd(),
		newSessionListCmd(),
	)

	return cmd
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// sessionResult prints a session after a transition.
func sessionResult(cmd *cobra.Command, a *app, s *models.Session, msg string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return printJSON(cmd, map[string]any{
			"session": s,
			"message": msg,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, msg)
	if s.Step == models.StepSimulation {
		if sc, err := a.catalog.Scenario(s.Context, s.CurrentScenario); err == nil {
			total, _ := a.catalog.ScenarioCount(s.Context)
			printScenario(out, s.CurrentScenario, total, sc)
		}
	}
	if s.Completed {
		printProfile(out, s.Profile)
	}
	return nil
}

func newSessionStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Create a session in the intro step",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			ctxName, _ := cmd.Flags().GetString("context")

			c, err := models.ParseContext(ctxName)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.manager.Start(ctx, sanitize.UserID(user), c)
				if err != nil {
					return err
				}
				return sessionResult(cmd, a, s, fmt.Sprintf("Created session %s", s.ID))
			})
		},
	}

	cmd.Flags().String("user", "", "Player identifier (default: anonymous)")
	cmd.Flags().String("context", string(models.ContextBusiness), "Context: business, philosophy, science or policy")

	return cmd
}

func newSessionContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <session-id> <context>",
		Short: "Change the context of a session that has not begun",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := models.ParseContext(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.manager.SelectContext(ctx, args[0], c)
				if err != nil {
					return err
				}
				return sessionResult(cmd, a, s, fmt.Sprintf("Context set to %s", c))
			})
		},
	}
}

func newSessionBeginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "begin <session-id>",
		Short: "Begin the simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.manager.Begin(ctx, args[0])
				if err != nil {
					return err
				}
				return sessionResult(cmd, a, s, "Simulation begun")
			})
		},
	}
}

func newSessionDecideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decide <session-id> <choice>",
		Short: "Record communicate, silence or escalate for the current scenario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			choice, err := parseChoiceInput(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.manager.Decide(ctx, args[0], choice)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, res)
				}
				printDecision(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newSessionAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <session-id>",
		Short: "Move past the decided scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.manager.Advance(ctx, args[0])
				if err != nil {
					return err
				}
				msg := "Advanced"
				if s.Completed {
					msg = "Simulation complete"
				}
				return sessionResult(cmd, a, s, msg)
			})
		},
	}
}

func newSessionResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Start a fresh session for the same user and context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.manager.Reset(ctx, args[0])
				if err != nil {
					return err
				}
				return sessionResult(cmd, a, s, fmt.Sprintf("Created session %s (replaces %s)", s.ID, args[0]))
			})
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				snap, err := a.manager.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, snap)
				}
				out := cmd.OutOrStdout()
				printSession(out, snap.Session)
				if len(snap.Decisions) > 0 {
					fmt.Fprintln(out, "\nDecisions:")
					for _, d := range snap.Decisions {
						fmt.Fprintf(out, "  %d. %-18s %s\n", d.ScenarioIndex+1, d.ChoiceLabel, d.ScenarioTitle)
					}
				}
				return nil
			})
		},
	}
}

func newSessionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			user, _ := cmd.Flags().GetString("user")
			user = sanitize.UserID(user)
			if user == "" {
				user = "anonymous"
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				sessions, err := a.manager.UserSessions(ctx, user)
				if err != nil {
					return err
				}
				if sessions == nil {
					sessions = []models.Session{}
				}
				if jsonOut {
					return printJSON(cmd, map[string]any{
						"user":     user,
						"sessions": sessions,
						"count":    len(sessions),
					})
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintf(out, "No sessions for %s.\n", user)
					return nil
				}
				for _, s := range sessions {
					status := string(s.Step)
					if s.Completed {
						status = profile.Label(s.Profile)
					}
					fmt.Fprintf(out, "%s  %-10s  %-14s  %s\n", s.ID, s.Context, status, s.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}

	cmd.Flags().String("user", "", "Player identifier (default: anonymous)")

	return cmd
}

// parseChoiceInput accepts a choice id or its 1-based position in the catalog.
func parseChoiceInput(s string) (models.Choice, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && i >= 1 && i <= len(models.Choices) {
		return models.Choices[i-1], nil
	}
	return models.ParseChoice(s)
}

// parseContextInput accepts a context id or its 1-based position.
func parseContextInput(s string) (models.Context, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && i >= 1 && i <= len(models.Contexts) {
		return models.Contexts[i-1], nil
	}
	return models.ParseContext(s)
}
