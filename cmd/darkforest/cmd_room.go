package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/sanitize"
	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Play a context together in a multiplayer room",
		Long: `Rooms hold several participants on one context. Everyone joins before
the first advance, decides each scenario with "session decide", and the
room advances all participants together once nobody is pending.

Examples:
  darkforest room create --name "Team Red" --context policy --by alice
  darkforest room join <room-id> --user bob
  darkforest room show <room-id>
  darkforest room advance <room-id>`,
	}

	cmd.AddCommand(
		newRoomCreateCmd(),
		newRoomJoinCmd(),
		newRoomAdvanceCmd(),
		newRoomShowCmd(),
		newRoomListCmd(),
	)

	return cmd
}

func newRoomCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			name, _ := cmd.Flags().GetString("name")
			ctxName, _ := cmd.Flags().GetString("context")
			by, _ := cmd.Flags().GetString("by")

			c, err := models.ParseContext(ctxName)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				room, err := a.manager.CreateRoom(ctx, sanitize.RoomName(name), c, sanitize.UserID(by))
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, room)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created room %q (%s) for %s\n", room.Name, room.ID, room.Context)
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "Display name (default: room-<id prefix>)")
	cmd.Flags().String("context", string(models.ContextBusiness), "Shared context")
	cmd.Flags().String("by", "", "Creator user id (default: anonymous)")

	return cmd
}

func newRoomJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a room and create the participant's session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			user, _ := cmd.Flags().GetString("user")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.manager.JoinRoom(ctx, args[0], sanitize.UserID(user))
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s joined %q with session %s\n", res.Participant.UserID, res.Room.Name, res.Session.ID)
				return nil
			})
		},
	}

	cmd.Flags().String("user", "", "Joining user id (default: anonymous)")

	return cmd
}

func newRoomAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <room-id>",
		Short: "Advance every participant once all have decided",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				st, err := a.manager.AdvanceRoom(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, st)
				}
				printRoomStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newRoomShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <room-id>",
		Short: "Show participant progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				st, err := a.manager.RoomStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, st)
				}
				printRoomStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newRoomListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active rooms, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rooms, err := a.manager.ActiveRooms(ctx)
				if err != nil {
					return err
				}
				if rooms == nil {
					rooms = []models.Room{}
				}
				if jsonOut {
					return printJSON(cmd, map[string]any{"rooms": rooms, "count": len(rooms)})
				}
				out := cmd.OutOrStdout()
				if len(rooms) == 0 {
					fmt.Fprintln(out, "No active rooms.")
					return nil
				}
				for _, r := range rooms {
					fmt.Fprintf(out, "%s  %-24s  %-10s  scenario %d\n", r.ID, r.Name, r.Context, r.CurrentScenario+1)
				}
				return nil
			})
		},
	}
}
