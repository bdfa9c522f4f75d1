package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/scoring"
	"github.com/nvandessel/darkforest/internal/session"
)

func printScenario(w io.Writer, index, total int, sc *catalog.Scenario) {
	fmt.Fprintf(w, "\nScenario %d of %d: %s\n", index+1, total, sc.Title)
	fmt.Fprintf(w, "  Cosmic:     %s\n", sc.Cosmic)
	fmt.Fprintf(w, "  Real world: %s\n", sc.RealWorld)
	if len(sc.Examples) > 0 {
		fmt.Fprintf(w, "  Examples:   %s\n", strings.Join(sc.Examples, "; "))
	}
}

func printChoices(w io.Writer, cat *catalog.Catalog) {
	for i, ch := range cat.Choices {
		fmt.Fprintf(w, "  [%d] %-18s %s (risk: %s)\n", i+1, ch.Label, ch.Theory, ch.Risk)
	}
}

func printDecision(w io.Writer, res *session.DecideResult) {
	d := res.Decision
	fmt.Fprintf(w, "\n%s on %s\n", d.ChoiceLabel, d.ScenarioTitle)
	fmt.Fprintf(w, "  Dark Forest view: %s\n", res.Consequence.DarkForest)
	fmt.Fprintf(w, "  Alternative:      %s\n", res.Consequence.Alternative)
	fmt.Fprintf(w, "  Outcome:          %s\n", res.Consequence.Outcome)
	fmt.Fprintf(w, "  Weights: cooperation +%.1f, caution +%.1f, aggression +%.1f (leans %s)\n",
		d.Weights.Cooperation, d.Weights.Caution, d.Weights.Aggression, scoring.Dominant(d.Choice))
}

func printScores(w io.Writer, s models.Session) {
	n := s.Scores.Normalized(s.DecisionCount)
	fmt.Fprintf(w, "  Cooperation: %6.2f (avg %.2f)\n", s.Scores.Cooperation, n.Cooperation)
	fmt.Fprintf(w, "  Caution:     %6.2f (avg %.2f)\n", s.Scores.Caution, n.Caution)
	fmt.Fprintf(w, "  Aggression:  %6.2f (avg %.2f)\n", s.Scores.Aggression, n.Aggression)
}

func printSession(w io.Writer, s models.Session) {
	fmt.Fprintf(w, "Session %s\n", s.ID)
	fmt.Fprintf(w, "  User:      %s\n", s.UserID)
	fmt.Fprintf(w, "  Context:   %s\n", s.Context)
	fmt.Fprintf(w, "  Step:      %s\n", s.Step)
	if s.Step == models.StepSimulation {
		fmt.Fprintf(w, "  Scenario:  %d\n", s.CurrentScenario+1)
	}
	fmt.Fprintf(w, "  Decisions: %d\n", s.DecisionCount)
	if s.RoomID != "" {
		fmt.Fprintf(w, "  Room:      %s\n", s.RoomID)
	}
	printScores(w, s)
	if s.Completed {
		printProfile(w, s.Profile)
	}
}

func printProfile(w io.Writer, p models.ProfileType) {
	md := profile.Describe(p)
	fmt.Fprintf(w, "\nProfile: %s\n", md.Label)
	fmt.Fprintf(w, "  %s\n", md.Description)
	fmt.Fprintf(w, "  Tendency: %s\n", md.Tendency)
}

func printRoomStatus(w io.Writer, st *session.RoomStatus) {
	r := st.Room
	state := "active"
	if !r.Active {
		state = "finished"
	}
	fmt.Fprintf(w, "Room %s (%s)\n", r.Name, r.ID)
	fmt.Fprintf(w, "  Context:  %s\n", r.Context)
	fmt.Fprintf(w, "  Scenario: %d\n", r.CurrentScenario+1)
	fmt.Fprintf(w, "  State:    %s\n", state)
	fmt.Fprintf(w, "  Participants (%d):\n", len(st.Participants))
	for _, p := range st.Participants {
		mark := " "
		if p.AwaitingAdvance {
			mark = "*"
		}
		line := fmt.Sprintf("    %s %-20s %s", mark, p.Participant.UserID, p.Step)
		if p.Profile != "" {
			line += " " + profile.Label(p.Profile)
		}
		fmt.Fprintln(w, line)
	}
	if len(st.Pending) > 0 {
		fmt.Fprintf(w, "  Waiting on: %s\n", strings.Join(st.Pending, ", "))
	}
}
