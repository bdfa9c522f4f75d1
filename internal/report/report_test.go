package report

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/scoring"
)

var exportTime = time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)

// completedSession builds a finished session and its decision log for c.
func completedSession(t *testing.T, cat *catalog.Catalog, c models.Context, choices ...models.Choice) (*models.Session, []models.Decision) {
	t.Helper()
	sess := &models.Session{
		ID:        "sess-1",
		UserID:    "ana",
		Context:   c,
		Step:      models.StepResults,
		CreatedAt: exportTime.Add(-time.Hour),
	}
	var decisions []models.Decision
	for i, ch := range choices {
		w, err := scoring.ApplyChoice(c, ch)
		if err != nil {
			t.Fatalf("ApplyChoice(%s, %s) error = %v", c, ch, err)
		}
		sc, err := cat.Scenario(c, i)
		if err != nil {
			t.Fatalf("Scenario(%s, %d) error = %v", c, i, err)
		}
		info, _ := cat.Choice(ch)
		decisions = append(decisions, models.Decision{
			ID:            fmt.Sprintf("dec-%d", i),
			SessionID:     sess.ID,
			ScenarioIndex: i,
			ScenarioTitle: sc.Title,
			Choice:        ch,
			ChoiceLabel:   info.Label,
			Weights:       w,
			Timestamp:     exportTime.Add(time.Duration(i-len(choices)) * time.Minute),
		})
		sess.Scores = sess.Scores.Add(w)
	}
	sess.DecisionCount = len(decisions)
	sess.CurrentScenario = len(decisions)
	sess.Completed = true
	sess.Profile = profile.Classify(sess.Scores)
	done := exportTime.Add(-time.Second)
	sess.CompletedAt = &done
	return sess, decisions
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBuild(t *testing.T) {
	cat := catalog.MustDefault()
	sess, decisions := completedSession(t, cat, models.ContextBusiness,
		models.ChoiceEscalate, models.ChoiceEscalate, models.ChoiceSilence, models.ChoiceCommunicate)

	// Out of order input still yields entries by scenario index.
	shuffled := []models.Decision{decisions[2], decisions[0], decisions[3], decisions[1]}

	r, err := Build(cat, sess, shuffled, exportTime)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if r.SessionID != "sess-1" || r.UserID != "ana" {
		t.Errorf("identity = (%s, %s), want (sess-1, ana)", r.SessionID, r.UserID)
	}
	if !r.ExportedAt.Equal(exportTime) {
		t.Errorf("ExportedAt = %v, want %v", r.ExportedAt, exportTime)
	}
	if r.ContextName != "Business Strategy" {
		t.Errorf("ContextName = %q", r.ContextName)
	}
	if r.Profile.Type != models.ProfileDarkForestAdherent {
		t.Errorf("Profile.Type = %s, want %s", r.Profile.Type, models.ProfileDarkForestAdherent)
	}
	if r.Profile.Label != "Dark Forest Adherent" {
		t.Errorf("Profile.Label = %q", r.Profile.Label)
	}
	if r.FinalScores != sess.Scores {
		t.Errorf("FinalScores = %+v, want %+v", r.FinalScores, sess.Scores)
	}
	want := sess.Scores.Normalized(4)
	if !approx(r.NormalizedScores.Aggression, want.Aggression) ||
		!approx(r.NormalizedScores.Caution, want.Caution) ||
		!approx(r.NormalizedScores.Cooperation, want.Cooperation) {
		t.Errorf("NormalizedScores = %+v, want %+v", r.NormalizedScores, want)
	}

	if len(r.Decisions) != 4 {
		t.Fatalf("len(Decisions) = %d, want 4", len(r.Decisions))
	}
	for i, e := range r.Decisions {
		if e.ScenarioIndex != i {
			t.Errorf("Decisions[%d].ScenarioIndex = %d", i, e.ScenarioIndex)
		}
		if e.RealWorldAnalogy == "" {
			t.Errorf("Decisions[%d].RealWorldAnalogy is empty", i)
		}
		if e.WeightsApplied != decisions[i].Weights {
			t.Errorf("Decisions[%d].WeightsApplied = %+v, want %+v", i, e.WeightsApplied, decisions[i].Weights)
		}
	}
	if r.Decisions[0].ScenarioTitle != "STEALTH COMPETITOR INTELLIGENCE" {
		t.Errorf("Decisions[0].ScenarioTitle = %q", r.Decisions[0].ScenarioTitle)
	}
	if r.Decisions[0].ChoiceLabel != "PREEMPTIVE STRIKE" {
		t.Errorf("Decisions[0].ChoiceLabel = %q", r.Decisions[0].ChoiceLabel)
	}

	if len(r.Critique.General.Logical) == 0 || r.Critique.Discipline.Flaws == "" {
		t.Errorf("Critique not populated: %+v", r.Critique)
	}
}

func TestBuild_ZeroDecisions(t *testing.T) {
	cat := catalog.MustDefault()
	sess, _ := completedSession(t, cat, models.ContextScience)

	r, err := Build(cat, sess, nil, exportTime)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if r.NormalizedScores != (models.Scores{}) {
		t.Errorf("NormalizedScores = %+v, want zero", r.NormalizedScores)
	}
	if r.Profile.Type != models.ProfileDarkForestAdherent {
		t.Errorf("Profile.Type = %s, want %s", r.Profile.Type, models.ProfileDarkForestAdherent)
	}
	if len(r.Decisions) != 0 {
		t.Errorf("Decisions = %v, want empty", r.Decisions)
	}
}

func TestBuild_FillsMissingLabels(t *testing.T) {
	cat := catalog.MustDefault()
	sess, decisions := completedSession(t, cat, models.ContextPolicy, models.ChoiceSilence)
	decisions[0].ChoiceLabel = ""
	decisions[0].ScenarioTitle = ""

	r, err := Build(cat, sess, decisions, exportTime)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if r.Decisions[0].ChoiceLabel != "MAINTAIN SILENCE" {
		t.Errorf("ChoiceLabel = %q, want MAINTAIN SILENCE", r.Decisions[0].ChoiceLabel)
	}
	sc, _ := cat.Scenario(models.ContextPolicy, 0)
	if r.Decisions[0].ScenarioTitle != sc.Title {
		t.Errorf("ScenarioTitle = %q, want %q", r.Decisions[0].ScenarioTitle, sc.Title)
	}
}

func TestBuild_Errors(t *testing.T) {
	cat := catalog.MustDefault()

	t.Run("nil session", func(t *testing.T) {
		if _, err := Build(cat, nil, nil, exportTime); err == nil {
			t.Error("Build(nil) should fail")
		}
	})

	t.Run("incomplete session", func(t *testing.T) {
		sess := &models.Session{ID: "s", Context: models.ContextBusiness, Step: models.StepSimulation}
		_, err := Build(cat, sess, nil, exportTime)
		var stateErr *models.InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("Build() error = %v, want InvalidStateError", err)
		}
	})

	t.Run("foreign decision", func(t *testing.T) {
		sess, decisions := completedSession(t, cat, models.ContextBusiness, models.ChoiceSilence)
		decisions[0].SessionID = "other"
		if _, err := Build(cat, sess, decisions, exportTime); err == nil {
			t.Error("Build() should reject a decision from another session")
		}
	})

	t.Run("scenario out of range", func(t *testing.T) {
		sess, decisions := completedSession(t, cat, models.ContextBusiness, models.ChoiceSilence)
		decisions[0].ScenarioIndex = 99
		if _, err := Build(cat, sess, decisions, exportTime); err == nil {
			t.Error("Build() should reject an unknown scenario index")
		}
	})
}
