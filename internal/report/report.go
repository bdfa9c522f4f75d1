// Package report turns a finished session into a portable results document
// and writes it to disk.
package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
)

// Report is the exported view of a completed session.
type Report struct {
	SessionID        string           `json:"session_id"`
	UserID           string           `json:"user_id"`
	ExportedAt       time.Time        `json:"exported_at"`
	Context          models.Context   `json:"context"`
	ContextName      string           `json:"context_name"`
	Profile          profile.Metadata `json:"profile"`
	FinalScores      models.Scores    `json:"final_scores"`
	NormalizedScores models.Scores    `json:"normalized_scores"`
	DecisionCount    int              `json:"decision_count"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Decisions        []Entry          `json:"detailed_decisions"`
	Critique         Critique         `json:"critique"`
}

// Entry describes one logged decision.
type Entry struct {
	ScenarioIndex    int                 `json:"scenario_index"`
	ScenarioTitle    string              `json:"scenario_title"`
	RealWorldAnalogy string              `json:"real_world_analogy"`
	ChoiceID         models.Choice       `json:"choice_id"`
	ChoiceLabel      string              `json:"choice_label"`
	WeightsApplied   models.WeightVector `json:"weights_applied"`
	Timestamp        time.Time           `json:"timestamp"`
}

// Critique pairs the general objections to Dark Forest reasoning with the
// counter-argument specific to the session's discipline.
type Critique struct {
	General    catalog.Criticisms `json:"general"`
	Discipline catalog.Critique   `json:"discipline"`
}

// Build assembles the report for a completed session. It performs no I/O.
// Decisions may be passed in any order; entries are emitted by scenario index.
func Build(cat *catalog.Catalog, sess *models.Session, decisions []models.Decision, exportedAt time.Time) (*Report, error) {
	if sess == nil {
		return nil, fmt.Errorf("building report: session is nil")
	}
	if !sess.Completed {
		return nil, &models.InvalidStateError{Op: "report", Step: sess.Step, Reason: "session is not complete"}
	}

	info, err := cat.Context(sess.Context)
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(decisions)
	slices.SortFunc(sorted, func(a, b models.Decision) int { return a.ScenarioIndex - b.ScenarioIndex })

	entries := make([]Entry, 0, len(sorted))
	for _, d := range sorted {
		if d.SessionID != sess.ID {
			return nil, fmt.Errorf("building report: decision %s belongs to session %s", d.ID, d.SessionID)
		}
		sc, err := cat.Scenario(sess.Context, d.ScenarioIndex)
		if err != nil {
			return nil, fmt.Errorf("building report: %w", err)
		}
		label := d.ChoiceLabel
		if label == "" {
			if ch, err := cat.Choice(d.Choice); err == nil {
				label = ch.Label
			}
		}
		title := d.ScenarioTitle
		if title == "" {
			title = sc.Title
		}
		entries = append(entries, Entry{
			ScenarioIndex:    d.ScenarioIndex,
			ScenarioTitle:    title,
			RealWorldAnalogy: sc.RealWorld,
			ChoiceID:         d.Choice,
			ChoiceLabel:      label,
			WeightsApplied:   d.Weights,
			Timestamp:        d.Timestamp.UTC(),
		})
	}

	p := sess.Profile
	if p == "" {
		p = profile.Classify(sess.Scores)
	}

	r := &Report{
		SessionID:        sess.ID,
		UserID:           sess.UserID,
		ExportedAt:       exportedAt.UTC(),
		Context:          sess.Context,
		ContextName:      info.Name,
		Profile:          profile.Describe(p),
		FinalScores:      sess.Scores,
		NormalizedScores: sess.Scores.Normalized(sess.DecisionCount),
		DecisionCount:    sess.DecisionCount,
		Decisions:        entries,
		Critique: Critique{
			General:    cat.Criticisms,
			Discipline: info.Critique,
		},
	}
	if sess.CompletedAt != nil {
		t := sess.CompletedAt.UTC()
		r.CompletedAt = &t
	}
	return r, nil
}
