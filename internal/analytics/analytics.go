// Package analytics aggregates statistics across stored sessions.
package analytics

import (
	"context"
	"fmt"

	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/store"
)

// Stats summarizes all sessions. Averages and distributions cover completed
// sessions only.
type Stats struct {
	TotalSessions          int                        `json:"total_sessions"`
	CompletedSessions      int                        `json:"completed_sessions"`
	AverageCooperation     float64                    `json:"average_cooperation_score"`
	AverageCaution         float64                    `json:"average_caution_score"`
	AverageAggression      float64                    `json:"average_aggression_score"`
	ProfileDistribution    map[models.ProfileType]int `json:"profile_distribution"`
	ContextDistribution    map[models.Context]int     `json:"context_distribution"`
	CompletionRate         float64                    `json:"completion_rate"`
	AverageDecisionsPerRun float64                    `json:"average_decisions_per_run"`
}

// Compute derives Stats from sessions. With no completed sessions every
// average is zero and both distributions are empty.
func Compute(sessions []models.Session) Stats {
	st := Stats{
		TotalSessions:       len(sessions),
		ProfileDistribution: map[models.ProfileType]int{},
		ContextDistribution: map[models.Context]int{},
	}

	var sum models.Scores
	decisions := 0
	for _, s := range sessions {
		if !s.Completed {
			continue
		}
		st.CompletedSessions++
		sum.Cooperation += s.Scores.Cooperation
		sum.Caution += s.Scores.Caution
		sum.Aggression += s.Scores.Aggression
		decisions += s.DecisionCount
		if s.Profile != "" {
			st.ProfileDistribution[s.Profile]++
		}
		st.ContextDistribution[s.Context]++
	}

	if st.CompletedSessions == 0 {
		return st
	}
	n := float64(st.CompletedSessions)
	st.AverageCooperation = sum.Cooperation / n
	st.AverageCaution = sum.Caution / n
	st.AverageAggression = sum.Aggression / n
	st.AverageDecisionsPerRun = float64(decisions) / n
	st.CompletionRate = n / float64(st.TotalSessions)
	return st
}

// Load reads every session from s and computes Stats.
func Load(ctx context.Context, s store.Store) (Stats, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing sessions: %w", err)
	}
	return Compute(sessions), nil
}
