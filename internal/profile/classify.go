// Package profile assigns a categorical profile to a score triple.
package profile

import "github.com/nvandessel/darkforest/internal/models"

// Metadata is the human-facing description of a profile type.
type Metadata struct {
	Type        models.ProfileType `json:"type"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	Tendency    string             `json:"tendency"`
}

var metadata = map[models.ProfileType]Metadata{
	models.ProfileDarkForestAdherent: {
		Type:        models.ProfileDarkForestAdherent,
		Label:       "Dark Forest Adherent",
		Description: "You prioritize eliminating threats preemptively, embodying core Dark Forest logic",
		Tendency:    "Assumes hostile intent and acts first to ensure survival",
	},
	models.ProfileCollaborativeOptimist: {
		Type:        models.ProfileCollaborativeOptimist,
		Label:       "Collaborative Optimist",
		Description: "You believe cooperation and communication can overcome uncertainty",
		Tendency:    "Assumes good faith is possible and seeks mutual benefit",
	},
	models.ProfileStrategicObserver: {
		Type:        models.ProfileStrategicObserver,
		Label:       "Strategic Observer",
		Description: "You prefer gathering information before committing to action",
		Tendency:    "Balances caution with opportunity assessment",
	},
}

// Classify applies the fixed precedence rules. Ties go to aggression first,
// then cooperation, so the all-zero triple is a Dark Forest Adherent.
func Classify(s models.Scores) models.ProfileType {
	if s.Aggression >= s.Cooperation && s.Aggression >= s.Caution {
		return models.ProfileDarkForestAdherent
	}
	if s.Cooperation >= s.Caution {
		return models.ProfileCollaborativeOptimist
	}
	return models.ProfileStrategicObserver
}

// Describe returns the metadata for p. Unknown types yield a zero Metadata
// carrying only the type.
func Describe(p models.ProfileType) Metadata {
	if m, ok := metadata[p]; ok {
		return m
	}
	return Metadata{Type: p}
}

// Label is a shortcut for Describe(p).Label.
func Label(p models.ProfileType) string {
	return Describe(p).Label
}
