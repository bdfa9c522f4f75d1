package models

// ProfileType is the categorical label assigned to a completed session.
type ProfileType string

const (
	ProfileDarkForestAdherent    ProfileType = "dark_forest_adherent"
	ProfileCollaborativeOptimist ProfileType = "collaborative_optimist"
	ProfileStrategicObserver     ProfileType = "strategic_observer"
)

// ProfileTypes lists every profile type.
var ProfileTypes = []ProfileType{
	ProfileDarkForestAdherent,
	ProfileCollaborativeOptimist,
	ProfileStrategicObserver,
}

// Valid reports whether p is a known profile type.
func (p ProfileType) Valid() bool {
	for _, known := range ProfileTypes {
		if p == known {
			return true
		}
	}
	return false
}
