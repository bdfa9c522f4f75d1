package models

import "time"

// Step is the coarse phase of a session.
type Step string

const (
	StepIntro      Step = "intro"
	StepSimulation Step = "simulation"
	StepResults    Step = "results"
)

// Session is one user's run through a context's scenario sequence.
type Session struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Context         Context     `json:"context"`
	Step            Step        `json:"step"`
	CurrentScenario int         `json:"current_scenario"`
	Scores          Scores      `json:"scores"`
	Profile         ProfileType `json:"profile,omitempty"`
	Completed       bool        `json:"completed"`
	DecisionCount   int         `json:"decision_count"`
	Multiplayer     bool        `json:"multiplayer"`
	RoomID          string      `json:"room_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Decision is an immutable record of one choice made in one scenario.
type Decision struct {
	ID            string       `json:"id"`
	SessionID     string       `json:"session_id"`
	ScenarioIndex int          `json:"scenario_index"`
	ScenarioTitle string       `json:"scenario_title"`
	Choice        Choice       `json:"choice"`
	ChoiceLabel   string       `json:"choice_label"`
	Weights       WeightVector `json:"weights"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Room groups participant sessions under one shared context and cursor.
type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Context         Context   `json:"context"`
	CurrentScenario int       `json:"current_scenario"`
	Active          bool      `json:"active"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// Participant links a user to a room and to at most one session.
type Participant struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}
