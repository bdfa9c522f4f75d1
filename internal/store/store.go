// Package store defines the persistence boundary for sessions, decisions,
// rooms and participants.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/darkforest/internal/models"
)

// ErrConflict reports a write that violates a uniqueness or parent constraint,
// such as a second decision for the same scenario.
var ErrConflict = errors.New("conflict")

// FaultError wraps an underlying persistence failure. Faults are reported to
// the caller and never retried by the store.
type FaultError struct {
	Op  string
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// IsFault reports whether err is or wraps a FaultError.
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

// SessionUpdate is a partial update. Nil fields are left unchanged.
type SessionUpdate struct {
	Context         *models.Context
	Step            *models.Step
	CurrentScenario *int
	Scores          *models.Scores
	Profile         *models.ProfileType
	Completed       *bool
	DecisionCount   *int
	CompletedAt     *time.Time
}

// Apply merges u into s.
func (u SessionUpdate) Apply(s *models.Session) {
	if u.Context != nil {
		s.Context = *u.Context
	}
	if u.Step != nil {
		s.Step = *u.Step
	}
	if u.CurrentScenario != nil {
		s.CurrentScenario = *u.CurrentScenario
	}
	if u.Scores != nil {
		s.Scores = *u.Scores
	}
	if u.Profile != nil {
		s.Profile = *u.Profile
	}
	if u.Completed != nil {
		s.Completed = *u.Completed
	}
	if u.DecisionCount != nil {
		s.DecisionCount = *u.DecisionCount
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		s.CompletedAt = &t
	}
}

// RoomUpdate is a partial room update.
type RoomUpdate struct {
	Name            *string
	CurrentScenario *int
	Active          *bool
}

// Apply merges u into r.
func (u RoomUpdate) Apply(r *models.Room) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.CurrentScenario != nil {
		r.CurrentScenario = *u.CurrentScenario
	}
	if u.Active != nil {
		r.Active = *u.Active
	}
}

// ParticipantUpdate is a partial participant update.
type ParticipantUpdate struct {
	SessionID *string
}

// Apply merges u into p.
func (u ParticipantUpdate) Apply(p *models.Participant) {
	if u.SessionID != nil {
		p.SessionID = *u.SessionID
	}
}

// Store persists sessions, decisions and rooms. Lookups of missing records
// return (nil, nil). Every read-then-write is atomic per row.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// GetUserSessions returns the user's sessions, newest first.
	GetUserSessions(ctx context.Context, userID string) ([]models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	UpdateSession(ctx context.Context, id string, u SessionUpdate) (*models.Session, error)

	// Decisions
	AddDecision(ctx context.Context, d *models.Decision) error
	// RecordDecision stores d and merges u into d's session atomically.
	// Either both writes happen or neither does.
	RecordDecision(ctx context.Context, d *models.Decision, u SessionUpdate) (*models.Session, error)
	// GetSessionDecisions returns decisions ordered by scenario index.
	GetSessionDecisions(ctx context.Context, sessionID string) ([]models.Decision, error)

	// Rooms
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	// GetActiveRooms returns active rooms, newest first.
	GetActiveRooms(ctx context.Context) ([]models.Room, error)
	UpdateRoom(ctx context.Context, id string, u RoomUpdate) (*models.Room, error)

	// Participants
	JoinRoom(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	UpdateParticipant(ctx context.Context, id string, u ParticipantUpdate) (*models.Participant, error)
	// GetRoomParticipants returns participants in join order.
	GetRoomParticipants(ctx context.Context, roomID string) ([]models.Participant, error)

	Close() error
}
