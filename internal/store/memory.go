package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/darkforest/internal/models"
)

// InMemoryStore implements Store for tests and throwaway runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*models.Session
	sessionOrder []string
	decisions    map[string][]models.Decision
	rooms        map[string]*models.Room
	roomOrder    []string
	participants map[string]*models.Participant
	partOrder    []string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:     make(map[string]*models.Session),
		decisions:    make(map[string][]models.Decision),
		rooms:        make(map[string]*models.Room),
		participants: make(map[string]*models.Participant),
	}
}

// CreateSession stores a copy of s.
func (m *InMemoryStore) CreateSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", ErrConflict, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	m.sessionOrder = append(m.sessionOrder, s.ID)
	return nil
}

// GetSession returns a copy of the session, or nil if not found.
func (m *InMemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// GetUserSessions returns the user's sessions, newest first.
func (m *InMemoryStore) GetUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Session
	for i := len(m.sessionOrder) - 1; i >= 0; i-- {
		s := m.sessions[m.sessionOrder[i]]
		if s.UserID == userID {
			out = append(out, *s.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListSessions returns every session in creation order.
func (m *InMemoryStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Session, 0, len(m.sessionOrder))
	for _, id := range m.sessionOrder {
		out = append(out, *m.sessions[id].Clone())
	}
	return out, nil
}

// UpdateSession merges u into the stored session and returns the result,
// or nil if the session does not exist.
func (m *InMemoryStore) UpdateSession(ctx context.Context, id string, u SessionUpdate) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	u.Apply(s)
	return s.Clone(), nil
}

// AddDecision appends d to its session's log.
func (m *InMemoryStore) AddDecision(ctx context.Context, d *models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.addDecision(d)
}

// RecordDecision appends d and merges u into its session under one lock.
func (m *InMemoryStore) RecordDecision(ctx context.Context, d *models.Decision, u SessionUpdate) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.addDecision(d); err != nil {
		return nil, err
	}
	s := m.sessions[d.SessionID]
	u.Apply(s)
	return s.Clone(), nil
}

func (m *InMemoryStore) addDecision(d *models.Decision) error {
	if _, ok := m.sessions[d.SessionID]; !ok {
		return fmt.Errorf("%w: session %s does not exist", ErrConflict, d.SessionID)
	}
	for _, existing := range m.decisions[d.SessionID] {
		if existing.ScenarioIndex == d.ScenarioIndex {
			return fmt.Errorf("%w: session %s already decided scenario %d", ErrConflict, d.SessionID, d.ScenarioIndex)
		}
	}
	m.decisions[d.SessionID] = append(m.decisions[d.SessionID], *d)
	return nil
}

// GetSessionDecisions returns the session's decisions by scenario index.
func (m *InMemoryStore) GetSessionDecisions(ctx context.Context, sessionID string) ([]models.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]models.Decision(nil), m.decisions[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScenarioIndex < out[j].ScenarioIndex
	})
	return out, nil
}

// CreateRoom stores a copy of r.
func (m *InMemoryStore) CreateRoom(ctx context.Context, r *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		return fmt.Errorf("room ID is required")
	}
	if _, exists := m.rooms[r.ID]; exists {
		return fmt.Errorf("%w: room %s already exists", ErrConflict, r.ID)
	}
	cp := *r
	m.rooms[r.ID] = &cp
	m.roomOrder = append(m.roomOrder, r.ID)
	return nil
}

// GetRoom returns a copy of the room, or nil if not found.
func (m *InMemoryStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// GetActiveRooms returns active rooms, newest first.
func (m *InMemoryStore) GetActiveRooms(ctx context.Context) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Room
	for i := len(m.roomOrder) - 1; i >= 0; i-- {
		r := m.rooms[m.roomOrder[i]]
		if r.Active {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateRoom merges u into the stored room, or returns nil if missing.
func (m *InMemoryStore) UpdateRoom(ctx context.Context, id string, u RoomUpdate) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	u.Apply(r)
	cp := *r
	return &cp, nil
}

// JoinRoom stores a participant.
func (m *InMemoryStore) JoinRoom(ctx context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		return fmt.Errorf("participant ID is required")
	}
	if _, ok := m.rooms[p.RoomID]; !ok {
		return fmt.Errorf("%w: room %s does not exist", ErrConflict, p.RoomID)
	}
	if _, exists := m.participants[p.ID]; exists {
		return fmt.Errorf("%w: participant %s already exists", ErrConflict, p.ID)
	}
	cp := *p
	m.participants[p.ID] = &cp
	m.partOrder = append(m.partOrder, p.ID)
	return nil
}

// GetParticipant returns a copy of the participant, or nil if not found.
func (m *InMemoryStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// UpdateParticipant merges u into the stored participant, or returns nil if missing.
func (m *InMemoryStore) UpdateParticipant(ctx context.Context, id string, u ParticipantUpdate) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, nil
	}
	u.Apply(p)
	cp := *p
	return &cp, nil
}

// GetRoomParticipants returns the room's participants in join order.
func (m *InMemoryStore) GetRoomParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Participant
	for _, id := range m.partOrder {
		if p := m.participants[id]; p.RoomID == roomID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Close is a no-op.
func (m *InMemoryStore) Close() error {
	return nil
}
