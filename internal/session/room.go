package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/store"
	"golang.org/x/sync/errgroup"
)

// Rooms run in lockstep: participants decide on their own, but only the room
// moves the cursor, and only once every participant has decided.

// ParticipantStatus is one participant's progress within a room.
type ParticipantStatus struct {
	Participant     models.Participant `json:"participant"`
	Step            models.Step        `json:"step"`
	CurrentScenario int                `json:"current_scenario"`
	AwaitingAdvance bool               `json:"awaiting_advance"`
	Scores          models.Scores      `json:"scores"`
	Profile         models.ProfileType `json:"profile,omitempty"`
}

// RoomStatus is a room together with its participants' progress.
type RoomStatus struct {
	Room         models.Room         `json:"room"`
	Participants []ParticipantStatus `json:"participants"`
	// Pending lists users who have not decided the room's current scenario.
	Pending []string `json:"pending,omitempty"`
}

// JoinResult is returned by JoinRoom.
type JoinResult struct {
	Room        models.Room        `json:"room"`
	Participant models.Participant `json:"participant"`
	Session     models.Session     `json:"session"`
}

func roomKey(id string) string {
	return "room:" + id
}

// CreateRoom opens a new active room in context c.
func (m *Manager) CreateRoom(ctx context.Context, name string, c models.Context, createdBy string) (*models.Room, error) {
	if !c.Valid() {
		return nil, &models.InvalidContextError{Value: string(c)}
	}
	if createdBy == "" {
		createdBy = "anonymous"
	}
	r := models.Room{
		ID:        m.newID(),
		Name:      name,
		Context:   c,
		Active:    true,
		CreatedBy: createdBy,
		CreatedAt: m.now().UTC(),
	}
	if r.Name == "" {
		r.Name = "room-" + r.ID[:min(8, len(r.ID))]
	}
	if err := m.store.CreateRoom(ctx, &r); err != nil {
		return nil, err
	}
	m.logger.Debug("room created", "room", r.ID, "context", c)
	m.events.Event("room_created", "room_id", r.ID, "context", c, "created_by", createdBy)
	return &r, nil
}

// ActiveRooms lists open rooms, newest first.
func (m *Manager) ActiveRooms(ctx context.Context) ([]models.Room, error) {
	return m.store.GetActiveRooms(ctx)
}

// JoinRoom adds userID to the room with a new simulation session in the room's
// context. Joining twice returns the existing membership. Joining is closed
// once the room has advanced past its first scenario.
//
// The participant row is written first and linked to its session last. A
// join that failed part way is finished by the next JoinRoom for the same
// user, which reuses whatever rows the failed attempt left behind.
func (m *Manager) JoinRoom(ctx context.Context, roomID, userID string) (*JoinResult, error) {
	unlock := m.locks.Lock(roomKey(roomID))
	defer unlock()

	if userID == "" {
		userID = "anonymous"
	}
	room, err := m.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	parts, err := m.store.GetRoomParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var unlinked *models.Participant
	for _, p := range parts {
		if p.UserID != userID {
			continue
		}
		if p.SessionID == "" {
			unlinked = &p
			break
		}
		s, err := m.Get(ctx, p.SessionID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, &NotFoundError{Kind: "session", ID: p.SessionID}
		}
		return &JoinResult{Room: *room, Participant: p, Session: *s}, nil
	}

	if !room.Active {
		return nil, &models.InvalidStateError{Op: "join room", Reason: "room " + roomID + " is closed"}
	}
	if room.CurrentScenario > 0 {
		return nil, &models.InvalidStateError{Op: "join room", Reason: "room " + roomID + " has already moved past the first scenario"}
	}

	now := m.now().UTC()
	var p models.Participant
	if unlinked != nil {
		p = *unlinked
	} else {
		if m.maxPer > 0 && len(parts) >= m.maxPer {
			return nil, &models.InvalidStateError{Op: "join room", Reason: fmt.Sprintf("room %s is full (%d participants)", roomID, m.maxPer)}
		}
		p = models.Participant{
			ID:       m.newID(),
			RoomID:   room.ID,
			UserID:   userID,
			JoinedAt: now,
		}
		if err := m.store.JoinRoom(ctx, &p); err != nil {
			return nil, err
		}
	}

	sess, err := m.roomSession(ctx, room, userID, now)
	if err != nil {
		return nil, err
	}
	sid := sess.ID
	linked, err := m.store.UpdateParticipant(ctx, p.ID, store.ParticipantUpdate{SessionID: &sid})
	if err != nil {
		return nil, err
	}
	if linked == nil {
		return nil, &NotFoundError{Kind: "participant", ID: p.ID}
	}
	mc, err := m.newMachine(sess, nil)
	if err != nil {
		return nil, err
	}
	m.cache(sess.ID, mc)

	m.logger.Debug("participant joined", "room", roomID, "user", userID, "session", sess.ID)
	m.events.Event("room_joined", "room_id", roomID, "user_id", userID, "session_id", sess.ID)
	return &JoinResult{Room: *room, Participant: *linked, Session: *sess}, nil
}

// roomSession returns the user's unlinked session for room, left by an
// earlier failed join, or creates a new one.
func (m *Manager) roomSession(ctx context.Context, room *models.Room, userID string, now time.Time) (*models.Session, error) {
	existing, err := m.store.GetUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		if s.Multiplayer && s.RoomID == room.ID && s.DecisionCount == 0 {
			return &s, nil
		}
	}

	sess := models.Session{
		ID:          m.newID(),
		UserID:      userID,
		Context:     room.Context,
		Step:        models.StepSimulation,
		Multiplayer: true,
		RoomID:      room.ID,
		CreatedAt:   now,
	}
	if err := m.store.CreateSession(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// RoomStatus reports the room and each participant's progress.
func (m *Manager) RoomStatus(ctx context.Context, roomID string) (*RoomStatus, error) {
	unlock := m.locks.Lock(roomKey(roomID))
	defer unlock()

	room, err := m.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	status, _, err := m.collect(ctx, room)
	return status, err
}

// AdvanceRoom moves every participant and the room cursor to the next
// scenario. It fails with InvalidStateError while any participant has not yet
// decided. Sessions already past the room cursor are skipped, so a retry
// after a partial store failure picks up where it stopped.
func (m *Manager) AdvanceRoom(ctx context.Context, roomID string) (*RoomStatus, error) {
	unlock := m.locks.Lock(roomKey(roomID))
	defer unlock()

	room, err := m.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, &models.InvalidStateError{Op: "advance room", Reason: "room " + roomID + " has finished"}
	}

	status, ready, err := m.collect(ctx, room)
	if err != nil {
		return nil, err
	}
	if len(status.Participants) == 0 {
		return nil, &models.InvalidStateError{Op: "advance room", Reason: "room " + roomID + " has no participants"}
	}
	if len(status.Pending) > 0 {
		return nil, &models.InvalidStateError{
			Op:     "advance room",
			Reason: fmt.Sprintf("waiting on %d participant(s): %s", len(status.Pending), strings.Join(status.Pending, ", ")),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ready {
		g.Go(func() error {
			unlock := m.locks.Lock(id)
			defer unlock()

			mc, err := m.load(gctx, id)
			if err != nil {
				return err
			}
			_, err = m.advanceLocked(gctx, id, mc)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("advancing room %s: %w", roomID, err)
	}

	count, err := m.cat.ScenarioCount(room.Context)
	if err != nil {
		return nil, err
	}
	next := room.CurrentScenario + 1
	u := store.RoomUpdate{CurrentScenario: &next}
	if next >= count {
		closed := false
		u.Active = &closed
	}
	updated, err := m.store.UpdateRoom(ctx, roomID, u)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &NotFoundError{Kind: "room", ID: roomID}
	}

	m.logger.Info("room advanced", "room", roomID, "scenario", next, "active", updated.Active)
	m.events.Event("room_advanced", "room_id", roomID, "scenario_index", next, "active", updated.Active)

	status, _, err = m.collect(ctx, updated)
	return status, err
}

func (m *Manager) getRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := m.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, &NotFoundError{Kind: "room", ID: id}
	}
	return room, nil
}

// collect builds the room status and returns the ids of sessions that are
// waiting at the room cursor. The caller holds the room lock.
func (m *Manager) collect(ctx context.Context, room *models.Room) (*RoomStatus, []string, error) {
	parts, err := m.store.GetRoomParticipants(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}

	status := &RoomStatus{Room: *room, Participants: []ParticipantStatus{}}
	var ready []string
	for _, p := range parts {
		if p.SessionID == "" {
			continue
		}
		ps, err := m.participantStatus(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		status.Participants = append(status.Participants, ps)

		if !room.Active || ps.Step == models.StepResults || ps.CurrentScenario > room.CurrentScenario {
			continue
		}
		if ps.AwaitingAdvance {
			ready = append(ready, p.SessionID)
		} else {
			status.Pending = append(status.Pending, p.UserID)
		}
	}
	return status, ready, nil
}

func (m *Manager) participantStatus(ctx context.Context, p models.Participant) (ParticipantStatus, error) {
	unlock := m.locks.Lock(p.SessionID)
	defer unlock()

	mc, err := m.load(ctx, p.SessionID)
	if err != nil {
		return ParticipantStatus{}, err
	}
	s := mc.Session()
	return ParticipantStatus{
		Participant:     p,
		Step:            s.Step,
		CurrentScenario: s.CurrentScenario,
		AwaitingAdvance: mc.AwaitingAdvance(),
		Scores:          s.Scores,
		Profile:         s.Profile,
	}, nil
}
