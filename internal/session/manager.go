package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/logging"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/store"
)

// Options configures a Manager. Zero values pick sensible defaults.
type Options struct {
	Logger *slog.Logger
	Events *logging.DecisionLogger
	Now    func() time.Time
	NewID  func() string

	// MaxRoomParticipants caps room size; 0 means unlimited.
	MaxRoomParticipants int
}

// Manager owns the live machines and keeps them in step with the store.
// Operations on one session id are serialized; different ids run in parallel.
type Manager struct {
	store  store.Store
	cat    *catalog.Catalog
	logger *slog.Logger
	events *logging.DecisionLogger
	now    func() time.Time
	newID  func() string
	maxPer int

	locks *keyedMutex

	cacheMu  sync.Mutex
	machines map[string]*Machine
}

// DecideResult is returned by Decide.
type DecideResult struct {
	Session     models.Session      `json:"session"`
	Decision    models.Decision     `json:"decision"`
	Consequence catalog.Consequence `json:"consequence"`
}

// NewManager creates a Manager over s.
func NewManager(s store.Store, cat *catalog.Catalog, opts Options) *Manager {
	m := &Manager{
		store:    s,
		cat:      cat,
		logger:   opts.Logger,
		events:   opts.Events,
		now:      opts.Now,
		newID:    opts.NewID,
		maxPer:   opts.MaxRoomParticipants,
		locks:    newKeyedMutex(),
		machines: make(map[string]*Machine),
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Catalog returns the catalog the manager scores against.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.cat
}

// Start creates a new intro session for userID in context c.
func (m *Manager) Start(ctx context.Context, userID string, c models.Context) (*models.Session, error) {
	if !c.Valid() {
		return nil, &models.InvalidContextError{Value: string(c)}
	}
	if userID == "" {
		userID = "anonymous"
	}

	sess := models.Session{
		ID:        m.newID(),
		UserID:    userID,
		Context:   c,
		Step:      models.StepIntro,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.CreateSession(ctx, &sess); err != nil {
		return nil, err
	}
	mc, err := m.newMachine(&sess, nil)
	if err != nil {
		return nil, err
	}
	m.cache(sess.ID, mc)

	m.logger.Debug("session created", "session", sess.ID, "user", userID, "context", c)
	m.events.Event("session_created", "session_id", sess.ID, "user_id", userID, "context", c)
	return &sess, nil
}

// Get returns the session, or nil if it does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := mc.Session()
	return &s, nil
}

// Snapshot returns the session together with its decision log.
func (m *Manager) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := mc.Snapshot()
	return &snap, nil
}

// AwaitingAdvance reports whether the session's current scenario is decided.
func (m *Manager) AwaitingAdvance(ctx context.Context, id string) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return false, err
	}
	return mc.AwaitingAdvance(), nil
}

// UserSessions lists a user's sessions, newest first.
func (m *Manager) UserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return m.store.GetUserSessions(ctx, userID)
}

// SelectContext changes the context of an intro session.
func (m *Manager) SelectContext(ctx context.Context, id string, c models.Context) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := mc.Snapshot()
	if err := mc.SelectContext(c); err != nil {
		return nil, err
	}

	if err := m.persist(ctx, id, mc, before, "select_context", store.SessionUpdate{Context: &c}); err != nil {
		return nil, err
	}
	m.events.Event("context_selected", "session_id", id, "context", c)
	s := mc.Session()
	return &s, nil
}

// Begin moves an intro session into the simulation.
func (m *Manager) Begin(ctx context.Context, id string) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := mc.Snapshot()
	if err := mc.Begin(); err != nil {
		return nil, err
	}

	s := mc.Session()
	u := store.SessionUpdate{
		Step:            &s.Step,
		CurrentScenario: &s.CurrentScenario,
		Scores:          &s.Scores,
		DecisionCount:   &s.DecisionCount,
	}
	if err := m.persist(ctx, id, mc, before, "begin", u); err != nil {
		return nil, err
	}
	m.logger.Debug("session begun", "session", id, "context", s.Context)
	m.events.Event("session_begun", "session_id", id, "context", s.Context)
	return &s, nil
}

// Decide records choice for the session's current scenario. The decision
// row and the session's scores are written in one store call, so a failure
// leaves neither behind.
func (m *Manager) Decide(ctx context.Context, id string, choice models.Choice) (*DecideResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := mc.Snapshot()
	d, err := mc.Decide(choice)
	if err != nil {
		return nil, err
	}

	s := mc.Session()
	updated, err := m.store.RecordDecision(ctx, &d, store.SessionUpdate{Scores: &s.Scores, DecisionCount: &s.DecisionCount})
	if err == nil && updated == nil {
		err = &NotFoundError{Kind: "session", ID: id}
	}
	if err != nil {
		m.rollback(id, mc, before, "decide", err)
		return nil, err
	}

	info, err := m.cat.Choice(choice)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("decision recorded", "session", id, "scenario", d.ScenarioIndex, "choice", choice)
	m.events.Event("decision_recorded",
		"session_id", id,
		"scenario_index", d.ScenarioIndex,
		"choice", choice,
		"weights", d.Weights,
		"scores", s.Scores,
	)
	return &DecideResult{Session: s, Decision: d, Consequence: info.Consequence}, nil
}

// Advance moves a solo session past its decided scenario. Room sessions are
// advanced by their room.
func (m *Manager) Advance(ctx context.Context, id string) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s := mc.Session(); s.Multiplayer && s.RoomID != "" && s.Step == models.StepSimulation {
		return nil, &models.InvalidStateError{
			Op:     "advance",
			Step:   s.Step,
			Reason: "session belongs to room " + s.RoomID + "; the room advances all participants together",
		}
	}

	s, err := m.advanceLocked(ctx, id, mc)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// advanceLocked advances mc and persists the result. The caller holds id's lock.
func (m *Manager) advanceLocked(ctx context.Context, id string, mc *Machine) (models.Session, error) {
	before := mc.Snapshot()
	completed, err := mc.Advance()
	if err != nil {
		return models.Session{}, err
	}

	s := mc.Session()
	u := store.SessionUpdate{CurrentScenario: &s.CurrentScenario}
	if completed {
		u.Step = &s.Step
		u.Profile = &s.Profile
		u.Completed = &s.Completed
		u.CompletedAt = s.CompletedAt
	}
	if err := m.persist(ctx, id, mc, before, "advance", u); err != nil {
		return models.Session{}, err
	}

	if completed {
		// Completed sessions are read-only; later reads rebuild from the store.
		m.evict(id)
		m.logger.Info("session completed", "session", id, "profile", s.Profile)
		m.events.Event("session_completed", "session_id", id, "profile", s.Profile, "scores", s.Scores)
	} else {
		m.events.Event("scenario_advanced", "session_id", id, "scenario_index", s.CurrentScenario)
	}
	return s, nil
}

// Reset starts a brand-new intro session for the same user and context.
// The old session is left as it was.
func (m *Manager) Reset(ctx context.Context, id string) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	mc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	fresh := mc.Reset()
	if err := m.store.CreateSession(ctx, &fresh); err != nil {
		return nil, err
	}
	next, err := m.newMachine(&fresh, nil)
	if err != nil {
		return nil, err
	}
	m.cache(fresh.ID, next)
	m.evict(id)

	m.logger.Debug("session reset", "from", id, "to", fresh.ID)
	m.events.Event("session_reset", "session_id", fresh.ID, "previous_session_id", id)
	return &fresh, nil
}

// persist writes u together with mc's scores and decision count, and rolls
// mc back to before on failure.
func (m *Manager) persist(ctx context.Context, id string, mc *Machine, before Snapshot, op string, u store.SessionUpdate) error {
	s := mc.Session()
	u.Scores = &s.Scores
	u.DecisionCount = &s.DecisionCount
	updated, err := m.store.UpdateSession(ctx, id, u)
	if err == nil && updated == nil {
		err = &NotFoundError{Kind: "session", ID: id}
	}
	if err != nil {
		m.rollback(id, mc, before, op, err)
		return err
	}
	return nil
}

func (m *Manager) rollback(id string, mc *Machine, before Snapshot, op string, cause error) {
	mc.Restore(before)
	m.evict(id)
	m.logger.Warn("rolled back session after store failure", "session", id, "op", op, "error", cause)
	m.events.Event("rollback", "session_id", id, "op", op, "error", cause.Error())
}

// load returns the cached machine for id or rebuilds it from the store.
// The caller holds id's lock.
func (m *Manager) load(ctx context.Context, id string) (*Machine, error) {
	m.cacheMu.Lock()
	mc, ok := m.machines[id]
	m.cacheMu.Unlock()
	if ok {
		return mc, nil
	}

	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &NotFoundError{Kind: "session", ID: id}
	}
	decisions, err := m.store.GetSessionDecisions(ctx, id)
	if err != nil {
		return nil, err
	}
	mc, err = m.newMachine(sess, decisions)
	if err != nil {
		return nil, err
	}
	if err := m.repair(ctx, sess, mc.Session()); err != nil {
		return nil, err
	}
	m.cache(id, mc)
	return mc, nil
}

// repair rewrites the stored row's derived fields when they disagree with
// the values rebuilt from the decision log.
func (m *Manager) repair(ctx context.Context, stored *models.Session, rebuilt models.Session) error {
	if stored.Scores == rebuilt.Scores && stored.DecisionCount == rebuilt.DecisionCount && stored.Profile == rebuilt.Profile {
		return nil
	}
	u := store.SessionUpdate{Scores: &rebuilt.Scores, DecisionCount: &rebuilt.DecisionCount}
	if rebuilt.Step == models.StepResults {
		u.Profile = &rebuilt.Profile
	}
	if _, err := m.store.UpdateSession(ctx, stored.ID, u); err != nil {
		return err
	}
	m.logger.Warn("repaired session row from decision log", "session", stored.ID,
		"stored_count", stored.DecisionCount, "log_count", rebuilt.DecisionCount)
	m.events.Event("session_repaired", "session_id", stored.ID, "scores", rebuilt.Scores)
	return nil
}

func (m *Manager) newMachine(sess *models.Session, decisions []models.Decision) (*Machine, error) {
	return NewMachine(m.cat, sess, decisions, m.now, m.newID)
}

func (m *Manager) cache(id string, mc *Machine) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.machines[id] = mc
}

func (m *Manager) cached() int {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	return len(m.machines)
}

func (m *Manager) evict(id string) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	delete(m.machines, id)
}
