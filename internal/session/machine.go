// Package session drives a session through intro, simulation and results.
//
// A Machine holds one session and its decision log in memory and enforces
// the transition rules. A Manager addresses machines by id, persists every
// transition through a store.Store and serializes operations per session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/scoring"
)

// Machine is the state machine for one session. All methods are safe for
// concurrent use. Invalid transitions return *models.InvalidStateError and
// leave the machine unchanged.
type Machine struct {
	mu        sync.RWMutex
	cat       *catalog.Catalog
	now       func() time.Time
	newID     func() string
	session   models.Session
	decisions []models.Decision
}

// Snapshot is a point-in-time copy of a machine's state.
type Snapshot struct {
	Session   models.Session    `json:"session"`
	Decisions []models.Decision `json:"decisions"`
}

// NewMachine wraps sess and its decision log. Scores, decision count and a
// completed session's profile are recomputed from the log, which is the
// source of truth.
func NewMachine(cat *catalog.Catalog, sess *models.Session, decisions []models.Decision, now func() time.Time, newID func() string) (*Machine, error) {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	m := &Machine{
		cat:       cat,
		now:       now,
		newID:     newID,
		session:   *sess.Clone(),
		decisions: append([]models.Decision(nil), decisions...),
	}
	if err := m.reconcile(); err != nil {
		return nil, err
	}
	return m, nil
}

// reconcile rebuilds derived fields from the decision log and checks that
// the log fits the cursor.
func (m *Machine) reconcile() error {
	s := &m.session
	if !s.Context.Valid() {
		return fmt.Errorf("session %s: %w", s.ID, &models.InvalidContextError{Value: string(s.Context)})
	}
	var vectors []models.WeightVector
	for i, d := range m.decisions {
		if d.ScenarioIndex != i {
			return fmt.Errorf("session %s: decision log has gap at scenario %d", s.ID, i)
		}
		vectors = append(vectors, d.Weights)
	}
	s.Scores = scoring.Accumulate(vectors...)
	s.DecisionCount = len(m.decisions)

	n := len(m.decisions)
	switch s.Step {
	case models.StepIntro:
		if n != 0 {
			return fmt.Errorf("session %s: intro session has %d decisions", s.ID, n)
		}
	case models.StepSimulation:
		if n != s.CurrentScenario && n != s.CurrentScenario+1 {
			return fmt.Errorf("session %s: %d decisions do not match cursor %d", s.ID, n, s.CurrentScenario)
		}
	case models.StepResults:
		if n != s.CurrentScenario {
			return fmt.Errorf("session %s: %d decisions do not match completed cursor %d", s.ID, n, s.CurrentScenario)
		}
		s.Profile = profile.Classify(s.Scores)
	default:
		return fmt.Errorf("session %s: unknown step %q", s.ID, s.Step)
	}
	return nil
}

// Session returns a copy of the current session.
func (m *Machine) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return *m.session.Clone()
}

// Decisions returns a copy of the decision log.
func (m *Machine) Decisions() []models.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Decision(nil), m.decisions...)
}

// Snapshot captures the full state for a later Restore.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Session:   *m.session.Clone(),
		Decisions: append([]models.Decision(nil), m.decisions...),
	}
}

// Restore puts the machine back to snap.
func (m *Machine) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = *snap.Session.Clone()
	m.decisions = append([]models.Decision(nil), snap.Decisions...)
}

// AwaitingAdvance reports whether the current scenario has been decided but
// not yet advanced past.
func (m *Machine) AwaitingAdvance() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.awaitingAdvance()
}

func (m *Machine) awaitingAdvance() bool {
	return m.session.Step == models.StepSimulation && len(m.decisions) == m.session.CurrentScenario+1
}

// ScenarioCount returns the number of scenarios in the session's context.
func (m *Machine) ScenarioCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, _ := m.cat.ScenarioCount(m.session.Context)
	return n
}

// SelectContext changes the context. Only valid in intro.
func (m *Machine) SelectContext(ctx models.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Step != models.StepIntro {
		return &models.InvalidStateError{Op: "select context", Step: m.session.Step, Reason: "context is fixed once the simulation has begun"}
	}
	if !ctx.Valid() {
		return &models.InvalidContextError{Value: string(ctx)}
	}
	m.session.Context = ctx
	return nil
}

// Begin moves from intro to simulation with a clean slate.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Step != models.StepIntro {
		return &models.InvalidStateError{Op: "begin", Step: m.session.Step, Reason: "session has already begun"}
	}
	m.session.Step = models.StepSimulation
	m.session.CurrentScenario = 0
	m.session.Scores = models.Scores{}
	m.session.DecisionCount = 0
	m.decisions = nil
	return nil
}

// Decide scores choice against the current scenario and appends it to the
// log. The cursor does not move until Advance.
func (m *Machine) Decide(choice models.Choice) (models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.session
	if s.Step != models.StepSimulation {
		return models.Decision{}, &models.InvalidStateError{Op: "decide", Step: s.Step, Reason: "no scenario is in progress"}
	}
	if m.awaitingAdvance() {
		return models.Decision{}, &models.InvalidStateError{
			Op:     "decide",
			Step:   s.Step,
			Reason: fmt.Sprintf("scenario %d is already decided; advance first", s.CurrentScenario),
		}
	}

	weights, err := scoring.ApplyChoice(s.Context, choice)
	if err != nil {
		return models.Decision{}, err
	}
	scenario, err := m.cat.Scenario(s.Context, s.CurrentScenario)
	if err != nil {
		return models.Decision{}, err
	}
	info, err := m.cat.Choice(choice)
	if err != nil {
		return models.Decision{}, err
	}

	d := models.Decision{
		ID:            m.newID(),
		SessionID:     s.ID,
		ScenarioIndex: s.CurrentScenario,
		ScenarioTitle: scenario.Title,
		Choice:        choice,
		ChoiceLabel:   info.Label,
		Weights:       weights,
		Timestamp:     m.now().UTC(),
	}
	m.decisions = append(m.decisions, d)
	s.Scores = s.Scores.Add(weights)
	s.DecisionCount = len(m.decisions)
	return d, nil
}

// Advance moves past a decided scenario. After the last scenario the session
// enters results with its profile computed, and Advance reports true.
func (m *Machine) Advance() (completed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.session
	if s.Step != models.StepSimulation {
		return false, &models.InvalidStateError{Op: "advance", Step: s.Step, Reason: "no scenario is in progress"}
	}
	if !m.awaitingAdvance() {
		return false, &models.InvalidStateError{
			Op:     "advance",
			Step:   s.Step,
			Reason: fmt.Sprintf("scenario %d has not been decided", s.CurrentScenario),
		}
	}

	count, err := m.cat.ScenarioCount(s.Context)
	if err != nil {
		return false, err
	}
	s.CurrentScenario++
	if s.CurrentScenario < count {
		return false, nil
	}

	now := m.now().UTC()
	s.Step = models.StepResults
	s.Profile = profile.Classify(s.Scores)
	s.Completed = true
	s.CompletedAt = &now
	return true, nil
}

// Reset builds a fresh intro session for the same user, keeping the selected
// context. The machine itself is not modified.
func (m *Machine) Reset() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return models.Session{
		ID:        m.newID(),
		UserID:    m.session.UserID,
		Context:   m.session.Context,
		Step:      models.StepIntro,
		CreatedAt: m.now().UTC(),
	}
}
