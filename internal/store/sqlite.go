package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/darkforest/internal/models"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed-width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const sessionColumns = `id, user_id, context, step, current_scenario, cooperation, caution, aggression,
	profile, completed, decision_count, multiplayer, room_id, created_at, completed_at`

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// CheckIntegrity runs the SQLite integrity and foreign key checks.
func (s *SQLiteStore) CheckIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// #region sessions

// CreateSession inserts s.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(sess.Context), string(sess.Step), sess.CurrentScenario,
		sess.Scores.Cooperation, sess.Scores.Caution, sess.Scores.Aggression,
		nullString(string(sess.Profile)), boolInt(sess.Completed), sess.DecisionCount,
		boolInt(sess.Multiplayer), nullString(sess.RoomID), formatTime(sess.CreatedAt),
		nullTime(sess.CompletedAt))
	if err != nil {
		return classify("create session", err)
	}
	return nil
}

// GetSession returns the session, or nil if not found.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getSession(ctx, s.db, id)
}

// GetUserSessions returns the user's sessions, newest first.
func (s *SQLiteStore) GetUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListSessions returns every session in creation order.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at, rowid`)
}

// UpdateSession merges u into the stored session inside one transaction.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, u SessionUpdate) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &FaultError{Op: "update session", Err: err}
	}
	defer tx.Rollback()

	sess, err := updateSession(ctx, tx, id, u)
	if err != nil || sess == nil {
		return sess, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &FaultError{Op: "update session", Err: err}
	}
	return sess, nil
}

// RecordDecision inserts d and merges u into its session in one transaction.
func (s *SQLiteStore) RecordDecision(ctx context.Context, d *models.Decision, u SessionUpdate) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &FaultError{Op: "record decision", Err: err}
	}
	defer tx.Rollback()

	if err := insertDecision(ctx, tx, d); err != nil {
		return nil, err
	}
	sess, err := updateSession(ctx, tx, d.SessionID, u)
	if err != nil || sess == nil {
		return sess, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &FaultError{Op: "record decision", Err: err}
	}
	return sess, nil
}

func updateSession(ctx context.Context, tx *sql.Tx, id string, u SessionUpdate) (*models.Session, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Context != nil {
		add("context", string(*u.Context))
	}
	if u.Step != nil {
		add("step", string(*u.Step))
	}
	if u.CurrentScenario != nil {
		add("current_scenario", *u.CurrentScenario)
	}
	if u.Scores != nil {
		add("cooperation", u.Scores.Cooperation)
		add("caution", u.Scores.Caution)
		add("aggression", u.Scores.Aggression)
	}
	if u.Profile != nil {
		add("profile", nullString(string(*u.Profile)))
	}
	if u.Completed != nil {
		add("completed", boolInt(*u.Completed))
	}
	if u.DecisionCount != nil {
		add("decision_count", *u.DecisionCount)
	}
	if u.CompletedAt != nil {
		add("completed_at", formatTime(*u.CompletedAt))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, classify("update session", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, nil
		}
	}
	return getSession(ctx, tx, id)
}

func (s *SQLiteStore) querySessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &FaultError{Op: "query sessions", Err: err}
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, &FaultError{Op: "scan session", Err: err}
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, &FaultError{Op: "query sessions", Err: err}
	}
	return out, nil
}

// #endregion

// #region decisions

// AddDecision inserts d. A second decision for the same scenario of the same
// session fails with ErrConflict.
func (s *SQLiteStore) AddDecision(ctx context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertDecision(ctx, s.db, d)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDecision(ctx context.Context, e execer, d *models.Decision) error {
	_, err := e.ExecContext(ctx, `INSERT INTO decisions (
			id, session_id, scenario_index, scenario_title, choice, choice_label,
			weight_cooperation, weight_caution, weight_aggression, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.ScenarioIndex, d.ScenarioTitle, string(d.Choice), d.ChoiceLabel,
		d.Weights.Cooperation, d.Weights.Caution, d.Weights.Aggression, formatTime(d.Timestamp))
	if err != nil {
		return classify("add decision", err)
	}
	return nil
}

// GetSessionDecisions returns decisions ordered by scenario index.
func (s *SQLiteStore) GetSessionDecisions(ctx context.Context, sessionID string) ([]models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, scenario_index, scenario_title, choice,
			choice_label, weight_cooperation, weight_caution, weight_aggression, timestamp
		FROM decisions WHERE session_id = ? ORDER BY scenario_index`, sessionID)
	if err != nil {
		return nil, &FaultError{Op: "query decisions", Err: err}
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var d models.Decision
		var choice, ts string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.ScenarioIndex, &d.ScenarioTitle, &choice,
			&d.ChoiceLabel, &d.Weights.Cooperation, &d.Weights.Caution, &d.Weights.Aggression, &ts); err != nil {
			return nil, &FaultError{Op: "scan decision", Err: err}
		}
		d.Choice = models.Choice(choice)
		if d.Timestamp, err = parseTime(ts); err != nil {
			return nil, &FaultError{Op: "scan decision", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &FaultError{Op: "query decisions", Err: err}
	}
	return out, nil
}

// #endregion

// #region rooms

// CreateRoom inserts r.
func (s *SQLiteStore) CreateRoom(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO rooms
		(id, name, context, current_scenario, active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, string(r.Context), r.CurrentScenario, boolInt(r.Active), r.CreatedBy, formatTime(r.CreatedAt))
	if err != nil {
		return classify("create room", err)
	}
	return nil
}

// GetRoom returns the room, or nil if not found.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getRoom(ctx, s.db, id)
}

// GetActiveRooms returns active rooms, newest first.
func (s *SQLiteStore) GetActiveRooms(ctx context.Context) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, context, current_scenario, active, created_by, created_at
		FROM rooms WHERE active = 1 ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, &FaultError{Op: "query rooms", Err: err}
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, &FaultError{Op: "scan room", Err: err}
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &FaultError{Op: "query rooms", Err: err}
	}
	return out, nil
}

// UpdateRoom merges u into the stored room inside one transaction.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, id string, u RoomUpdate) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.CurrentScenario != nil {
		sets = append(sets, "current_scenario = ?")
		args = append(args, *u.CurrentScenario)
	}
	if u.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolInt(*u.Active))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &FaultError{Op: "update room", Err: err}
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx, `UPDATE rooms SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, classify("update room", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, nil
		}
	}

	r, err := getRoom(ctx, tx, id)
	if err != nil || r == nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &FaultError{Op: "update room", Err: err}
	}
	return r, nil
}

// #endregion

// #region participants

// JoinRoom inserts p. The room must exist.
func (s *SQLiteStore) JoinRoom(ctx context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO room_participants (id, room_id, user_id, session_id, joined_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.RoomID, p.UserID, nullString(p.SessionID), formatTime(p.JoinedAt))
	if err != nil {
		return classify("join room", err)
	}
	return nil
}

// GetParticipant returns the participant, or nil if not found.
func (s *SQLiteStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getParticipant(ctx, s.db, id)
}

// UpdateParticipant merges u into the stored participant.
func (s *SQLiteStore) UpdateParticipant(ctx context.Context, id string, u ParticipantUpdate) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &FaultError{Op: "update participant", Err: err}
	}
	defer tx.Rollback()

	if u.SessionID != nil {
		res, err := tx.ExecContext(ctx, `UPDATE room_participants SET session_id = ? WHERE id = ?`,
			nullString(*u.SessionID), id)
		if err != nil {
			return nil, classify("update participant", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, nil
		}
	}

	p, err := getParticipant(ctx, tx, id)
	if err != nil || p == nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &FaultError{Op: "update participant", Err: err}
	}
	return p, nil
}

// GetRoomParticipants returns the room's participants in join order.
func (s *SQLiteStore) GetRoomParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, room_id, user_id, session_id, joined_at
		FROM room_participants WHERE room_id = ? ORDER BY joined_at, rowid`, roomID)
	if err != nil {
		return nil, &FaultError{Op: "query participants", Err: err}
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, &FaultError{Op: "scan participant", Err: err}
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &FaultError{Op: "query participants", Err: err}
	}
	return out, nil
}

// #endregion

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getSession(ctx context.Context, q querier, id string) (*models.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &FaultError{Op: "get session", Err: err}
	}
	return sess, nil
}

func scanSession(sc scanner) (*models.Session, error) {
	var sess models.Session
	var ctxName, step, createdAt string
	var profile, roomID, completedAt sql.NullString
	var completed, multiplayer int
	err := sc.Scan(&sess.ID, &sess.UserID, &ctxName, &step, &sess.CurrentScenario,
		&sess.Scores.Cooperation, &sess.Scores.Caution, &sess.Scores.Aggression,
		&profile, &completed, &sess.DecisionCount, &multiplayer, &roomID, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	sess.Context = models.Context(ctxName)
	sess.Step = models.Step(step)
	sess.Profile = models.ProfileType(profile.String)
	sess.Completed = completed != 0
	sess.Multiplayer = multiplayer != 0
	sess.RoomID = roomID.String
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func getRoom(ctx context.Context, q querier, id string) (*models.Room, error) {
	row := q.QueryRowContext(ctx, `SELECT id, name, context, current_scenario, active, created_by, created_at
		FROM rooms WHERE id = ?`, id)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &FaultError{Op: "get room", Err: err}
	}
	return r, nil
}

func scanRoom(sc scanner) (*models.Room, error) {
	var r models.Room
	var ctxName, createdAt string
	var active int
	if err := sc.Scan(&r.ID, &r.Name, &ctxName, &r.CurrentScenario, &active, &r.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	r.Context = models.Context(ctxName)
	r.Active = active != 0
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func getParticipant(ctx context.Context, q querier, id string) (*models.Participant, error) {
	row := q.QueryRowContext(ctx, `SELECT id, room_id, user_id, session_id, joined_at
		FROM room_participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &FaultError{Op: "get participant", Err: err}
	}
	return p, nil
}

func scanParticipant(sc scanner) (*models.Participant, error) {
	var p models.Participant
	var sessionID sql.NullString
	var joinedAt string
	if err := sc.Scan(&p.ID, &p.RoomID, &p.UserID, &sessionID, &joinedAt); err != nil {
		return nil, err
	}
	p.SessionID = sessionID.String
	var err error
	if p.JoinedAt, err = parseTime(joinedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// classify maps constraint violations to ErrConflict and everything else to
// a FaultError.
func classify(op string, err error) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	}
	return &FaultError{Op: op, Err: err}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
