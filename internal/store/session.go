package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one tracking run: a camera capture or an analyzed file.
type Session struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Config    json.RawMessage `json:"config"`
	Frames    int             `json:"frames"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	// Touches is the number of touch events, filled by Get and List.
	Touches int `json:"touches"`
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides operations on sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is replaced with a new UUID and
// a zero StartedAt with the current time.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	config := s.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, config, frames, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Source, string(config), s.Frames, s.StartedAt,
	)
	return err
}

// End marks a session finished with its final frame count.
func (r *SessionRepository) End(id string, frames int, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET frames = ?, ended_at = ? WHERE id = ?`,
		frames, at, id,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Get retrieves a session by its ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT s.id, s.source, s.config, s.frames, s.started_at, s.ended_at,
		        (SELECT COUNT(*) FROM touch_events e WHERE e.session_id = s.id)
		 FROM sessions s WHERE s.id = ?`,
		id,
	)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT s.id, s.source, s.config, s.frames, s.started_at, s.ended_at,
		        (SELECT COUNT(*) FROM touch_events e WHERE e.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes a session and its touch events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var config string
	var ended sql.NullTime

	if err := row.Scan(&s.ID, &s.Source, &config, &s.Frames, &s.StartedAt, &ended, &s.Touches); err != nil {
		return nil, err
	}

	s.Config = json.RawMessage(config)
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

// expectRow returns ErrNotFound when an update or delete touched no rows.
func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
