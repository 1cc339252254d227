package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TouchEvent is a contiguous run of TOUCHING estimates within a session.
type TouchEvent struct {
	ID               string     `json:"id"`
	SessionID        string     `json:"session_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Frames           int        `json:"frames"`
	MinDepthCM       float64    `json:"min_depth_cm"`
	MaxIntensityDrop float64    `json:"max_intensity_drop"`
}

// Duration returns the event length, or zero while it is still open.
func (e *TouchEvent) Duration() time.Duration {
	if e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

// EventRepository provides operations on touch events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the touch event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Start inserts an open touch event. An empty ID is replaced with a new UUID.
func (r *EventRepository) Start(e *TouchEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO touch_events (id, session_id, started_at, frames, min_depth_cm, max_intensity_drop)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.StartedAt, e.Frames, e.MinDepthCM, e.MaxIntensityDrop,
	)
	return err
}

// End closes a touch event with its final statistics.
func (r *EventRepository) End(e *TouchEvent) error {
	if e.EndedAt == nil {
		now := time.Now()
		e.EndedAt = &now
	}

	result, err := r.db.Exec(
		`UPDATE touch_events SET ended_at = ?, frames = ?, min_depth_cm = ?, max_intensity_drop = ?
		 WHERE id = ?`,
		*e.EndedAt, e.Frames, e.MinDepthCM, e.MaxIntensityDrop, e.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Get retrieves a touch event by its ID.
func (r *EventRepository) Get(id string) (*TouchEvent, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, started_at, ended_at, frames, min_depth_cm, max_intensity_drop
		 FROM touch_events WHERE id = ?`,
		id,
	)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// ListBySession returns the touch events of a session in start order.
func (r *EventRepository) ListBySession(sessionID string) ([]*TouchEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, started_at, ended_at, frames, min_depth_cm, max_intensity_drop
		 FROM touch_events WHERE session_id = ? ORDER BY started_at`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*TouchEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(row scanner) (*TouchEvent, error) {
	e := &TouchEvent{}
	var ended sql.NullTime

	err := row.Scan(&e.ID, &e.SessionID, &e.StartedAt, &ended, &e.Frames, &e.MinDepthCM, &e.MaxIntensityDrop)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		e.EndedAt = &t
	}
	return e, nil
}
