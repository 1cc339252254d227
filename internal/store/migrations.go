package store

// schema is applied in order inside one transaction; every statement is
// idempotent so reopening an existing database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		config TEXT NOT NULL DEFAULT '{}',
		frames INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS touch_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		frames INTEGER NOT NULL DEFAULT 0,
		min_depth_cm REAL NOT NULL,
		max_intensity_drop REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_touch_events_session_id ON touch_events(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
}

func (s *Store) runMigrations() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
