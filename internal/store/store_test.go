package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shadowdepth.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file missing after New: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNew_BadPath(t *testing.T) {
	if s, err := New(filepath.Join(t.TempDir(), "missing", "dir", "x.db")); err == nil {
		s.Close()
		t.Fatal("New() should fail when the directory does not exist")
	}
}

func TestNew_Schema(t *testing.T) {
	s := newTestStore(t)

	objects := []struct{ kind, name string }{
		{"table", "sessions"},
		{"table", "touch_events"},
		{"table", "settings"},
		{"index", "idx_touch_events_session_id"},
		{"index", "idx_sessions_started_at"},
	}
	for _, o := range objects {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", o.kind, o.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q missing: %v", o.kind, o.name, err)
		}
	}
}

func TestNew_Pragmas(t *testing.T) {
	s := newTestStore(t)

	var fk int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d (%v), want 1", fk, err)
	}
	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q (%v), want wal", mode, err)
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := s.Settings().Set("touch_threshold_cm", "4"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if v, err := s.Settings().Get("touch_threshold_cm"); err != nil || v != "4" {
		t.Errorf("Get() = (%q, %v), want (\"4\", nil)", v, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if _, err := s.Sessions().Get("x"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Close error = %v, want a closed-database error", err)
	}
}
