package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("depth.window"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on missing key error = %v, want ErrNotFound", err)
	}

	if err := repo.Set("depth.window", "5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("depth.window", "7"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get("depth.window")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "7" {
		t.Errorf("Get() = %q, want %q", got, "7")
	}

	if err := repo.Delete("depth.window"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("depth.window"); err != nil {
		t.Errorf("Delete() of missing key error = %v, want nil", err)
	}
}

func TestSettingsRepository_SetAllAndAll(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	want := map[string]string{
		"depth.max_depth_cm":       "40",
		"depth.touch_threshold_cm": "4.5",
	}
	if err := repo.SetAll(want); err != nil {
		t.Fatalf("SetAll() error = %v", err)
	}

	got, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("All() returned %d settings, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("All()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
