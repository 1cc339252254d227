package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/shadowdepth/internal/app"
	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/config"
	"github.com/ayusman/shadowdepth/internal/detector"
	"github.com/ayusman/shadowdepth/internal/store"
)

func TestAPI_SessionWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	started := time.Now().Add(-time.Minute)
	if err := s.Sessions().Create(&store.Session{ID: "sess-1", Source: "camera:0", StartedAt: started}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ev := &store.TouchEvent{SessionID: "sess-1", StartedAt: started.Add(time.Second), Frames: 3, MinDepthCM: 1.5}
	if err := s.Events().Start(ev); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List sessions
	resp, err := client.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	var listed struct {
		Sessions []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 1 || !listed.Sessions[0].Active {
		t.Fatalf("sessions = %+v, want one active session", listed.Sessions)
	}

	// 2. List its events; the touch is still open
	resp, _ = client.Get(ts.URL + "/api/sessions/sess-1/events")
	var events struct {
		Events []struct {
			ID      string  `json:"id"`
			EndedAt *string `json:"ended_at"`
		} `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&events)
	resp.Body.Close()

	if len(events.Events) != 1 || events.Events[0].EndedAt != nil {
		t.Fatalf("events = %+v, want one open event", events.Events)
	}

	// 3. Delete the session
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/sess-1", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/sessions/sess-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_ConfigPersists(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a := app.New(app.Config{
		Store:     s,
		PluginDir: tmpDir,
		Camera:    capture.NewMockCamera(nil, false),
		Detector:  detector.NewMockDetector(),
	})
	defer a.Close()

	ts := httptest.NewServer(New(Config{Store: s, App: a}))
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/config", bytes.NewBufferString(`{"touch_threshold_cm": 3}`))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/config error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// a restart reads the tuning back from the settings table
	settings, err := s.Settings().All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	cfg := config.Default()
	cfg.ApplySettings(settings)
	if cfg.Depth.TouchThresholdCM != 3 {
		t.Errorf("persisted touch threshold = %v, want 3", cfg.Depth.TouchThresholdCM)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
