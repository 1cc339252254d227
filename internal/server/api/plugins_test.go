package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ayusman/shadowdepth/internal/plugin"
)

func writePlugin(t *testing.T, dir, name, script string) {
	t.Helper()

	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	manifest, _ := json.Marshal(plugin.Manifest{Name: name, Version: "1.0.0", Executable: "run.sh"})
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
}

func TestPluginHandler_ListAndRescan(t *testing.T) {
	dir := t.TempDir()
	manager := plugin.NewManager(dir)
	handler := NewPluginHandler(manager, plugin.NewExecutor(time.Second))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plugins", nil))

	var response listPluginsResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Plugins) != 0 {
		t.Fatalf("expected no plugins before rescan, got %d", len(response.Plugins))
	}

	writePlugin(t, dir, "notify", `cat >/dev/null; echo '{"success":true}'`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/plugins/rescan", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	response = listPluginsResponse{}
	json.NewDecoder(rec.Body).Decode(&response)
	if len(response.Plugins) != 1 || response.Plugins[0].Name != "notify" {
		t.Fatalf("unexpected plugins %+v", response.Plugins)
	}
	if len(response.Plugins[0].Events) != 2 {
		t.Errorf("plugin without events should list both events, got %v", response.Plugins[0].Events)
	}
}

func TestPluginHandler_Test(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	writePlugin(t, dir, "notify", `cat >/dev/null; echo '{"success":true}'`)
	writePlugin(t, dir, "broken", `exit 2`)

	manager := plugin.NewManager(dir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	handler := NewPluginHandler(manager, plugin.NewExecutor(5*time.Second))

	tests := []struct {
		path string
		code int
	}{
		{path: "/api/plugins/notify/test", code: http.StatusOK},
		{path: "/api/plugins/broken/test", code: http.StatusBadGateway},
		{path: "/api/plugins/missing/test", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
}

func TestPluginHandler_MethodNotAllowed(t *testing.T) {
	handler := NewPluginHandler(plugin.NewManager(t.TempDir()), plugin.NewExecutor(time.Second))

	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, "/api/plugins"},
		{http.MethodGet, "/api/plugins/rescan"},
		{http.MethodGet, "/api/plugins/x/test"},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
