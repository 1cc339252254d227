// Package config provides runtime configuration for shadowdepth.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/ayusman/shadowdepth/internal/depth"
)

// Default application settings.
const (
	DefaultAddr         = ":8080"
	DefaultMotionThresh = 1.0
	DefaultDataDirName  = ".shadowdepth"
)

// Setting keys persisted in the store.
const (
	KeyMaxDepthCM       = "depth.max_depth_cm"
	KeyTouchThresholdCM = "depth.touch_threshold_cm"
	KeyShadowThreshold  = "depth.shadow_threshold"
	KeyWindow           = "depth.window"
)

// Config holds all runtime settings.
type Config struct {
	CameraID     int
	Addr         string
	DataDir      string
	DBPath       string
	PluginDir    string
	CascadePath  string
	StaticDir    string
	LogLevel     string
	MotionThresh float64
	Mirror       bool
	Preview      bool
	Tray         bool
	Depth        depth.Config
}

// Default returns a Config rooted at ~/.shadowdepth.
func Default() Config {
	dataDir := DefaultDataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DefaultDataDirName)
	}

	return Config{
		CameraID:     0,
		Addr:         DefaultAddr,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "shadowdepth.db"),
		PluginDir:    filepath.Join(dataDir, "plugins"),
		LogLevel:     "info",
		MotionThresh: DefaultMotionThresh,
		Mirror:       true,
		Depth:        depth.DefaultConfig(),
	}
}

// ApplyEnv overrides fields from SHADOWDEPTH_* environment variables.
// Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SHADOWDEPTH_CAMERA"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.CameraID = id
		}
	}
	if v := os.Getenv("SHADOWDEPTH_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("SHADOWDEPTH_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("SHADOWDEPTH_PLUGINS"); v != "" {
		c.PluginDir = v
	}
	if v := os.Getenv("SHADOWDEPTH_CASCADE"); v != "" {
		c.CascadePath = v
	}
	if v := os.Getenv("SHADOWDEPTH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.ApplySettings(map[string]string{
		KeyMaxDepthCM:       os.Getenv("SHADOWDEPTH_MAX_DEPTH_CM"),
		KeyTouchThresholdCM: os.Getenv("SHADOWDEPTH_TOUCH_THRESHOLD_CM"),
		KeyShadowThreshold:  os.Getenv("SHADOWDEPTH_SHADOW_THRESHOLD"),
		KeyWindow:           os.Getenv("SHADOWDEPTH_WINDOW"),
	})
}

// ApplySettings overrides depth tuning from persisted key/value settings.
// Missing, unparseable and non-positive values are ignored.
func (c *Config) ApplySettings(settings map[string]string) {
	if f, ok := positiveFloat(settings[KeyMaxDepthCM]); ok {
		c.Depth.MaxDepthCM = f
	}
	if f, ok := positiveFloat(settings[KeyTouchThresholdCM]); ok {
		c.Depth.TouchThresholdCM = f
	}
	if f, ok := positiveFloat(settings[KeyShadowThreshold]); ok {
		c.Depth.ShadowThreshold = f
	}
	if n, err := strconv.Atoi(settings[KeyWindow]); err == nil && n > 0 {
		c.Depth.Window = n
	}
}

// DepthSettings converts depth tuning into persisted key/value settings.
func DepthSettings(d depth.Config) map[string]string {
	return map[string]string{
		KeyMaxDepthCM:       strconv.FormatFloat(d.MaxDepthCM, 'g', -1, 64),
		KeyTouchThresholdCM: strconv.FormatFloat(d.TouchThresholdCM, 'g', -1, 64),
		KeyShadowThreshold:  strconv.FormatFloat(d.ShadowThreshold, 'g', -1, 64),
		KeyWindow:           strconv.Itoa(d.Window),
	}
}

// EnsureDataDir creates the data directory.
func (c Config) EnsureDataDir() error {
	return os.MkdirAll(filepath.Dir(c.DBPath), 0755)
}

func positiveFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
