package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/shadowdepth/internal/config"
	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg starts from the defaults and the environment; flags override it.
	cfg = loadConfig()
	// st is opened for every subcommand by the root pre-run hook.
	st *store.Store
)

// depthFlags maps flag names to the depth settings they override.
var depthFlags = map[string]string{
	"max-depth":        config.KeyMaxDepthCM,
	"touch-threshold":  config.KeyTouchThresholdCM,
	"shadow-threshold": config.KeyShadowThreshold,
	"window":           config.KeyWindow,
}

var rootCmd = &cobra.Command{
	Use:           "shadowdepth",
	Short:         "Hand-to-face depth estimation from cast shadows",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Init(cfg.LogLevel)

		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		var err error
		st, err = store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}

		settings, err := st.Settings().All()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		// flags given on the command line win over saved tuning
		for flag, key := range depthFlags {
			if cmd.Flags().Changed(flag) {
				delete(settings, key)
			}
		}
		cfg.ApplySettings(settings)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
	},
}

// Execute runs the root command with a context cancelled on SIGINT and
// SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if st != nil {
			st.Close()
		}
		stop()
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	c := config.Default()
	c.ApplyEnv()
	return c
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flags.StringVar(&cfg.PluginDir, "plugins", cfg.PluginDir, "Alert plugin directory")
	flags.StringVar(&cfg.CascadePath, "cascade", cfg.CascadePath, "Haar cascade used when MediaPipe is unavailable")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	flags.Float64Var(&cfg.Depth.MaxDepthCM, "max-depth", cfg.Depth.MaxDepthCM, "Depth in cm reported without a shadow")
	flags.Float64Var(&cfg.Depth.TouchThresholdCM, "touch-threshold", cfg.Depth.TouchThresholdCM, "Smoothed depth in cm below which the hand touches")
	flags.Float64Var(&cfg.Depth.ShadowThreshold, "shadow-threshold", cfg.Depth.ShadowThreshold, "Intensity drop at or below which no shadow is assumed (<= 0 uses the default)")
	flags.IntVar(&cfg.Depth.Window, "window", cfg.Depth.Window, "Smoothing window in frames")
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web" and the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(filepath.Dir(cfg.DBPath), "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
