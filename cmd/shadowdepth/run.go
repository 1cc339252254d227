package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/shadowdepth/internal/app"
	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/render"
	"github.com/ayusman/shadowdepth/internal/server"
	"github.com/ayusman/shadowdepth/internal/tray"
)

type runOptions struct {
	video string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track the webcam live and serve the web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Preview && cfg.Tray {
			return errors.New("--preview and --tray both need the main thread; pick one")
		}
		return runLive(cmd.Context(), runOpts)
	},
}

func init() {
	flags := runCmd.Flags()
	flags.IntVarP(&cfg.CameraID, "camera", "c", cfg.CameraID, "Webcam device id")
	flags.StringVar(&runOpts.video, "video", "", "Play a video file instead of the webcam")
	flags.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "HTTP listen address")
	flags.StringVar(&cfg.StaticDir, "static", "", "Web UI directory (default: search web/ and the data directory)")
	flags.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "Mirror webcam frames horizontally")
	flags.BoolVarP(&cfg.Preview, "preview", "p", false, "Show the annotated frames and the heatmap in desktop windows")
	flags.BoolVar(&cfg.Tray, "tray", false, "Show a system tray menu")
	flags.Float64Var(&cfg.MotionThresh, "motion-threshold", cfg.MotionThresh, "Percent of changed pixels that switches to the active frame rate")

	rootCmd.AddCommand(runCmd)
}

func runLive(ctx context.Context, opts runOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg := app.Config{
		Store:     st,
		PluginDir: cfg.PluginDir,
		CameraConfig: capture.CameraConfig{
			DeviceID: cfg.CameraID,
			FPS:      app.IdleFPS,
			Mirror:   cfg.Mirror,
		},
		CascadePath:  cfg.CascadePath,
		MotionThresh: cfg.MotionThresh,
		Depth:        cfg.Depth,
	}
	if opts.video != "" {
		appCfg.Camera = capture.NewFileCamera(opts.video, false)
		appCfg.Source = "file:" + opts.video
	}

	a := app.New(appCfg)
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}
	for _, p := range a.PluginManager().List() {
		log.Info("loaded plugin", "name", p.Manifest.Name, "version", p.Manifest.Version)
	}

	if err := a.Start(); err != nil {
		return err
	}
	go func() {
		select {
		case <-a.Done():
			log.Info("capture loop ended")
			cancel()
		case <-ctx.Done():
		}
	}()

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(server.Config{StaticDir: staticDir, Store: st, App: a}),
	}
	go func() {
		log.Info("starting server", "addr", cfg.Addr, "static", staticDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			cancel()
		}
	}()

	switch {
	case cfg.Tray:
		runTray(ctx, cancel, a)
	case cfg.Preview:
		runPreview(ctx, a)
	default:
		<-ctx.Done()
	}
	cancel()

	// Closing the app first ends the MJPEG streams Shutdown would wait on.
	if err := a.Close(); err != nil {
		log.Warn("closing app", "error", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	if info, ok := a.Session(); ok {
		fmt.Printf("Session %s: %d frames, %d touches\n", info.ID, info.Frames, info.Touches)
	}
	return nil
}

// runPreview shows results in desktop windows on the calling goroutine
// until the user quits or ctx ends.
func runPreview(ctx context.Context, a *app.App) {
	preview := render.NewPreview()
	defer preview.Close()

	results, unsubscribe := a.Subscribe(1)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			frame, err := render.DecodeJPEG(res.JPEG)
			if err != nil {
				continue
			}
			open := preview.Show(frame, res.IntensityDrop())
			frame.Close()
			if !open {
				return
			}
		}
	}
}

// runTray blocks in the tray event loop until Quit is chosen or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App) {
	t := tray.New(tray.Callbacks{
		Toggle: a.SetEnabled,
		Settings: func() {
			if err := openBrowser(settingsURL(cfg.Addr)); err != nil {
				log.Warn("failed to open browser", "error", err)
			}
		},
		Quit: cancel,
	})

	results, unsubscribe := a.Subscribe(1)
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case res, ok := <-results:
				if !ok {
					return
				}
				info, _ := a.Session()
				t.Update(res.Action, res.DepthCM, info.Touches)
			}
		}
	}()

	t.Run()
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
