// Package main provides a desktop notification plugin.
// It warns when a hand touches the face, via AppleScript on macOS and
// notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/ayusman/shadowdepth/internal/plugin"
)

// Config is the plugin-specific part of the request config.
type Config struct {
	// NotifyEnd also announces the end of a touch with its duration.
	NotifyEnd bool `json:"notify_end"`
	// Sound is a macOS alert sound name played with the notification.
	Sound string `json:"sound"`
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		// the config also carries the depth tuning; unknown keys are ignored
		json.Unmarshal(req.Config, &cfg)
	}

	title, body, ok := message(req, cfg)
	if !ok {
		writeResponse(plugin.Response{Success: true})
		return
	}

	if err := notify(title, body, cfg.Sound); err != nil {
		writeResponse(plugin.Response{Error: fmt.Sprintf("notification failed: %v", err)})
		return
	}

	data, _ := json.Marshal(map[string]string{"title": title, "body": body})
	writeResponse(plugin.Response{Success: true, Data: data})
}

// message builds the notification text. It returns false when the event
// should stay silent.
func message(req plugin.Request, cfg Config) (string, string, bool) {
	switch req.Event {
	case plugin.EventTouchStart:
		return "Hand on face", fmt.Sprintf("Hand about %.1f cm from your face", req.DepthCM), true
	case plugin.EventTouchEnd:
		if !cfg.NotifyEnd {
			return "", "", false
		}
		return "Hand away", fmt.Sprintf("Touch lasted %s", req.Duration.Round(100*time.Millisecond)), true
	default:
		return "", "", false
	}
}

func notify(title, body, sound string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		if sound != "" {
			script += fmt.Sprintf(" sound name %q", sound)
		}
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", "--app-name=shadowdepth", title, body)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeResponse writes a response to stdout.
func writeResponse(resp plugin.Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
