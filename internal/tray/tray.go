// Package tray shows the live estimate in the system tray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/shadowdepth/internal/depth"
)

// Callbacks are invoked from the tray's event goroutine. Nil entries are skipped.
type Callbacks struct {
	Toggle   func(enabled bool)
	Settings func()
	Quit     func()
}

// Tray owns the menu. Updates before the menu exists are remembered and
// applied once it is ready.
type Tray struct {
	cb Callbacks

	mu      sync.Mutex
	enabled bool
	status  string
	touches string

	toggle  *systray.MenuItem
	current *systray.MenuItem
	count   *systray.MenuItem
}

// New creates an enabled Tray.
func New(cb Callbacks) *Tray {
	return &Tray{
		cb:      cb,
		enabled: true,
		status:  statusTitle(depth.ActionWaiting, 0),
		touches: touchesTitle(0),
	}
}

// Run blocks in the systray event loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("shadowdepth")
	systray.SetTooltip("Hand-to-face depth from shadows")

	t.mu.Lock()
	t.toggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume depth estimation")
	systray.AddSeparator()
	t.current = systray.AddMenuItem(t.status, "Current estimate")
	t.current.Disable()
	t.count = systray.AddMenuItem(t.touches, "Touches in this session")
	t.count.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	settings := systray.AddMenuItem("Open Settings...", "Open the dashboard in a browser")
	quit := systray.AddMenuItem("Quit", "Quit shadowdepth")

	go func() {
		for {
			select {
			case <-t.toggle.ClickedCh:
				t.flip()
			case <-settings.ClickedCh:
				call(t.cb.Settings)
			case <-quit.ClickedCh:
				call(t.cb.Quit)
				systray.Quit()
				return
			}
		}
	}()
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// flip toggles the enabled state and reports it outside the lock.
func (t *Tray) flip() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.toggle != nil {
		t.toggle.SetTitle(toggleTitle(enabled))
	}
	t.mu.Unlock()

	if t.cb.Toggle != nil {
		t.cb.Toggle(enabled)
	}
}

// Update shows the latest estimate and touch count. Menu titles are only
// rewritten when their text changes.
func (t *Tray) Update(action depth.Action, depthCM float64, touches int) {
	status, count := statusTitle(action, depthCM), touchesTitle(touches)

	t.mu.Lock()
	defer t.mu.Unlock()

	if status != t.status {
		t.status = status
		if t.current != nil {
			t.current.SetTitle(status)
		}
	}
	if count != t.touches {
		t.touches = count
		if t.count != nil {
			t.count.SetTitle(count)
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func statusTitle(action depth.Action, depthCM float64) string {
	if action == depth.ActionWaiting {
		return "Waiting for a face"
	}
	return fmt.Sprintf("%s (%.1f cm)", action.Label(), depthCM)
}

func touchesTitle(n int) string {
	if n == 1 {
		return "1 touch"
	}
	return fmt.Sprintf("%d touches", n)
}
