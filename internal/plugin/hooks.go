package plugin

import (
	"context"

	"github.com/ayusman/shadowdepth/internal/log"
)

// Result is the outcome of one plugin run for an event.
type Result struct {
	Plugin   string
	Response *Response
	Err      error
}

// Hooks fires events at every subscribed plugin.
type Hooks struct {
	manager  *Manager
	executor *Executor
}

// NewHooks creates Hooks over a discovered plugin set.
func NewHooks(manager *Manager, executor *Executor) *Hooks {
	return &Hooks{manager: manager, executor: executor}
}

// Fire runs the plugins subscribed to req.Event one after another and
// returns their results in plugin name order. Failures are logged and
// do not stop the remaining plugins.
func (h *Hooks) Fire(ctx context.Context, req Request) []Result {
	plugins := h.manager.ForEvent(req.Event)
	results := make([]Result, 0, len(plugins))

	for _, p := range plugins {
		if ctx.Err() != nil {
			break
		}

		resp, err := h.executor.Execute(ctx, p, &req)
		switch {
		case err != nil:
			log.Warn("plugin failed", "plugin", p.Manifest.Name, "event", req.Event, "error", err)
		case !resp.Success:
			log.Warn("plugin reported failure", "plugin", p.Manifest.Name, "event", req.Event, "error", resp.Error)
		default:
			log.Debug("plugin ran", "plugin", p.Manifest.Name, "event", req.Event)
		}

		results = append(results, Result{Plugin: p.Manifest.Name, Response: resp, Err: err})
	}
	return results
}
