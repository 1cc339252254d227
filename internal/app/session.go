package app

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/shadow"
	"github.com/ayusman/shadowdepth/internal/store"
)

// Transition is a touch starting or ending.
type Transition struct {
	Event plugin.Event
	Touch store.TouchEvent
}

// Session is one tracking run. It exclusively owns its depth estimator, so
// two sessions never share a smoothing window. A Session is not safe for
// concurrent use.
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time

	estimator *depth.Estimator
	frames    int
	faces     int
	touches   int
	open      *store.TouchEvent
}

// NewSession creates a session with a fresh estimator.
func NewSession(source string, config depth.Config, at time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: at,
		estimator: depth.NewEstimator(config),
	}
}

// Estimator returns the session's estimator.
func (s *Session) Estimator() *depth.Estimator {
	return s.estimator
}

// Frames returns the number of observed frames.
func (s *Session) Frames() int { return s.frames }

// Faces returns the number of observed frames with a face.
func (s *Session) Faces() int { return s.faces }

// Touches returns the number of touch events started.
func (s *Session) Touches() int { return s.touches }

// Touching reports whether a touch event is open.
func (s *Session) Touching() bool { return s.open != nil }

// Observe records one frame's estimate and returns the resulting
// transition, if any. TOUCHING opens a touch event, AWAY closes it.
// WAITING frames keep the current state: a hand covering the face often
// hides it from the detector.
func (s *Session) Observe(est depth.Estimate, m *shadow.Metrics, at time.Time) *Transition {
	s.frames++
	if est.Action != depth.ActionWaiting {
		s.faces++
	}

	var drop float64
	if m != nil {
		drop = m.IntensityDrop
	}

	switch est.Action {
	case depth.ActionTouching:
		if s.open == nil {
			s.open = &store.TouchEvent{
				ID:               uuid.NewString(),
				SessionID:        s.ID,
				StartedAt:        at,
				Frames:           1,
				MinDepthCM:       est.DepthCM,
				MaxIntensityDrop: drop,
			}
			s.touches++
			return &Transition{Event: plugin.EventTouchStart, Touch: *s.open}
		}
		s.open.Frames++
		s.open.MinDepthCM = math.Min(s.open.MinDepthCM, est.DepthCM)
		s.open.MaxIntensityDrop = math.Max(s.open.MaxIntensityDrop, drop)
	case depth.ActionAway:
		return s.closeTouch(at)
	}
	return nil
}

// End closes an open touch event.
func (s *Session) End(at time.Time) *Transition {
	return s.closeTouch(at)
}

func (s *Session) closeTouch(at time.Time) *Transition {
	if s.open == nil {
		return nil
	}
	ev := *s.open
	ev.EndedAt = &at
	s.open = nil
	return &Transition{Event: plugin.EventTouchEnd, Touch: ev}
}

// SessionInfo is a read-only snapshot of the current session.
type SessionInfo struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	StartedAt time.Time    `json:"started_at"`
	Frames    int          `json:"frames"`
	Touches   int          `json:"touches"`
	Touching  bool         `json:"touching"`
	Config    depth.Config `json:"config"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		Source:    s.Source,
		StartedAt: s.StartedAt,
		Frames:    s.frames,
		Touches:   s.touches,
		Touching:  s.open != nil,
		Config:    s.estimator.Config(),
	}
}
