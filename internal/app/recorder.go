package app

import (
	"encoding/json"
	"time"

	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/store"
)

// recorder writes a session and its touch events to an optional store.
type recorder struct {
	store   *store.Store
	session *Session
}

func newRecorder(s *store.Store, sess *Session) *recorder {
	r := &recorder{store: s, session: sess}
	if s == nil {
		return r
	}

	cfg, _ := json.Marshal(sess.Estimator().Config())
	err := s.Sessions().Create(&store.Session{
		ID:        sess.ID,
		Source:    sess.Source,
		Config:    cfg,
		StartedAt: sess.StartedAt,
	})
	if err != nil {
		log.Error("failed to store session", "session", sess.ID, "error", err)
		r.store = nil
	}
	return r
}

func (r *recorder) transition(t Transition) {
	if r.store == nil {
		return
	}

	ev := t.Touch
	var err error
	if t.Event == plugin.EventTouchStart {
		err = r.store.Events().Start(&ev)
	} else {
		err = r.store.Events().End(&ev)
	}
	if err != nil {
		log.Error("failed to store touch event", "event", t.Event, "error", err)
	}
}

func (r *recorder) end(frames int, at time.Time) {
	if r.store == nil {
		return
	}
	if err := r.store.Sessions().End(r.session.ID, frames, at); err != nil {
		log.Error("failed to end session", "session", r.session.ID, "error", err)
	}
}
