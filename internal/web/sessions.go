package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/vbonduro/icewatch/internal/position"
	"github.com/vbonduro/icewatch/internal/submission"
)

// session is one browser tab: its submission workflow and the device
// position it reports.
type session struct {
	id       string
	workflow *submission.Workflow
	tracker  *position.Tracker

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionRegistry owns all live sessions. Sessions idle for longer than
// idleTimeout are dropped by Sweep.
type SessionRegistry struct {
	base        submission.Dependencies
	clock       clockwork.Clock
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionRegistry builds a workflow per session from base, giving each its
// own position tracker and a logger tagged with the session id.
func NewSessionRegistry(base submission.Dependencies, clock clockwork.Clock, idleTimeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		base:        base,
		clock:       clock,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*session),
	}
}

func (r *SessionRegistry) create() *session {
	id := uuid.NewString()
	tracker := position.NewTracker()

	deps := r.base
	deps.Position = tracker
	deps.Logger = r.base.Logger.With("session", id)

	s := &session{
		id:       id,
		workflow: submission.New(deps),
		tracker:  tracker,
		lastSeen: r.clock.Now(),
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// get returns the session and marks it as active.
func (r *SessionRegistry) get(id string) (*session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(r.clock.Now())
	}
	return s, ok
}

func (r *SessionRegistry) remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.tracker.Close()
	}
	return ok
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes idle sessions and returns how many were removed. A session
// with a save in flight is kept until the save finishes.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) && !s.workflow.Busy() {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.tracker.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.Sweep(); n > 0 {
				r.base.Logger.Debug("expired idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}
