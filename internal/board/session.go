package board

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vocautobot/vockanban/internal/kanban"
)

type session struct {
	drag     *kanban.DragSession
	lastSeen time.Time
}

// SessionRegistry keeps one drag session per connected board client.
type SessionRegistry struct {
	newDrag func() *kanban.DragSession

	mu       sync.RWMutex
	sessions map[string]*session // keyed by session id
}

func NewSessionRegistry(newDrag func() *kanban.DragSession) *SessionRegistry {
	return &SessionRegistry{
		newDrag:  newDrag,
		sessions: make(map[string]*session),
	}
}

func (r *SessionRegistry) Open() string {
	id := ulid.Make().String()
	r.mu.Lock()
	r.sessions[id] = &session{drag: r.newDrag(), lastSeen: time.Now()}
	r.mu.Unlock()
	return id
}

// Get returns the session's drag state and marks the session as active.
func (r *SessionRegistry) Get(id string) (*kanban.DragSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s.drag, true
}

// Close drops the session. An active gesture is cancelled; transitions it
// already started keep running.
func (r *SessionRegistry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.drag.Cancel()
	}
	return ok
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were closed.
func (r *SessionRegistry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []string
	r.mu.RLock()
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if r.Close(id) {
			n++
		}
	}
	return n
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
