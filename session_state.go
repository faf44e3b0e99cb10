package goSession

import (
	"slices"
	"sync"
)

// Status is the authenticated/unauthenticated/loading projection consumed by UIs.
type Status int

const (
	// StatusLoading is the state before [Client.Init] completes.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

// SessionState holds the current [Status] and the confirmed identity. Subscribers are
// notified on every transition, synchronously, in registration order.
type SessionState struct {
	mu       sync.RWMutex
	status   Status
	identity Identity
	hasID    bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Status)
}

func newSessionState() *SessionState {
	return &SessionState{status: StatusLoading, subs: make(map[int]func(Status))}
}

// Status returns the current status.
func (s *SessionState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Identity returns the identity confirmed by the backend, if any.
func (s *SessionState) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.hasID
}

// IsLoading reports whether the stored session has not been confirmed yet.
func (s *SessionState) IsLoading() bool { return s.Status() == StatusLoading }

// IsAuthenticated reports whether the session is signed in.
func (s *SessionState) IsAuthenticated() bool { return s.Status() == StatusAuthenticated }

// Subscribe registers fn for status transitions and returns a function that removes it.
func (s *SessionState) Subscribe(fn func(Status)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *SessionState) setAuthenticated(id *Identity) {
	s.mu.Lock()
	changed := s.status != StatusAuthenticated
	s.status = StatusAuthenticated
	if id != nil {
		s.identity = *id
		s.hasID = true
	}
	s.mu.Unlock()
	if changed {
		s.notify(StatusAuthenticated)
	}
}

func (s *SessionState) setUnauthenticated() {
	s.mu.Lock()
	changed := s.status != StatusUnauthenticated
	s.status = StatusUnauthenticated
	s.identity = Identity{}
	s.hasID = false
	s.mu.Unlock()
	if changed {
		s.notify(StatusUnauthenticated)
	}
}

func (s *SessionState) notify(st Status) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Status), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
