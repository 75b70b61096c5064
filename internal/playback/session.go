package playback

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionTracker records which track the user most recently asked to play.
// Background expansion runs check IsActive before every side effect; a
// mismatch means the user already moved on and the run must stop.
type SessionTracker struct {
	mu     sync.Mutex
	active string
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{}
}

func (s *SessionTracker) SetActive(trackID string) {
	s.mu.Lock()
	s.active = trackID
	s.mu.Unlock()
}

func (s *SessionTracker) IsActive(trackID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trackID != "" && s.active == trackID
}

func (s *SessionTracker) Clear() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// Token is a single-use revocable flag owned by one background expansion
// run. Settled is closed when the run finishes, whether it completed or
// aborted, so callers can join on it.
type Token struct {
	id      string
	aborted atomic.Bool

	settleOnce sync.Once
	settled    chan struct{}
}

func newToken() *Token {
	return &Token{
		id:      uuid.NewString(),
		settled: make(chan struct{}),
	}
}

func (t *Token) ID() string { return t.id }

func (t *Token) Aborted() bool {
	return t.aborted.Load()
}

func (t *Token) revoke() {
	t.aborted.Store(true)
}

// Settled reports run completion (normal or aborted). Revocation alone does
// not settle a token; the stale run settles it when it observes the flag.
func (t *Token) Settled() <-chan struct{} {
	return t.settled
}

func (t *Token) settle() {
	t.settleOnce.Do(func() { close(t.settled) })
}

// CancellationRegistry owns the one live token for background queue
// population. Issuing a new token always revokes the previous one first;
// that revocation is the sole cancellation mechanism.
type CancellationRegistry struct {
	mu      sync.Mutex
	current *Token
}

func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{}
}

func (r *CancellationRegistry) Issue() *Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.revoke()
	}

	r.current = newToken()
	return r.current
}

func (r *CancellationRegistry) Current() *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
