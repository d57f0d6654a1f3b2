package auth

import (
	"sync"

	"github.com/mvardas/go-neighborhood-watch/internal/feed"
)

// SessionHandle is the single lock-guarded owner of the active vendor
// session and its refresh token. The coordinator writes it on every
// successful exchange; the monitoring scheduler reads it at the top of each
// poll cycle. Reads copy the session reference out under the lock, so a
// cycle already in flight keeps the session it started with even if a new
// login swaps the handle mid-cycle.
//
// The zero value is ready to use and reports unauthenticated.
type SessionHandle struct {
	mu      sync.RWMutex
	session feed.Session
	token   string
}

// Current returns the active session, or nil when no login has succeeded
// yet (or the last swap cleared it).
func (h *SessionHandle) Current() feed.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Authenticated reports whether a session is currently held.
func (h *SessionHandle) Authenticated() bool {
	return h.Current() != nil
}

// Token returns the refresh token backing the active session, as of the
// last swap or rotation. Empty when unauthenticated.
func (h *SessionHandle) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// swap atomically installs a newly authenticated session and its refresh
// token. The persistence hook runs under the same exclusive lock so a
// concurrent rotation callback cannot interleave and lose the update.
func (h *SessionHandle) swap(s feed.Session, token string, persist func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = s
	h.token = token
	if persist != nil && token != "" {
		persist(token)
	}
}

// updateToken records a vendor-side token rotation for the session already
// held. It shares the swap lock, which is the whole point: rotation may fire
// from inside a fetch on another goroutine while a new login is swapping.
func (h *SessionHandle) updateToken(token string, persist func(string)) {
	if token == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	if persist != nil {
		persist(token)
	}
}
