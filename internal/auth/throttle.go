package auth

import (
	"sync"
	"time"
)

// FailedLoginTracker is an in-memory, best-effort per-username failed-login
// counter, grounded on original_source/safe_system/server/auth.py's
// per-user lockout window — a feature spec.md is silent on but that a
// complete login handler should carry (SPEC_FULL.md §4.E supplement). It is
// intentionally not persisted: a restart resets it, and it never changes
// the outcome of a correct password, only adds a quota rejection ahead of
// checking one after repeated failures.
type FailedLoginTracker struct {
	mu        sync.Mutex
	failures  map[string]int
	lockedAt  map[string]time.Time
	maxTries  int
	lockout   time.Duration
}

// NewFailedLoginTracker constructs a tracker locking out a username for
// lockout after maxTries consecutive failures.
func NewFailedLoginTracker(maxTries int, lockout time.Duration) *FailedLoginTracker {
	return &FailedLoginTracker{
		failures: make(map[string]int),
		lockedAt: make(map[string]time.Time),
		maxTries: maxTries,
		lockout:  lockout,
	}
}

// Allowed reports whether username may attempt a login right now.
func (f *FailedLoginTracker) Allowed(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if at, locked := f.lockedAt[username]; locked {
		if time.Since(at) < f.lockout {
			return false
		}
		delete(f.lockedAt, username)
		delete(f.failures, username)
	}
	return true
}

// RecordFailure bumps the failure count, locking the username out once it
// reaches maxTries.
func (f *FailedLoginTracker) RecordFailure(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[username]++
	if f.failures[username] >= f.maxTries {
		f.lockedAt[username] = time.Now()
	}
}

// RecordSuccess clears any accumulated failure state for username.
func (f *FailedLoginTracker) RecordSuccess(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, username)
	delete(f.lockedAt, username)
}
