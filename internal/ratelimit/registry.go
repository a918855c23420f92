package ratelimit

import (
	"sync"
	"time"
)

// Buffer is added on top of Reddit's advertised retry-after so we never
// knock on the door the instant the window reopens.
const Buffer = 5 * time.Second

// Registry tracks per-token rate-limit cooldowns imposed by Reddit.
// Entries are process-local and expire implicitly: once now passes the
// stored reset time the token is simply no longer considered limited.
// Tokens are high-entropy bearer strings, so key collisions between users
// are not a practical concern.
type Registry struct {
	mu      sync.Mutex
	resetAt map[string]time.Time
}

func New() *Registry {
	return &Registry{
		resetAt: make(map[string]time.Time),
	}
}

// IsLimited reports whether token is inside a cooldown window at now.
// The returned seconds are rounded up so a caller sleeping that long is
// guaranteed to land past the reset time.
func (r *Registry) IsLimited(token string, now time.Time) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.resetAt[token]
	if !ok || !now.Before(reset) {
		return 0, false
	}

	secs := int((reset.Sub(now) + time.Second - 1) / time.Second)
	return secs, true
}

// SetLimit records a cooldown for token lasting retryAfterSeconds plus the
// safety buffer, starting at now. An existing entry is overwritten.
func (r *Registry) SetLimit(token string, retryAfterSeconds int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetAt[token] = now.Add(time.Duration(retryAfterSeconds)*time.Second + Buffer)
}

// Clear drops the cooldown for token. Returns false if no entry existed.
func (r *Registry) Clear(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.resetAt[token]; !ok {
		return false
	}
	delete(r.resetAt, token)
	return true
}
