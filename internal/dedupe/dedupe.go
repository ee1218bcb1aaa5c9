// Package dedupe remembers recently seen keys, such as payment ids from
// webhook deliveries, for a fixed time.
package dedupe

import (
	"sync"
	"time"
)

// Set is a bounded, TTL-limited set of keys. Expired keys are dropped lazily.
type Set struct {
	mu      sync.Mutex
	seen    map[string]time.Time // key -> expiry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a Set keeping keys for ttl, holding at most maxSize keys.
func New(ttl time.Duration, maxSize int) *Set {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Set{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether key was marked and has not expired.
func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.seen[key]
	return ok && s.now().Before(exp)
}

// CheckAndMark marks key and reports whether it was already present.
func (s *Set) CheckAndMark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.seen[key]; ok && now.Before(exp) {
		return true
	}
	if len(s.seen) >= s.maxSize {
		s.pruneLocked(now)
	}
	s.seen[key] = now.Add(s.ttl)
	return false
}

// Forget removes key so a later delivery is processed again.
func (s *Set) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

// Len returns the number of keys held, expired or not.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// pruneLocked drops expired keys, then the soonest-expiring key if the set
// is still full.
func (s *Set) pruneLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
			continue
		}
		if oldestKey == "" || exp.Before(oldest) {
			oldestKey, oldest = k, exp
		}
	}
	if len(s.seen) >= s.maxSize && oldestKey != "" {
		delete(s.seen, oldestKey)
	}
}
