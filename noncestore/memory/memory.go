// Package memory provides an in-process nonce store. Replay protection is
// best-effort within a single process lifetime; use redisnonce when several
// processes must share a replay window.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store is a mutex-guarded nonce set with TTL expiry. Expired entries are
// pruned lazily on writes, so the store stays bounded by the replay window
// without a background goroutine.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// New creates a store whose entries expire after ttl.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen implements noncestore.Store.
func (s *Store) Seen(_ context.Context, sender, nonce string) (bool, error) {
	key := sender + "\x00" + nonce
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}
	s.prune(now)
	s.entries[key] = now.Add(s.ttl)
	return false, nil
}

// Len reports the number of live entries, for tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, expiry := range s.entries {
		if now.Before(expiry) {
			n++
		}
	}
	return n
}

func (s *Store) prune(now time.Time) {
	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
		}
	}
}
