// Package redisnonce provides a Redis-backed nonce store so multiple
// receivers can share one replay window.
package redisnonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pulse:nonce:"

// Store records nonces in Redis with SET NX and a TTL equal to the replay
// window. SET NX makes the lookup-and-record atomic on the server side.
type Store struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix overrides the default "pulse:nonce:" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a store backed by the Redis server at addr. Entries expire
// after ttl, which should match the receiver's replay window.
func New(ctx context.Context, addr string, ttl time.Duration, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	s := &Store{client: client, ttl: ttl, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithClient wraps an existing Redis client, for callers that manage
// their own connection pool.
func NewWithClient(client *redis.Client, ttl time.Duration, opts ...Option) *Store {
	s := &Store{client: client, ttl: ttl, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seen implements noncestore.Store.
func (s *Store) Seen(ctx context.Context, sender, nonce string) (bool, error) {
	key := s.keyPrefix + sender + ":" + nonce
	set, err := s.client.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record nonce: %w", err)
	}
	return !set, nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error { return s.client.Close() }
