// Package noncestore defines the replay-protection nonce store contract.
//
// A nonce store answers one question: has this sender used this nonce
// within the replay window? Implementations must make the lookup-and-record
// atomic, otherwise two concurrent deliveries of the same nonce could both
// observe "not seen". The in-memory store covers single-process deployments;
// the redisnonce store covers fleets that share a replay window.
package noncestore

import "context"

// Store records nonces per sender for the duration of a replay window.
type Store interface {
	// Seen atomically checks whether nonce was already recorded for
	// sender and records it if not. It returns true when the nonce was
	// seen before, meaning the message is a replay.
	Seen(ctx context.Context, sender, nonce string) (bool, error)
}
