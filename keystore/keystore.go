// Package keystore associates agent identifiers with signing keys.
//
// The security manager deliberately takes a key, not an agent id; key
// resolution happens here, at the edge. The in-memory store suits tests and
// single-process agents. The file store persists keys as YAML and hot
// reloads on change, which keeps long-running receivers current when keys
// rotate underneath them. Neither store is a substitute for a proper
// secrets manager in hostile environments.
package keystore

import (
	"fmt"

	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

// Store resolves and manages per-agent signing keys.
type Store interface {
	// Put stores key for agentID, replacing any previous key.
	Put(agentID, key string) error

	// Get returns the key for agentID and whether one exists.
	Get(agentID string) (string, bool)

	// Remove deletes the key for agentID, reporting whether one existed.
	Remove(agentID string) bool

	// Agents lists all agent ids with stored keys, sorted.
	Agents() []string
}

// GenerateAndStore creates a fresh key for agentID, stores it, and returns
// it.
func GenerateAndStore(s Store, agentID string) (string, error) {
	key, err := security.GenerateKey()
	if err != nil {
		return "", err
	}
	if err := s.Put(agentID, key); err != nil {
		return "", fmt.Errorf("store key for %s: %w", agentID, err)
	}
	return key, nil
}
