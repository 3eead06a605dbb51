package keystore

import (
	"sort"
	"sync"
)

// Memory is a mutex-guarded in-process key store.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]string)}
}

// Put implements Store.
func (m *Memory) Put(agentID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[agentID] = key
	return nil
}

// Get implements Store.
func (m *Memory) Get(agentID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[agentID]
	return key, ok
}

// Remove implements Store.
func (m *Memory) Remove(agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[agentID]; !ok {
		return false
	}
	delete(m.keys, agentID)
	return true
}

// Agents implements Store.
func (m *Memory) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.keys))
	for id := range m.keys {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
