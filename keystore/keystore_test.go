package keystore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemory()

	require.NoError(t, s.Put("agent-1", "key-1"))
	require.NoError(t, s.Put("agent-2", "key-2"))

	key, ok := s.Get("agent-1")
	assert.True(t, ok)
	assert.Equal(t, "key-1", key)

	_, ok = s.Get("agent-3")
	assert.False(t, ok)

	assert.Equal(t, []string{"agent-1", "agent-2"}, s.Agents())

	assert.True(t, s.Remove("agent-1"))
	assert.False(t, s.Remove("agent-1"))
	_, ok = s.Get("agent-1")
	assert.False(t, ok)
}

func TestGenerateAndStore(t *testing.T) {
	s := NewMemory()

	key, err := GenerateAndStore(s, "agent-1")
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	stored, ok := s.Get("agent-1")
	assert.True(t, ok)
	assert.Equal(t, key, stored)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")

	s, err := NewFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put("agent-1", "key-1"))
	require.NoError(t, s.Close())

	// A fresh store over the same file sees the key.
	reopened, err := NewFile(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	key, ok := reopened.Get("agent-1")
	assert.True(t, ok)
	assert.Equal(t, "key-1", key)
}

func TestFileStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")

	s, err := NewFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("agent-1", "key-1"))
	require.NoError(t, s.Put("agent-2", "key-2"))
	assert.True(t, s.Remove("agent-1"))
	assert.Equal(t, []string{"agent-2"}, s.Agents())
}

func TestFileStoreHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")

	s, err := NewFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	// Simulate an external key rotation.
	err = os.WriteFile(path, []byte("keys:\n  agent-9: rotated-key\n"), 0o600)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		key, ok := s.Get("agent-9")
		return ok && key == "rotated-key"
	}, 3*time.Second, 20*time.Millisecond, "watcher should pick up the external write")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, err := NewFile(path, nil)
	assert.Error(t, err)
}
