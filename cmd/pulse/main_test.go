package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"table=users", "limit=10", "ratio=0.5", "dry_run=true"})
	require.NoError(t, err)

	assert.Equal(t, "users", params["table"])
	assert.Equal(t, int64(10), params["limit"])
	assert.Equal(t, 0.5, params["ratio"])
	assert.Equal(t, true, params["dry_run"])
}

func TestParseParamsRejectsMalformed(t *testing.T) {
	_, err := parseParams([]string{"missing-separator"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)
}

func TestWriteEncodedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg.bin")

	m := message.New("ACT.QUERY.DATA", message.WithSender("cli-test"))
	require.NoError(t, writeEncoded(m, "binary", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "ACT.QUERY.DATA", decoded.Content.Action)
	assert.Equal(t, "cli-test", decoded.Envelope.Sender)
}

func TestWriteEncodedRejectsUnknownFormat(t *testing.T) {
	m := message.New("ACT.QUERY.DATA")
	err := writeEncoded(m, "xml", filepath.Join(t.TempDir(), "msg"))
	assert.Error(t, err)
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.pulse", "b.pulse", filepath.Join("nested", "c.pulse")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	paths, err := expandGlobs([]string{filepath.Join(dir, "**", "*.pulse")})
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	// Plain paths pass through even when they do not exist yet.
	paths, err = expandGlobs([]string{"/no/such/file.pulse"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/no/such/file.pulse"}, paths)
}

func TestKeygenRequiresKeyFileForAgentID(t *testing.T) {
	cmd := keygenCmd()
	cmd.SetArgs([]string{"my-agent"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key-file")
}

func TestKeygenStoresKeyForAgent(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keys.yaml")

	cmd := keygenCmd()
	cmd.SetArgs([]string{"my-agent", "--key-file", keyFile})
	require.NoError(t, cmd.Execute())

	store, err := keystore.NewFile(keyFile, nil)
	require.NoError(t, err)
	defer store.Close()

	key, ok := store.Get("my-agent")
	assert.True(t, ok)
	assert.NotEmpty(t, key)
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"create", "validate", "sign", "verify", "encode", "decode", "vocab", "keygen", "serve", "send", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
