package pulse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/noncestore/memory"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
	"github.com/pulseprotocolorg-cyber/pulse-go/validate"
)

func TestNewValidatesByDefault(t *testing.T) {
	m, err := New("ACT.QUERY.DATA",
		WithTarget("ENT.DATA.TEXT"),
		WithParameters(map[string]any{"query": "hello world"}),
		WithSender("agent-a"),
	)
	require.NoError(t, err)
	assert.Equal(t, message.TypeRequest, m.Type)
	assert.NotEmpty(t, m.Envelope.MessageID)
}

func TestNewRejectsUnknownActionWithSuggestions(t *testing.T) {
	_, err := New("ACT.QUERY.INVALID")
	require.Error(t, err)

	var verr *validate.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, validate.StageSemantic, verr.Stage)
	assert.Contains(t, verr.Suggestions, "ACT.QUERY.DATA")
}

func TestWithoutValidationSkipsChecks(t *testing.T) {
	m, err := New("TOTALLY.MADE.UP", WithoutValidation())
	require.NoError(t, err)
	assert.Equal(t, "TOTALLY.MADE.UP", m.Content.Action)

	// The composed message still fails when validated explicitly.
	assert.Error(t, validate.New(nil).Validate(m))
}

// TestFullProducerConsumerFlow walks the whole pipeline: construct,
// validate, sign, encode, decode, verify, replay-check, re-validate.
func TestFullProducerConsumerFlow(t *testing.T) {
	key, err := security.GenerateKey()
	require.NoError(t, err)
	mgr, err := security.NewManager(key)
	require.NoError(t, err)

	m, err := New("ACT.QUERY.DATA",
		WithTarget("ENT.DATA.TEXT"),
		WithParameters(map[string]any{"query": "hello world"}),
		WithSender("agent-a"),
		WithReceiver("agent-b"),
	)
	require.NoError(t, err)

	_, err = mgr.Sign(m)
	require.NoError(t, err)

	for _, format := range []codec.Format{codec.FormatJSON, codec.FormatBinary, codec.FormatCompact} {
		t.Run(string(format), func(t *testing.T) {
			wire, err := codec.Encode(m, format)
			require.NoError(t, err)

			received, err := codec.Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, m.Envelope, received.Envelope)

			// Signature survives the round trip and verifies.
			assert.True(t, mgr.Verify(received))

			// Replay indicators pass for a fresh message.
			res, err := mgr.CheckReplay(context.Background(), received, security.ReplayOptions{
				Nonces: memory.New(5 * time.Minute),
			})
			require.NoError(t, err)
			assert.True(t, res.Valid)

			// Receiver-side re-validation before dispatch.
			assert.NoError(t, validate.New(nil).ValidateFresh(received))
		})
	}
}

func TestCrossKeyVerificationFails(t *testing.T) {
	keyA, err := security.GenerateKey()
	require.NoError(t, err)
	keyB, err := security.GenerateKey()
	require.NoError(t, err)

	mgrA, err := security.NewManager(keyA)
	require.NoError(t, err)
	mgrB, err := security.NewManager(keyB)
	require.NoError(t, err)

	m, err := New("ACT.QUERY.DATA", WithSender("agent-a"))
	require.NoError(t, err)
	_, err = mgrA.Sign(m)
	require.NoError(t, err)

	assert.True(t, mgrA.Verify(m))
	assert.False(t, mgrB.Verify(m))
}
