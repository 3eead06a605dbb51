package security

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/noncestore"
)

// KeyBytes is the length of generated signing keys.
const KeyBytes = 32

// Manager signs and verifies messages with one pre-shared key. Key
// resolution (agent id → key) is the caller's concern; see keystore.
type Manager struct {
	key []byte

	// now is swappable for replay-window tests.
	now func() time.Time
}

// NewManager creates a manager around key. The key is typically the output
// of GenerateKey, but any non-empty byte string works for HMAC.
func NewManager(key string) (*Manager, error) {
	if key == "" {
		return nil, fmt.Errorf("signing key cannot be empty")
	}
	return &Manager{key: []byte(key), now: time.Now}, nil
}

// GenerateKey returns a fresh random 32-byte key, base64url-encoded, from
// the operating system's CSPRNG.
func GenerateKey() (string, error) {
	raw := make([]byte, KeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Sign computes the HMAC-SHA256 signature over m's canonical form, writes
// it into the envelope, and returns it hex-encoded.
func (s *Manager) Sign(m *message.Message) (string, error) {
	canonical, err := CanonicalForm(m)
	if err != nil {
		return "", err
	}
	sig := s.mac(canonical)
	m.Envelope.Signature = sig
	return sig, nil
}

// Verify recomputes m's signature and compares it to the one stored in the
// envelope using a constant-time comparison. It returns false for missing,
// mismatched, or tampered signatures; it never returns an error to the
// caller because a failed verification is an expected outcome, not an
// exceptional one.
func (s *Manager) Verify(m *message.Message) bool {
	return s.VerifyAgainst(m, m.Envelope.Signature)
}

// VerifyAgainst verifies m against an explicitly supplied signature.
func (s *Manager) VerifyAgainst(m *message.Message, expected string) bool {
	if expected == "" {
		return false
	}
	canonical, err := CanonicalForm(m)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(s.mac(canonical)), []byte(expected))
}

func (s *Manager) mac(canonical []byte) string {
	h := hmac.New(sha256.New, s.key)
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalForm renders the deterministic byte form used as signing input:
// compact JSON with sorted keys over the envelope (signature excluded),
// type, and content.
func CanonicalForm(m *message.Message) ([]byte, error) {
	shape := m.ToMap()
	if env, ok := shape["envelope"].(map[string]any); ok {
		delete(env, "signature")
	}
	data, err := json.Marshal(shape)
	if err != nil {
		return nil, fmt.Errorf("canonicalize message: %w", err)
	}
	return data, nil
}

// ReplayOptions configures CheckReplay. The zero value selects a five
// minute window with sixty seconds of forward clock skew and no nonce
// store.
type ReplayOptions struct {
	// MaxAge is the replay window. Zero means five minutes.
	MaxAge time.Duration

	// SkewTolerance bounds acceptable forward clock drift. Zero means
	// sixty seconds.
	SkewTolerance time.Duration

	// Nonces, when non-nil, is consulted for nonce uniqueness and records
	// the nonce of every accepted message.
	Nonces noncestore.Store
}

// ReplayResult is the outcome of a replay-protection check.
type ReplayResult struct {
	// Valid is true when every requested indicator passed.
	Valid bool

	// TimestampOK reports the freshness check outcome.
	TimestampOK bool

	// NonceChecked reports whether a nonce store was consulted.
	NonceChecked bool

	// NonceUnique reports the uniqueness outcome when NonceChecked.
	NonceUnique bool

	// Age is how old the message was at check time. Negative values mean
	// the sender's clock runs ahead of ours.
	Age time.Duration

	// Reason explains the failure when Valid is false.
	Reason string
}

// CheckReplay evaluates m's replay-protection indicators: timestamp
// freshness and, when a nonce store is configured, nonce uniqueness for the
// sending agent. The nonce store records the nonce on first sight.
func (s *Manager) CheckReplay(ctx context.Context, m *message.Message, opts ReplayOptions) (ReplayResult, error) {
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 5 * time.Minute
	}
	skew := opts.SkewTolerance
	if skew == 0 {
		skew = 60 * time.Second
	}

	res := ReplayResult{}

	ts, err := m.Envelope.Time()
	if err != nil {
		res.Reason = fmt.Sprintf("invalid timestamp %q", m.Envelope.Timestamp)
		return res, nil
	}
	res.Age = s.now().Sub(ts)
	switch {
	case res.Age > maxAge:
		res.Reason = fmt.Sprintf("message too old: %.1fs (max %.0fs)", res.Age.Seconds(), maxAge.Seconds())
		return res, nil
	case res.Age < -skew:
		res.Reason = fmt.Sprintf("message timestamp %.1fs in the future", -res.Age.Seconds())
		return res, nil
	}
	res.TimestampOK = true

	if opts.Nonces != nil {
		res.NonceChecked = true
		if m.Envelope.Nonce == "" {
			res.Reason = "missing nonce"
			return res, nil
		}
		seen, err := opts.Nonces.Seen(ctx, m.Envelope.Sender, m.Envelope.Nonce)
		if err != nil {
			return res, fmt.Errorf("nonce lookup: %w", err)
		}
		if seen {
			res.Reason = "duplicate nonce: message was already delivered"
			return res, nil
		}
		res.NonceUnique = true
	}

	res.Valid = true
	return res, nil
}
