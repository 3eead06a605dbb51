package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

const (
	// DefaultMaxAge is the freshness window for the temporal stage.
	DefaultMaxAge = 5 * time.Minute

	// DefaultSkewTolerance is how far into the future a timestamp may sit
	// before the temporal stage rejects it.
	DefaultSkewTolerance = 60 * time.Second

	// maxSuggestions caps the near-miss list on semantic failures.
	maxSuggestions = 3
)

// Validator checks messages against a vocabulary snapshot. The zero value is
// not usable; construct with New.
type Validator struct {
	registry *vocabulary.Registry

	// MaxAge and SkewTolerance configure the temporal stage.
	MaxAge        time.Duration
	SkewTolerance time.Duration

	// now is swappable for freshness tests.
	now func() time.Time
}

// New creates a validator over registry. A nil registry selects the embedded
// canonical snapshot.
func New(registry *vocabulary.Registry) *Validator {
	if registry == nil {
		registry = vocabulary.Default()
	}
	return &Validator{
		registry:      registry,
		MaxAge:        DefaultMaxAge,
		SkewTolerance: DefaultSkewTolerance,
		now:           time.Now,
	}
}

// Validate runs the structural and semantic stages. It returns nil for a
// valid message and a *Error otherwise; it never reports invalid silently.
func (v *Validator) Validate(m *message.Message) error {
	if err := v.Structural(m); err != nil {
		return err
	}
	return v.Semantic(m)
}

// ValidateFresh runs all three stages including the temporal one.
func (v *Validator) ValidateFresh(m *message.Message) error {
	if err := v.Validate(m); err != nil {
		return err
	}
	return v.Temporal(m)
}

// Structural checks envelope completeness, primitive field shapes, and the
// closed message type set.
func (v *Validator) Structural(m *message.Message) error {
	if m == nil {
		return structural("message", "message is nil")
	}
	env := m.Envelope
	if env.Version == "" {
		return structural("envelope.version", "missing protocol version")
	}
	if env.Version != message.Version {
		return structural("envelope.version",
			fmt.Sprintf("unsupported protocol version %q, only %s is supported", env.Version, message.Version))
	}
	if strings.TrimSpace(env.Sender) == "" {
		return structural("envelope.sender", "sender cannot be empty")
	}
	if strings.TrimSpace(env.MessageID) == "" {
		return structural("envelope.message_id", "message id cannot be empty")
	}
	if strings.TrimSpace(env.Nonce) == "" {
		return structural("envelope.nonce", "nonce cannot be empty")
	}
	if env.Timestamp == "" {
		return structural("envelope.timestamp", "missing timestamp")
	}
	if _, err := env.Time(); err != nil {
		return structural("envelope.timestamp", fmt.Sprintf("invalid timestamp %q", env.Timestamp))
	}
	if !m.Type.Valid() {
		return structural("type",
			fmt.Sprintf("invalid message type %q, must be one of REQUEST, RESPONSE, ERROR, STATUS", m.Type))
	}
	return nil
}

// Semantic checks the action and optional target against the vocabulary
// snapshot. Unknown concepts fail with ranked near-miss suggestions.
func (v *Validator) Semantic(m *message.Message) error {
	action := m.Content.Action
	if strings.TrimSpace(action) == "" {
		return semantic("content.action", "action cannot be empty", nil)
	}
	if !v.registry.ValidateConcept(action) {
		return semantic("content.action",
			fmt.Sprintf("unknown concept %q", action),
			v.registry.Suggest(action, maxSuggestions))
	}
	if target := m.Content.Target; target != "" {
		if strings.TrimSpace(target) == "" {
			return semantic("content.object", "target cannot be whitespace", nil)
		}
		if !v.registry.ValidateConcept(target) {
			return semantic("content.object",
				fmt.Sprintf("unknown concept %q", target),
				v.registry.Suggest(target, maxSuggestions))
		}
	}
	return nil
}

// Temporal checks that the envelope timestamp lies within the freshness
// window, allowing SkewTolerance of forward clock drift.
func (v *Validator) Temporal(m *message.Message) error {
	ts, err := m.Envelope.Time()
	if err != nil {
		return temporal("envelope.timestamp", fmt.Sprintf("invalid timestamp %q", m.Envelope.Timestamp))
	}
	age := v.now().Sub(ts)
	if age > v.MaxAge {
		return temporal("envelope.timestamp",
			fmt.Sprintf("message too old: %.0fs (max %.0fs)", age.Seconds(), v.MaxAge.Seconds()))
	}
	if age < -v.SkewTolerance {
		return temporal("envelope.timestamp",
			fmt.Sprintf("message timestamp %.0fs in the future (max skew %.0fs)", -age.Seconds(), v.SkewTolerance.Seconds()))
	}
	return nil
}
