package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the protocol version stamped into every envelope.
const Version = "1.0"

// timestampLayout matches the wire format: UTC, microsecond precision,
// trailing Z. Fixed-width fractional seconds keep the canonical form stable.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Type is the closed set of message kinds.
type Type string

const (
	TypeRequest  Type = "REQUEST"
	TypeResponse Type = "RESPONSE"
	TypeError    Type = "ERROR"
	TypeStatus   Type = "STATUS"
)

// Valid reports whether t is one of the four protocol message types.
func (t Type) Valid() bool {
	switch t {
	case TypeRequest, TypeResponse, TypeError, TypeStatus:
		return true
	}
	return false
}

// Envelope carries message metadata. Signature is the one late-bound field:
// it starts empty and is written once by security.Manager.Sign.
type Envelope struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	MessageID string `json:"message_id"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// Time parses the envelope timestamp.
func (e Envelope) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}

// Content is the message payload. Target uses the wire name "object" for
// compatibility with existing PULSE implementations. Parameter values are
// arbitrary JSON-shaped data; the vocabulary constrains only Action and
// Target.
type Content struct {
	Action     string         `json:"action"`
	Target     string         `json:"object"`
	Parameters map[string]any `json:"parameters"`
}

// Message is one unit of exchange between agents.
type Message struct {
	Envelope Envelope `json:"envelope"`
	Type     Type     `json:"type"`
	Content  Content  `json:"content"`
}

// Option configures a message under construction.
type Option func(*Message)

// WithTarget sets the target concept code.
func WithTarget(target string) Option {
	return func(m *Message) { m.Content.Target = target }
}

// WithParameters sets the content parameters.
func WithParameters(params map[string]any) Option {
	return func(m *Message) { m.Content.Parameters = params }
}

// WithSender sets the sender agent identifier.
func WithSender(sender string) Option {
	return func(m *Message) { m.Envelope.Sender = sender }
}

// WithReceiver sets the optional receiver agent identifier.
func WithReceiver(receiver string) Option {
	return func(m *Message) { m.Envelope.Receiver = receiver }
}

// WithType overrides the default REQUEST type.
func WithType(t Type) Option {
	return func(m *Message) { m.Type = t }
}

// New composes a message for action and stamps a fresh envelope: version,
// UTC timestamp, random message id and nonce. The result is not validated;
// see the package doc.
func New(action string, opts ...Option) *Message {
	m := &Message{
		Envelope: Envelope{
			Version:   Version,
			Timestamp: FormatTimestamp(time.Now()),
			Sender:    "default-agent",
			MessageID: uuid.NewString(),
			Nonce:     uuid.NewString(),
		},
		Type: TypeRequest,
		Content: Content{
			Action:     action,
			Parameters: map[string]any{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FormatTimestamp renders t in the wire timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a wire timestamp. It accepts any RFC 3339 timestamp
// with or without fractional seconds, so peers with coarser clocks decode
// cleanly.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ToMap converts the message to its generic wire shape. Empty optional
// fields become nil so the map mirrors what other implementations emit.
func (m *Message) ToMap() map[string]any {
	return map[string]any{
		"envelope": map[string]any{
			"version":    m.Envelope.Version,
			"timestamp":  m.Envelope.Timestamp,
			"sender":     m.Envelope.Sender,
			"receiver":   nullable(m.Envelope.Receiver),
			"message_id": m.Envelope.MessageID,
			"nonce":      m.Envelope.Nonce,
			"signature":  nullable(m.Envelope.Signature),
		},
		"type": string(m.Type),
		"content": map[string]any{
			"action":     m.Content.Action,
			"object":     nullable(m.Content.Target),
			"parameters": m.Content.Parameters,
		},
	}
}

// FromMap rebuilds a message from its generic wire shape. It is the inverse
// of ToMap and performs no validation.
func FromMap(data map[string]any) (*Message, error) {
	env, ok := data["envelope"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("message map missing envelope")
	}
	content, ok := data["content"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("message map missing content")
	}
	typ, _ := data["type"].(string)

	m := &Message{
		Envelope: Envelope{
			Version:   stringField(env, "version"),
			Timestamp: stringField(env, "timestamp"),
			Sender:    stringField(env, "sender"),
			Receiver:  stringField(env, "receiver"),
			MessageID: stringField(env, "message_id"),
			Nonce:     stringField(env, "nonce"),
			Signature: stringField(env, "signature"),
		},
		Type: Type(typ),
		Content: Content{
			Action: stringField(content, "action"),
			Target: stringField(content, "object"),
		},
	}
	if params, ok := content["parameters"].(map[string]any); ok {
		m.Content.Parameters = params
	} else {
		m.Content.Parameters = map[string]any{}
	}
	return m, nil
}

// MarshalJSON renders the wire shape from ToMap so optional fields encode
// as explicit nulls.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON decodes the wire shape. JSON nulls leave the corresponding
// string fields empty.
func (m *Message) UnmarshalJSON(data []byte) error {
	type wire Message
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Content.Parameters == nil {
		w.Content.Parameters = map[string]any{}
	}
	*m = Message(w)
	return nil
}

// String renders a short human-readable summary.
func (m *Message) String() string {
	return fmt.Sprintf("Message(action=%s, type=%s, id=%s)", m.Content.Action, m.Type, m.Envelope.MessageID)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
