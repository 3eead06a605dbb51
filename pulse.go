package pulse

import (
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/validate"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

// Option configures message construction.
type Option func(*settings)

type settings struct {
	msgOpts  []message.Option
	registry *vocabulary.Registry
	validate bool
}

// WithTarget sets the target concept code.
func WithTarget(target string) Option {
	return func(s *settings) { s.msgOpts = append(s.msgOpts, message.WithTarget(target)) }
}

// WithParameters sets the content parameters.
func WithParameters(params map[string]any) Option {
	return func(s *settings) { s.msgOpts = append(s.msgOpts, message.WithParameters(params)) }
}

// WithSender sets the sender agent identifier.
func WithSender(sender string) Option {
	return func(s *settings) { s.msgOpts = append(s.msgOpts, message.WithSender(sender)) }
}

// WithReceiver sets the optional receiver agent identifier.
func WithReceiver(receiver string) Option {
	return func(s *settings) { s.msgOpts = append(s.msgOpts, message.WithReceiver(receiver)) }
}

// WithType overrides the default REQUEST message type.
func WithType(t message.Type) Option {
	return func(s *settings) { s.msgOpts = append(s.msgOpts, message.WithType(t)) }
}

// WithRegistry validates against a specific vocabulary snapshot instead of
// the embedded canonical one.
func WithRegistry(r *vocabulary.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithoutValidation skips construction-time validation. The message can
// still be validated later with a validate.Validator.
func WithoutValidation() Option {
	return func(s *settings) { s.validate = false }
}

// New composes a message for action, stamps a fresh envelope, and validates
// it (structural and semantic stages). A failed validation returns a
// *validate.Error carrying the offending field and, for unknown concepts,
// ranked near-miss suggestions.
func New(action string, opts ...Option) (*message.Message, error) {
	s := settings{validate: true}
	for _, opt := range opts {
		opt(&s)
	}

	m := message.New(action, s.msgOpts...)
	if !s.validate {
		return m, nil
	}
	if err := validate.New(s.registry).Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
