// Package adapter bridges protocol messages to external vendor APIs.
//
// An agent speaks the protocol; the adapter translates each message into
// the target service's native format, executes the call, and translates the
// response back. The Translator interface carries the service-specific
// halves; Adapter wraps a Translator with the shared pipeline, lifecycle,
// error mapping, and request statistics.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

// Translator converts between protocol messages and one service's native
// request/response formats.
type Translator interface {
	// ToNative converts a request message into the service's request
	// format (struct, map, bytes — whatever CallAPI expects).
	ToNative(m *message.Message) (any, error)

	// CallAPI executes the native request and returns the raw response.
	// Service-level failures should be returned as a *StatusError so the
	// pipeline can map them onto error concepts.
	CallAPI(ctx context.Context, nativeRequest any) (any, error)

	// FromNative converts the raw response back into a protocol message.
	FromNative(nativeResponse any) (*message.Message, error)
}

// Connector is implemented by translators that hold persistent connections
// (websockets, pools). Adapter.Connect and Disconnect delegate to it.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

// ActionSet is implemented by translators that handle only certain action
// concepts. A translator without it accepts every action.
type ActionSet interface {
	SupportedActions() []string
}

// StatusError is a service-level failure carrying the native HTTP status.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("service returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("service returned %d", e.Code)
}

// ErrUnsupportedAction marks a request whose action the translator does not
// handle.
var ErrUnsupportedAction = errors.New("unsupported action")

// Health is a point-in-time snapshot of an adapter's state.
type Health struct {
	Adapter     string  `json:"adapter"`
	BaseURL     string  `json:"base_url,omitempty"`
	Connected   bool    `json:"connected"`
	Requests    uint64  `json:"requests"`
	Errors      uint64  `json:"errors"`
	LastRequest string  `json:"last_request,omitempty"`
	ErrorRate   float64 `json:"error_rate"`
}

// Adapter runs the translation pipeline for one external service.
type Adapter struct {
	name       string
	baseURL    string
	translator Translator
	logger     *slog.Logger

	connected atomic.Bool
	requests  atomic.Uint64
	errCount  atomic.Uint64

	mu          sync.Mutex
	lastRequest string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL records the target service's base URL for health reporting.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = url }
}

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// New wraps t as the adapter named name ("openai", "binance", ...). The
// name becomes the sender of every message the adapter produces, prefixed
// with "adapter:".
func New(name string, t Translator, opts ...Option) *Adapter {
	a := &Adapter{
		name:       name,
		translator: t,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter's identifier.
func (a *Adapter) Name() string { return a.name }

// sender is the agent id this adapter signs its output with.
func (a *Adapter) sender() string { return "adapter:" + a.name }

// Send runs the full pipeline: message → native → API call → native →
// message. The returned message is a RESPONSE addressed back to m's sender.
func (a *Adapter) Send(ctx context.Context, m *message.Message) (*message.Message, error) {
	a.requests.Add(1)
	a.mu.Lock()
	a.lastRequest = message.FormatTimestamp(time.Now())
	a.mu.Unlock()

	if !a.Supports(m.Content.Action) {
		a.errCount.Add(1)
		return nil, fmt.Errorf("adapter %s: %w: %s", a.name, ErrUnsupportedAction, m.Content.Action)
	}

	native, err := a.translator.ToNative(m)
	if err != nil {
		a.errCount.Add(1)
		return nil, fmt.Errorf("adapter %s: convert request: %w", a.name, err)
	}

	raw, err := a.translator.CallAPI(ctx, native)
	if err != nil {
		a.errCount.Add(1)
		return nil, fmt.Errorf("adapter %s: call service: %w", a.name, err)
	}

	resp, err := a.translator.FromNative(raw)
	if err != nil {
		a.errCount.Add(1)
		return nil, fmt.Errorf("adapter %s: convert response: %w", a.name, err)
	}

	resp.Type = message.TypeResponse
	resp.Envelope.Sender = a.sender()
	resp.Envelope.Receiver = m.Envelope.Sender
	return resp, nil
}

// Connect establishes a persistent connection when the translator holds
// one; otherwise it only flips the connected flag.
func (a *Adapter) Connect(ctx context.Context) error {
	if c, ok := a.translator.(Connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("adapter %s: connect: %w", a.name, err)
		}
	}
	a.connected.Store(true)
	a.logger.Debug("Adapter connected", slog.String("adapter", a.name))
	return nil
}

// Disconnect releases the translator's resources.
func (a *Adapter) Disconnect() error {
	a.connected.Store(false)
	if c, ok := a.translator.(Connector); ok {
		if err := c.Disconnect(); err != nil {
			return fmt.Errorf("adapter %s: disconnect: %w", a.name, err)
		}
	}
	return nil
}

// Connected reports whether Connect has been called without a matching
// Disconnect.
func (a *Adapter) Connected() bool { return a.connected.Load() }

// Supports reports whether the translator handles the given action. A
// translator without an ActionSet accepts everything.
func (a *Adapter) Supports(action string) bool {
	s, ok := a.translator.(ActionSet)
	if !ok {
		return true
	}
	actions := s.SupportedActions()
	if len(actions) == 0 {
		return true
	}
	for _, supported := range actions {
		if supported == action {
			return true
		}
	}
	return false
}

// Health reports the adapter's connection state and request counters.
func (a *Adapter) Health() Health {
	requests := a.requests.Load()
	errs := a.errCount.Load()

	a.mu.Lock()
	last := a.lastRequest
	a.mu.Unlock()

	h := Health{
		Adapter:     a.name,
		BaseURL:     a.baseURL,
		Connected:   a.connected.Load(),
		Requests:    requests,
		Errors:      errs,
		LastRequest: last,
	}
	if requests > 0 {
		h.ErrorRate = float64(errs) / float64(requests)
	}
	return h
}

// ErrorResponse builds a standardized ERROR message from this adapter. When
// original is non-nil the error is addressed back to its sender and carries
// the message id it answers.
func (a *Adapter) ErrorResponse(code, detail string, original *message.Message) *message.Message {
	params := map[string]any{
		"error":   detail,
		"adapter": a.name,
	}
	opts := []message.Option{
		message.WithType(message.TypeError),
		message.WithSender(a.sender()),
		message.WithParameters(params),
	}
	if original != nil {
		params["in_reply_to"] = original.Envelope.MessageID
		opts = append(opts, message.WithReceiver(original.Envelope.Sender))
	}
	return message.New(code, opts...)
}

// MapStatus maps an HTTP status from a vendor API onto an error concept.
func MapStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return vocabulary.ErrorValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return vocabulary.ErrorPermission
	case http.StatusNotFound:
		return vocabulary.ErrorNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return vocabulary.ErrorTimeout
	case http.StatusTooManyRequests:
		return vocabulary.ErrorRateLimit
	case http.StatusInternalServerError, http.StatusBadGateway:
		return vocabulary.ErrorInternal
	case http.StatusServiceUnavailable:
		return vocabulary.ErrorUnavailable
	}
	return vocabulary.ErrorGeneral
}
