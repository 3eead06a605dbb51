// Package natstransport carries PULSE messages over NATS request/reply.
//
// Each exchange is one request message and one reply on the configured
// subject. Servers join a queue group so multiple instances share the load.
// The wire payload is identical to what the HTTP transport sends: a tagged,
// encoded message.
package natstransport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "pulse.messages"

// queueGroup shares the subject across server instances.
const queueGroup = "pulse-servers"

// Handler processes one decoded request and returns the reply. A nil reply
// sends nothing back, which times the requester out.
type Handler func(ctx context.Context, req *message.Message) (*message.Message, error)

// Transport is a PULSE endpoint on a NATS connection. It can act as a
// requester, a responder, or both.
type Transport struct {
	conn    *nats.Conn
	ownConn bool
	subject string
	format  codec.Format
	signer  *security.Manager
	logger  *slog.Logger
	sub     *nats.Subscription
}

// Option configures a Transport.
type Option func(*Transport)

// WithSubject overrides the exchange subject.
func WithSubject(subject string) Option {
	return func(t *Transport) { t.subject = subject }
}

// WithFormat selects the wire format for outgoing messages.
func WithFormat(format codec.Format) Option {
	return func(t *Transport) { t.format = format }
}

// WithSigner signs outgoing messages.
func WithSigner(signer *security.Manager) Option {
	return func(t *Transport) { t.signer = signer }
}

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// Dial connects to the NATS server at url and returns a Transport that owns
// the connection.
func Dial(url string, opts ...Option) (*Transport, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	t := NewWithConn(conn, opts...)
	t.ownConn = true
	return t, nil
}

// NewWithConn wraps an existing NATS connection. Closing the Transport does
// not close a connection it does not own.
func NewWithConn(conn *nats.Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:    conn,
		subject: DefaultSubject,
		format:  codec.FormatJSON,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request sends m and waits for the peer's reply. The context bounds the
// whole exchange.
func (t *Transport) Request(ctx context.Context, m *message.Message) (*message.Message, error) {
	if t.signer != nil {
		if _, err := t.signer.Sign(m); err != nil {
			return nil, fmt.Errorf("sign message: %w", err)
		}
	}

	data, err := codec.Encode(m, t.format)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	reply, err := t.conn.RequestWithContext(ctx, t.subject, data)
	if err != nil {
		return nil, fmt.Errorf("request on %s: %w", t.subject, err)
	}

	resp, err := codec.Decode(reply.Data)
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return resp, nil
}

// Serve subscribes to the subject in a queue group and dispatches every
// request to h. It returns immediately; handling happens on NATS's
// delivery goroutines until Close.
func (t *Transport) Serve(h Handler) error {
	if t.sub != nil {
		return fmt.Errorf("already serving on %s", t.subject)
	}

	sub, err := t.conn.QueueSubscribe(t.subject, queueGroup, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := codec.Decode(msg.Data)
		if err != nil {
			t.logger.Warn("Undecodable NATS message", slog.String("error", err.Error()))
			return
		}

		resp, err := h(ctx, req)
		if err != nil {
			t.logger.Error("NATS handler failed",
				slog.String("action", req.Content.Action),
				slog.String("error", err.Error()))
			return
		}
		if resp == nil || msg.Reply == "" {
			return
		}

		data, err := codec.Encode(resp, t.format)
		if err != nil {
			t.logger.Error("Failed to encode NATS reply", slog.String("error", err.Error()))
			return
		}
		if err := msg.Respond(data); err != nil {
			t.logger.Warn("Failed to send NATS reply", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}
	t.sub = sub
	return nil
}

// Close stops serving and, when the Transport owns the connection, drains
// and closes it.
func (t *Transport) Close() error {
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			return err
		}
		t.sub = nil
	}
	if t.ownConn {
		return t.conn.Drain()
	}
	return nil
}
