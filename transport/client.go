package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
)

// ErrPeerUnreachable marks a send that exhausted its retries without ever
// getting a usable response.
var ErrPeerUnreachable = errors.New("peer unreachable")

// ServerError is a decoded ERROR message returned by a peer.
type ServerError struct {
	// Code is the META.ERROR concept reported by the peer.
	Code string
	// Detail is the peer's human-readable explanation.
	Detail string
	// HTTPStatus is the transport-level status that carried the error.
	HTTPStatus int
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("peer error %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("peer error %s", e.Code)
}

// ClientStats counts what a client has done so far. Counters only grow.
type ClientStats struct {
	Sent     uint64
	Retries  uint64
	Failures uint64

	// AvgLatency is the mean round-trip time of successful sends.
	AvgLatency time.Duration
}

// Client sends messages to a PULSE HTTP server.
type Client struct {
	base    string
	httpc   *http.Client
	format  codec.Format
	signer  *security.Manager
	retries int
	backoff time.Duration
	logger  *slog.Logger

	sent      atomic.Uint64
	retried   atomic.Uint64
	failures  atomic.Uint64
	latencyNs atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFormat selects the wire format for outgoing messages.
func WithFormat(format codec.Format) ClientOption {
	return func(c *Client) { c.format = format }
}

// WithSigner signs every outgoing message before encoding.
func WithSigner(signer *security.Manager) ClientOption {
	return func(c *Client) { c.signer = signer }
}

// WithRetries sets how many times a failed send is retried. Only network
// errors and 5xx responses are retried.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithTLSClientConfig sets the TLS configuration for HTTPS endpoints.
func WithTLSClientConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.httpc.Transport = &http.Transport{TLSClientConfig: cfg}
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client for the server at baseURL
// (e.g. "http://localhost:8470").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		format:  codec.FormatJSON,
		retries: 3,
		backoff: 100 * time.Millisecond,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send signs (when a signer is configured), encodes, and posts m, then
// decodes the peer's reply. ERROR replies come back as a *ServerError.
func (c *Client) Send(ctx context.Context, m *message.Message) (*message.Message, error) {
	if c.signer != nil {
		if _, err := c.signer.Sign(m); err != nil {
			return nil, fmt.Errorf("sign message: %w", err)
		}
	}

	data, err := codec.Encode(m, c.format)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	contentType := "application/octet-stream"
	if c.format == codec.FormatJSON {
		contentType = "application/json"
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.retried.Add(1)
			delay := c.backoff << (attempt - 1)
			c.logger.Debug("Retrying send",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+MessagePath, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		reply, retriable, err := c.readReply(resp)
		if err != nil && retriable {
			lastErr = err
			continue
		}
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.sent.Add(1)
		c.latencyNs.Add(int64(time.Since(start)))
		return reply, nil
	}

	c.failures.Add(1)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrPeerUnreachable, c.retries+1, lastErr)
}

// readReply decodes the HTTP response body into a message and classifies
// transport failures as retriable or not.
func (c *Client) readReply(resp *http.Response) (reply *message.Message, retriable bool, err error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		// The body may still carry a decodable ERROR message, but a 5xx
		// is transient by contract.
		return nil, true, fmt.Errorf("server returned %s", resp.Status)
	}

	m, err := codec.Decode(body)
	if err != nil {
		return nil, false, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}

	if m.Type == message.TypeError {
		detail, _ := m.Content.Parameters["detail"].(string)
		return nil, false, &ServerError{
			Code:       m.Content.Action,
			Detail:     detail,
			HTTPStatus: resp.StatusCode,
		}
	}
	return m, false, nil
}

// Ping checks the peer's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() ClientStats {
	stats := ClientStats{
		Sent:     c.sent.Load(),
		Retries:  c.retried.Load(),
		Failures: c.failures.Load(),
	}
	if stats.Sent > 0 {
		stats.AvgLatency = time.Duration(c.latencyNs.Load() / int64(stats.Sent))
	}
	return stats
}
