package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/noncestore"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
	"github.com/pulseprotocolorg-cyber/pulse-go/validate"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// MessagePath is where the server accepts encoded messages.
const MessagePath = "/pulse/v1/message"

// HealthPath is the liveness probe endpoint.
const HealthPath = "/pulse/v1/health"

// Handler processes one validated request message and returns the reply.
// Returning a nil message produces a generic success RESPONSE.
type Handler func(ctx context.Context, req *message.Message) (*message.Message, error)

// Server receives encoded messages over HTTP and dispatches them to
// per-action handlers.
type Server struct {
	id      string
	addr    string
	tlsCert string
	tlsKey  string

	logger     *slog.Logger
	validator  *validate.Validator
	keys       keystore.Store
	nonces     noncestore.Store
	requireSig bool
	maxAge     time.Duration
	skew       time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	metrics *serverMetrics
	httpSrv *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithValidator replaces the default validator.
func WithValidator(v *validate.Validator) ServerOption {
	return func(s *Server) { s.validator = v }
}

// WithKeys sets the key store used to resolve sender signing keys. Without
// one, signed messages pass through unverified unless WithRequireSignature
// is set.
func WithKeys(keys keystore.Store) ServerOption {
	return func(s *Server) { s.keys = keys }
}

// WithNonces enables nonce-based replay protection.
func WithNonces(nonces noncestore.Store) ServerOption {
	return func(s *Server) { s.nonces = nonces }
}

// WithRequireSignature rejects any message that is unsigned or whose sender
// has no stored key.
func WithRequireSignature() ServerOption {
	return func(s *Server) { s.requireSig = true }
}

// WithReplayWindow overrides the freshness window and skew tolerance.
func WithReplayWindow(maxAge, skew time.Duration) ServerOption {
	return func(s *Server) {
		s.maxAge = maxAge
		s.skew = skew
	}
}

// WithServerTLS serves TLS using the given certificate and key files.
func WithServerTLS(certFile, keyFile string) ServerOption {
	return func(s *Server) {
		s.tlsCert = certFile
		s.tlsKey = keyFile
	}
}

// NewServer creates a Server that identifies itself as id in responses and
// listens on addr once ListenAndServe is called.
func NewServer(id, addr string, opts ...ServerOption) *Server {
	s := &Server{
		id:       id,
		addr:     addr,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
		maxAge:   5 * time.Minute,
		skew:     60 * time.Second,
		metrics:  newServerMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validate.New(nil)
	}
	s.registerBuiltins()
	return s
}

// Handle registers h for messages whose action is the given concept code.
// Registering twice for the same action replaces the earlier handler.
func (s *Server) Handle(action string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

func (s *Server) handler(action string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[action]
	return h, ok
}

// registerBuiltins wires the protocol's introspection actions.
func (s *Server) registerBuiltins() {
	s.handlers[vocabulary.InfoHealth] = func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return s.response(req, map[string]any{"status": "ok"}), nil
	}
	s.handlers[vocabulary.InfoVersion] = func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return s.response(req, map[string]any{"protocol_version": message.Version}), nil
	}
	s.handlers[vocabulary.InfoVocabulary] = func(ctx context.Context, req *message.Message) (*message.Message, error) {
		reg := vocabulary.Default()
		return s.response(req, map[string]any{
			"vocabulary_version": reg.Version(),
			"concept_count":      reg.TotalCount(),
		}), nil
	}
}

// Routes returns a mux with all server endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(MessagePath, s.handleMessage)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.tlsCert != "" {
			s.logger.Info("PULSE server listening with TLS", slog.String("addr", s.addr))
			err = s.httpSrv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			s.logger.Info("PULSE server listening", slog.String("addr", s.addr))
			err = s.httpSrv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	defer func() {
		s.metrics.durations.Observe(time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		s.metrics.rejected.WithLabelValues("read").Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// The reply mirrors the request's wire format. Binary payloads get
	// binary replies even when decoding fails later on.
	replyFormat := codec.FormatJSON
	if len(body) > 0 && body[0] != '{' {
		replyFormat = codec.FormatBinary
	}

	req, err := codec.Decode(body)
	if err != nil {
		s.metrics.rejected.WithLabelValues("decode").Inc()
		s.logger.Warn("Undecodable message", slog.String("error", err.Error()))
		s.writeError(w, replyFormat, http.StatusBadRequest, vocabulary.ErrorDecoding, err.Error(), nil)
		return
	}

	if reason, status := s.checkSecurity(r.Context(), req); reason != "" {
		s.metrics.rejected.WithLabelValues("security").Inc()
		s.logger.Warn("Rejected message",
			slog.String("sender", req.Envelope.Sender),
			slog.String("message_id", req.Envelope.MessageID),
			slog.String("reason", reason))
		code := vocabulary.ErrorSignature
		switch status {
		case http.StatusConflict:
			code = vocabulary.ErrorReplay
		case http.StatusInternalServerError:
			code = vocabulary.ErrorInternal
		}
		s.writeError(w, replyFormat, status, code, reason, req)
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.metrics.rejected.WithLabelValues("validation").Inc()
		s.logger.Warn("Invalid message",
			slog.String("sender", req.Envelope.Sender),
			slog.String("error", err.Error()))
		s.writeValidationError(w, replyFormat, req, err)
		return
	}

	action := req.Content.Action
	h, ok := s.handler(action)
	if !ok {
		s.metrics.received.WithLabelValues(action, "unhandled").Inc()
		s.writeError(w, replyFormat, http.StatusNotFound, vocabulary.ErrorNotFound,
			fmt.Sprintf("no handler registered for action %s", action), req)
		return
	}

	resp, err := h(r.Context(), req)
	if err != nil {
		s.metrics.received.WithLabelValues(action, "error").Inc()
		s.logger.Error("Handler failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
		s.writeError(w, replyFormat, http.StatusInternalServerError, vocabulary.ErrorInternal, err.Error(), req)
		return
	}
	if resp == nil {
		resp = s.response(req, map[string]any{"status": vocabulary.StatusSuccess})
	}
	s.metrics.received.WithLabelValues(action, "ok").Inc()

	s.signResponse(resp)
	s.writeMessage(w, replyFormat, http.StatusOK, resp)
}

// checkSecurity verifies the signature and replay indicators. It returns an
// empty reason when the message may proceed. Verification is opportunistic:
// a signature the server has no key for only fails the message when
// signatures are required.
func (s *Server) checkSecurity(ctx context.Context, req *message.Message) (reason string, status int) {
	signed := req.Envelope.Signature != ""
	if !signed {
		if s.requireSig {
			return "message is unsigned", http.StatusUnauthorized
		}
		return "", 0
	}

	var key string
	var ok bool
	if s.keys != nil {
		key, ok = s.keys.Get(req.Envelope.Sender)
	}
	if !ok {
		if s.requireSig {
			if s.keys == nil {
				return "no key store configured", http.StatusUnauthorized
			}
			return fmt.Sprintf("no key for sender %s", req.Envelope.Sender), http.StatusUnauthorized
		}
		s.logger.Debug("Accepting unverifiable signature",
			slog.String("sender", req.Envelope.Sender))
		return "", 0
	}
	mgr, err := security.NewManager(key)
	if err != nil {
		return "invalid stored key", http.StatusUnauthorized
	}
	if !mgr.Verify(req) {
		return "signature verification failed", http.StatusUnauthorized
	}

	res, err := mgr.CheckReplay(ctx, req, security.ReplayOptions{
		MaxAge:        s.maxAge,
		SkewTolerance: s.skew,
		Nonces:        s.nonces,
	})
	if err != nil {
		return fmt.Sprintf("replay check failed: %v", err), http.StatusInternalServerError
	}
	if !res.Valid {
		return res.Reason, http.StatusConflict
	}
	return "", 0
}

// response builds a RESPONSE message addressed back to req's sender.
func (s *Server) response(req *message.Message, params map[string]any) *message.Message {
	return message.New(vocabulary.StatusSuccess,
		message.WithType(message.TypeResponse),
		message.WithSender(s.id),
		message.WithReceiver(req.Envelope.Sender),
		message.WithParameters(params),
	)
}

// signResponse signs resp with the server's own key when one is stored.
func (s *Server) signResponse(resp *message.Message) {
	if s.keys == nil {
		return
	}
	key, ok := s.keys.Get(s.id)
	if !ok {
		return
	}
	mgr, err := security.NewManager(key)
	if err != nil {
		return
	}
	if _, err := mgr.Sign(resp); err != nil {
		s.logger.Warn("Failed to sign response", slog.String("error", err.Error()))
	}
}

// writeValidationError reports a validation failure, surfacing vocabulary
// suggestions when the validator produced any.
func (s *Server) writeValidationError(w http.ResponseWriter, format codec.Format, req *message.Message, err error) {
	params := map[string]any{
		"detail":      err.Error(),
		"in_reply_to": req.Envelope.MessageID,
	}
	var verr *validate.Error
	if errors.As(err, &verr) {
		params["stage"] = string(verr.Stage)
		if len(verr.Suggestions) > 0 {
			params["suggestions"] = verr.Suggestions
		}
	}
	errMsg := message.New(vocabulary.ErrorValidation,
		message.WithType(message.TypeError),
		message.WithSender(s.id),
		message.WithReceiver(req.Envelope.Sender),
		message.WithParameters(params),
	)
	s.signResponse(errMsg)
	s.writeMessage(w, format, http.StatusUnprocessableEntity, errMsg)
}

func (s *Server) writeError(w http.ResponseWriter, format codec.Format, status int, code, detail string, req *message.Message) {
	receiver := ""
	if req != nil {
		receiver = req.Envelope.Sender
	}
	params := map[string]any{"detail": detail}
	if req != nil {
		params["in_reply_to"] = req.Envelope.MessageID
	}
	errMsg := message.New(code,
		message.WithType(message.TypeError),
		message.WithSender(s.id),
		message.WithReceiver(receiver),
		message.WithParameters(params),
	)
	s.signResponse(errMsg)
	s.writeMessage(w, format, status, errMsg)
}

func (s *Server) writeMessage(w http.ResponseWriter, format codec.Format, status int, m *message.Message) {
	data, err := codec.Encode(m, format)
	if err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	if format == codec.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
