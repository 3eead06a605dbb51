package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	noncememory "github.com/pulseprotocolorg-cyber/pulse-go/noncestore/memory"
	"github.com/pulseprotocolorg-cyber/pulse-go/security"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer("test-server", "127.0.0.1:0", opts...)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestServerRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
		table, _ := req.Content.Parameters["table"].(string)
		return message.New(vocabulary.StatusSuccess,
			message.WithType(message.TypeResponse),
			message.WithSender("test-server"),
			message.WithReceiver(req.Envelope.Sender),
			message.WithParameters(map[string]any{"rows": 3, "table": table}),
		), nil
	})

	client := NewClient(ts.URL)
	req := message.New("ACT.QUERY.DATA",
		message.WithSender("client-agent"),
		message.WithParameters(map[string]any{"table": "users"}),
	)

	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, message.TypeResponse, resp.Type)
	assert.Equal(t, vocabulary.StatusSuccess, resp.Content.Action)
	assert.Equal(t, "users", resp.Content.Parameters["table"])
	assert.Equal(t, "client-agent", resp.Envelope.Receiver)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(0), stats.Retries)
	assert.Greater(t, stats.AvgLatency, time.Duration(0))
}

func TestServerBinaryFormat(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return nil, nil // generic success
	})

	client := NewClient(ts.URL, WithFormat(codec.FormatBinary))
	req := message.New("ACT.QUERY.DATA", message.WithSender("client-agent"))

	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, message.TypeResponse, resp.Type)
}

func TestServerUnknownActionRejected(t *testing.T) {
	_, ts := newTestServer(t)

	client := NewClient(ts.URL, WithRetries(0))
	req := message.New("ACT.QUERY.INVALID", message.WithSender("client-agent"))

	_, err := client.Send(context.Background(), req)
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, vocabulary.ErrorValidation, serr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serr.HTTPStatus)
}

func TestServerNoHandlerRegistered(t *testing.T) {
	_, ts := newTestServer(t)

	client := NewClient(ts.URL, WithRetries(0))
	req := message.New("ACT.ANALYZE.SENTIMENT", message.WithSender("client-agent"))

	_, err := client.Send(context.Background(), req)
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, vocabulary.ErrorNotFound, serr.Code)
	assert.Equal(t, http.StatusNotFound, serr.HTTPStatus)
}

func TestServerBuiltinHealthAction(t *testing.T) {
	_, ts := newTestServer(t)

	client := NewClient(ts.URL)
	req := message.New(vocabulary.InfoHealth, message.WithSender("client-agent"))

	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content.Parameters["status"])
}

func TestServerBuiltinVocabularyAction(t *testing.T) {
	_, ts := newTestServer(t)

	client := NewClient(ts.URL)
	resp, err := client.Send(context.Background(), message.New(vocabulary.InfoVocabulary, message.WithSender("client-agent")))
	require.NoError(t, err)
	assert.EqualValues(t, 1000, resp.Content.Parameters["concept_count"])
}

func TestServerSignatureRequired(t *testing.T) {
	keys := keystore.NewMemory()
	clientKey, err := keystore.GenerateAndStore(keys, "client-agent")
	require.NoError(t, err)

	nonces := noncememory.New(5 * time.Minute)
	srv, ts := newTestServer(t,
		WithKeys(keys),
		WithNonces(nonces),
		WithRequireSignature(),
	)
	srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return nil, nil
	})

	signer, err := security.NewManager(clientKey)
	require.NoError(t, err)

	t.Run("signed message accepted", func(t *testing.T) {
		client := NewClient(ts.URL, WithSigner(signer), WithRetries(0))
		resp, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
		require.NoError(t, err)
		assert.Equal(t, message.TypeResponse, resp.Type)
	})

	t.Run("replayed nonce rejected", func(t *testing.T) {
		client := NewClient(ts.URL, WithSigner(signer), WithRetries(0))
		req := message.New("ACT.QUERY.DATA", message.WithSender("client-agent"))

		_, err := client.Send(context.Background(), req)
		require.NoError(t, err)

		// Same message, same nonce.
		_, err = client.Send(context.Background(), req)
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, vocabulary.ErrorReplay, serr.Code)
	})

	t.Run("unsigned message rejected", func(t *testing.T) {
		client := NewClient(ts.URL, WithRetries(0))
		_, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, vocabulary.ErrorSignature, serr.Code)
		assert.Equal(t, http.StatusUnauthorized, serr.HTTPStatus)
	})

	t.Run("unknown sender rejected", func(t *testing.T) {
		strangerKey, err := security.GenerateKey()
		require.NoError(t, err)
		stranger, err := security.NewManager(strangerKey)
		require.NoError(t, err)

		client := NewClient(ts.URL, WithSigner(stranger), WithRetries(0))
		_, err = client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("stranger")))
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, vocabulary.ErrorSignature, serr.Code)
	})
}

func TestServerOpportunisticVerification(t *testing.T) {
	signerKey, err := security.GenerateKey()
	require.NoError(t, err)
	signer, err := security.NewManager(signerKey)
	require.NoError(t, err)

	t.Run("signed message accepted without a key store", func(t *testing.T) {
		srv, ts := newTestServer(t)
		srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
			return nil, nil
		})

		client := NewClient(ts.URL, WithSigner(signer), WithRetries(0))
		resp, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
		require.NoError(t, err)
		assert.Equal(t, message.TypeResponse, resp.Type)
	})

	t.Run("unknown sender accepted when not required", func(t *testing.T) {
		keys := keystore.NewMemory()
		srv, ts := newTestServer(t, WithKeys(keys))
		srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
			return nil, nil
		})

		client := NewClient(ts.URL, WithSigner(signer), WithRetries(0))
		_, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("stranger")))
		assert.NoError(t, err)
	})

	t.Run("known sender still verified", func(t *testing.T) {
		keys := keystore.NewMemory()
		otherKey, err := keystore.GenerateAndStore(keys, "client-agent")
		require.NoError(t, err)
		require.NotEqual(t, signerKey, otherKey)

		srv, ts := newTestServer(t, WithKeys(keys))
		srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
			return nil, nil
		})

		// Signed with a key that does not match the stored one.
		client := NewClient(ts.URL, WithSigner(signer), WithRetries(0))
		_, err = client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, vocabulary.ErrorSignature, serr.Code)
	})
}

func TestServerHandlerFailure(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Handle("ACT.QUERY.DATA", func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return nil, assert.AnError
	})

	client := NewClient(ts.URL, WithRetries(0))
	_, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, vocabulary.ErrorInternal, serr.Code)
	assert.Equal(t, http.StatusInternalServerError, serr.HTTPStatus)
}

func TestClientPing(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(ts.URL)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls int
	reply := message.New(vocabulary.StatusSuccess,
		message.WithType(message.TypeResponse),
		message.WithSender("flaky-server"),
	)
	encoded, err := codec.Encode(reply, codec.FormatJSON)
	require.NoError(t, err)

	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			http.Error(w, "temporarily broken", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(encoded)
	}))
	defer flaky.Close()

	client := NewClient(flaky.URL, WithRetries(3))
	client.backoff = time.Millisecond

	resp, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
	require.NoError(t, err)
	assert.Equal(t, message.TypeResponse, resp.Type)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(2), client.Stats().Retries)
}

func TestClientRetriesExhausted(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer broken.Close()

	client := NewClient(broken.URL, WithRetries(1))
	client.backoff = time.Millisecond

	_, err := client.Send(context.Background(), message.New("ACT.QUERY.DATA", message.WithSender("client-agent")))
	require.ErrorIs(t, err, ErrPeerUnreachable)
	assert.Equal(t, uint64(1), client.Stats().Failures)
}

func TestServerHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerRejectsGarbage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+MessagePath, "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateSelfSigned(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSigned("localhost", "127.0.0.1")
	require.NoError(t, err)

	_, err = tls.X509KeyPair(certPEM, keyPEM)
	assert.NoError(t, err)
}

func TestClientTLSConfigInsecure(t *testing.T) {
	cfg, err := ClientTLSConfig("", true)
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
}
