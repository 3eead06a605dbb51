package natstransport

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseprotocolorg-cyber/pulse-go/codec"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

// startServer runs an embedded NATS server on a random port.
func startServer(t *testing.T) *server.Server {
	t.Helper()
	opts := &server.Options{
		Port:   -1, // Random available port
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func connect(t *testing.T, ns *server.Server) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func TestRequestReplyRoundTrip(t *testing.T) {
	ns := startServer(t)

	responder := NewWithConn(connect(t, ns))
	err := responder.Serve(func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return message.New(vocabulary.StatusSuccess,
			message.WithType(message.TypeResponse),
			message.WithSender("nats-server-agent"),
			message.WithReceiver(req.Envelope.Sender),
			message.WithParameters(map[string]any{"echo": req.Content.Parameters["query"]}),
		), nil
	})
	require.NoError(t, err)
	defer responder.Close()

	requester := NewWithConn(connect(t, ns), WithFormat(codec.FormatBinary))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := message.New("ACT.QUERY.DATA",
		message.WithSender("nats-client-agent"),
		message.WithParameters(map[string]any{"query": "hello world"}),
	)
	resp, err := requester.Request(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, message.TypeResponse, resp.Type)
	assert.Equal(t, vocabulary.StatusSuccess, resp.Content.Action)
	assert.Equal(t, "hello world", resp.Content.Parameters["echo"])
	assert.Equal(t, "nats-client-agent", resp.Envelope.Receiver)
}

func TestServeTwiceRejected(t *testing.T) {
	ns := startServer(t)

	tr := NewWithConn(connect(t, ns))
	noop := func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return nil, nil
	}
	require.NoError(t, tr.Serve(noop))
	defer tr.Close()

	assert.Error(t, tr.Serve(noop))
}

func TestRequestTimesOutWithoutResponder(t *testing.T) {
	ns := startServer(t)

	requester := NewWithConn(connect(t, ns), WithSubject("pulse.nobody"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := requester.Request(ctx, message.New("ACT.QUERY.DATA", message.WithSender("nats-client-agent")))
	assert.Error(t, err)
}

func TestCloseAllowsReServe(t *testing.T) {
	ns := startServer(t)

	tr := NewWithConn(connect(t, ns))
	noop := func(ctx context.Context, req *message.Message) (*message.Message, error) {
		return nil, nil
	}
	require.NoError(t, tr.Serve(noop))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Serve(noop))
	require.NoError(t, tr.Close())
}
