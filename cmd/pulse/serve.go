package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseprotocolorg-cyber/pulse-go/config"
	"github.com/pulseprotocolorg-cyber/pulse-go/keystore"
	"github.com/pulseprotocolorg-cyber/pulse-go/message"
	"github.com/pulseprotocolorg-cyber/pulse-go/noncestore"
	noncememory "github.com/pulseprotocolorg-cyber/pulse-go/noncestore/memory"
	"github.com/pulseprotocolorg-cyber/pulse-go/noncestore/redisnonce"
	"github.com/pulseprotocolorg-cyber/pulse-go/transport"
	"github.com/pulseprotocolorg-cyber/pulse-go/vocabulary"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a PULSE receiver",
		Long: `Serve runs an HTTP receiver that decodes, verifies, and validates
every incoming message. Handlers for the built-in META.INFO actions
are registered automatically; everything else is echoed back as a
STATUS response, which makes a bare server useful as a protocol
sounding board.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			opts := []transport.ServerOption{
				transport.WithReplayWindow(cfg.Security.ReplayWindow, cfg.Security.SkewTolerance),
			}

			if cfg.Agent.KeyFile != "" {
				keys, err := keystore.NewFile(cfg.Agent.KeyFile, slog.Default())
				if err != nil {
					return fmt.Errorf("open key store: %w", err)
				}
				defer keys.Close()
				opts = append(opts, transport.WithKeys(keys))
			}
			if cfg.Server.RequireSignature {
				opts = append(opts, transport.WithRequireSignature())
			}

			nonces, closeNonces, err := buildNonceStore(cfg)
			if err != nil {
				return err
			}
			if closeNonces != nil {
				defer closeNonces()
			}
			opts = append(opts, transport.WithNonces(nonces))

			if cfg.Server.TLSCert != "" {
				opts = append(opts, transport.WithServerTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
			}

			srv := transport.NewServer(cfg.Agent.ID, cfg.Server.Addr, opts...)
			registerEchoHandlers(srv, cfg.Agent.ID)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func loadServeConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

func buildNonceStore(cfg *config.Config) (noncestore.Store, func(), error) {
	if cfg.Security.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := redisnonce.New(ctx, cfg.Security.RedisAddr, cfg.Security.ReplayWindow)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	return noncememory.New(cfg.Security.ReplayWindow), nil, nil
}

// registerEchoHandlers answers every ACT category concept with a STATUS
// acknowledgement so a freshly started server responds to anything valid.
func registerEchoHandlers(srv *transport.Server, serverID string) {
	reg := vocabulary.Default()
	for _, code := range reg.ListByCategory("ACT") {
		action := code
		srv.Handle(action, func(ctx context.Context, req *message.Message) (*message.Message, error) {
			return message.New(vocabulary.StatusPending,
				message.WithType(message.TypeStatus),
				message.WithSender(serverID),
				message.WithReceiver(req.Envelope.Sender),
				message.WithParameters(map[string]any{
					"acknowledged": req.Envelope.MessageID,
					"action":       action,
					"received_at":  message.FormatTimestamp(time.Now()),
				}),
			), nil
		})
	}
}
