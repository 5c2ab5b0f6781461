package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/core"
	"github.com/vovakirdan/potchat/internal/store"
	"github.com/vovakirdan/potchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/potchat/internal/transport/http"
)

// Gateway wires the hub, the message store and the HTTP/STOMP transport into the local gateway.
type Gateway struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	jwt             *auth.JWTConfig
	log             *zerolog.Logger
}

// JWTConfig builds the token settings shared by the gateway and the token command.
func JWTConfig(cfg config.GatewayConfig) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
}

// NewGateway opens the database and builds the gateway.
func NewGateway(cfg config.GatewayConfig, logger *zerolog.Logger) (*Gateway, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtCfg := JWTConfig(cfg)
	hub := core.NewHub(st, logger)

	return &Gateway{
		server:          transporthttp.NewServer(hub, st, jwtCfg, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		jwt:             jwtCfg,
		log:             logger,
	}, nil
}

// Hub exposes the hub for stats and forced disconnects.
func (g *Gateway) Hub() *core.Hub {
	return g.hub
}

// Run listens on the configured address and serves until ctx is cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.server.Addr)
	if err != nil {
		g.cleanup()
		return fmt.Errorf("listen %s: %w", g.server.Addr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go g.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		g.log.Info().Str("addr", ln.Addr().String()).Msg("gateway listening")
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		g.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
		defer cancel()

		g.log.Info().Msg("shutting down gateway")
		err := g.server.Shutdown(shutdownCtx)
		// Hijacked WebSocket connections are not tracked by Shutdown.
		if n := g.hub.DropClients(); n > 0 {
			g.log.Info().Int("clients", n).Msg("disconnected clients")
		}
		stopHub()
		if err != nil {
			g.cleanup()
			return err
		}

		g.cleanup()
		return <-serverErr
	}
}

func (g *Gateway) cleanup() {
	if g.store == nil {
		return
	}
	if err := g.store.Close(); err != nil {
		g.log.Warn().Err(err).Msg("failed to close store")
	} else {
		g.log.Info().Msg("store closed")
	}
}
