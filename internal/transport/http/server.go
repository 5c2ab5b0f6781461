package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/core"
	"github.com/vovakirdan/potchat/internal/store"
)

// StompPath is where the STOMP-over-WebSocket endpoint is mounted.
const StompPath = "/ws-stomp"

// NewServer builds the gateway HTTP server. The STOMP endpoint stays outside gin so the
// WebSocket handshake can hijack the connection.
func NewServer(hub *core.Hub, st store.MessageStore, jwtCfg *auth.JWTConfig, cfg config.GatewayConfig, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle(StompPath, NewStompHandler(hub, jwtCfg, StompOptions{
		JWTRequired:        cfg.JWTRequired,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger))
	mux.Handle("/", NewRouter(hub, st, jwtCfg, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin engine with the health and REST routes.
func NewRouter(hub *core.Hub, st store.MessageStore, jwtCfg *auth.JWTConfig, cfg config.GatewayConfig, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	// Pot ids are matched on the escaped path so an encoded '/' stays inside :potId.
	router.UseRawPath = true
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok", "hub": hub.Stats()})
	})

	chatHandlers := NewChatHandlers(st, cfg.HistoryLimit, logger)
	api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
	api.GET("/users/me", chatHandlers.CurrentUser)
	api.GET("/pots/:potId/chat/messages", chatHandlers.History)

	return router
}
