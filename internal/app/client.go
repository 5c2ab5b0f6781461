package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/api"
	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/chat"
	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/transport/stomp"
)

// Client bundles the history loader, identity lookup and realtime transport of the chat client.
type Client struct {
	API       *api.Client
	Transport *stomp.Transport
	log       *zerolog.Logger
}

// Tokens picks the token source: an inline token wins over a token file.
func Tokens(cfg config.Config) auth.TokenProvider {
	switch {
	case cfg.Token != "":
		return auth.StaticToken(cfg.Token)
	case cfg.TokenFile != "":
		return auth.FileToken{Path: cfg.TokenFile}
	default:
		return nil
	}
}

// NewClient builds the client side from configuration.
func NewClient(cfg config.Config, logger *zerolog.Logger) (*Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tokens := Tokens(cfg)

	apiClient, err := api.New(cfg.APIURL, tokens, api.WithLocation(loc), api.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	transport := stomp.New(stomp.Config{
		URL:            cfg.GatewayURL,
		Tokens:         tokens,
		Heartbeat:      cfg.Heartbeat,
		ReconnectDelay: cfg.ReconnectDelay,
		Location:       loc,
		Logger:         logger,
	})

	return &Client{API: apiClient, Transport: transport, log: logger}, nil
}

// OpenSession resolves the local identity and opens a chat session for roomID.
func (c *Client) OpenSession(ctx context.Context, roomID string) (*chat.Session, error) {
	me, err := c.API.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return chat.Open(ctx, chat.Options{
		RoomID:    roomID,
		LocalUser: me.Nickname,
		History:   c.API,
		Transport: c.Transport,
		Logger:    c.log,
	})
}
