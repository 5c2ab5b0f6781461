package stomp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	stompclient "github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/chat"
	"github.com/vovakirdan/potchat/internal/proto"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultHeartbeat      = 10 * time.Second
)

// ErrGaveUp is reported through OnDisconnect when the reconnect policy stops retrying.
var ErrGaveUp = errors.New("reconnect attempts exhausted")

// Config configures the realtime adapter.
type Config struct {
	// URL is the gateway WebSocket endpoint, e.g. ws://localhost:8080/ws-stomp.
	URL string
	// Tokens is optional. Without a usable token the adapter connects anonymously.
	Tokens    auth.TokenProvider
	Heartbeat time.Duration

	// ReconnectDelay is the fixed delay between attempts when Backoff is nil.
	ReconnectDelay time.Duration
	// Backoff builds a fresh delay policy per connection handle.
	Backoff func() backoff.BackOff

	// Location interprets zone-less timestamps in live payloads.
	Location *time.Location
	Logger   *zerolog.Logger
}

// Transport dials the gateway over STOMP-over-WebSocket. It implements chat.Transport.
type Transport struct {
	cfg Config
	log zerolog.Logger
}

var _ chat.Transport = (*Transport)(nil)

// New creates a transport. Missing durations fall back to the defaults.
func New(cfg Config) *Transport {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Heartbeat < 0 {
		cfg.Heartbeat = 0
	}
	if cfg.Backoff == nil {
		delay := cfg.ReconnectDelay
		cfg.Backoff = func() backoff.BackOff { return backoff.NewConstantBackOff(delay) }
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	l := zerolog.Nop()
	if cfg.Logger != nil {
		l = cfg.Logger.With().Str("component", "stomp").Logger()
	}
	return &Transport{cfg: cfg, log: l}
}

// Connect starts the connection goroutine for roomID and returns its handle immediately.
func (t *Transport) Connect(ctx context.Context, roomID string, l chat.Listener) chat.Conn {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cfg:      t.cfg,
		log:      t.log.With().Str("room", roomID).Logger(),
		roomID:   roomID,
		listener: l,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

// Handle is one room connection. It reconnects until Disconnect or until its context ends.
type Handle struct {
	cfg      Config
	log      zerolog.Logger
	roomID   string
	listener chat.Listener

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *stompclient.Conn
}

// Publish sends msg to the gateway without waiting for a receipt.
func (h *Handle) Publish(ctx context.Context, msg chat.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrPublishFailure, err)
	}
	body, err := json.Marshal(proto.ChatPayload{
		Type:    string(msg.Kind),
		PotID:   proto.PotID(h.roomID),
		Sender:  msg.Sender,
		Message: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrPublishFailure, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("%w: not connected", chat.ErrPublishFailure)
	}
	if err := h.conn.Send(proto.PublishDestination, proto.ContentTypeJSON, body); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrPublishFailure, err)
	}
	return nil
}

// Disconnect cancels any pending reconnect, closes the connection and waits for the
// connection goroutine to exit.
func (h *Handle) Disconnect() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *Handle) setConn(c *stompclient.Conn) {
	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	policy := h.cfg.Backoff()
	for {
		err := h.serve(ctx, policy)
		if ctx.Err() != nil {
			return
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			h.log.Error().Err(err).Msg("giving up on gateway")
			h.listener.OnDisconnect(fmt.Errorf("%w: %w: %w", chat.ErrConnectFailure, ErrGaveUp, err))
			return
		}
		h.log.Warn().Err(err).Dur("retry_in", delay).Msg("gateway connection lost")
		h.listener.OnDisconnect(fmt.Errorf("%w: %w", chat.ErrConnectFailure, err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// serve runs one connection: dial, handshake, subscribe, then pump frames until the connection ends.
func (h *Handle) serve(ctx context.Context, policy backoff.BackOff) error {
	token, err := auth.Bearer(ctx, h.cfg.Tokens)
	if err != nil {
		h.log.Debug().Err(err).Msg("connecting without token")
		token = ""
	}

	header := stdhttp.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, _, err := websocket.Dial(ctx, h.cfg.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial %s: %w", h.cfg.URL, err)
	}

	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()
	nc := websocket.NetConn(connCtx, ws, websocket.MessageText)

	opts := []func(*stompclient.Conn) error{
		stompclient.ConnOpt.Host(hostOf(h.cfg.URL)),
		stompclient.ConnOpt.HeartBeat(h.cfg.Heartbeat, h.cfg.Heartbeat),
	}
	if token != "" {
		opts = append(opts, stompclient.ConnOpt.Header("Authorization", "Bearer "+token))
	}
	conn, err := stompclient.Connect(nc, opts...)
	if err != nil {
		_ = nc.Close()
		return fmt.Errorf("stomp handshake: %w", err)
	}
	defer func() {
		h.setConn(nil)
		_ = conn.MustDisconnect()
	}()

	sub, err := conn.Subscribe(proto.Topic(h.roomID), stompclient.AckAuto)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	h.setConn(conn)
	policy.Reset()
	h.log.Info().Str("server", conn.Server()).Msg("connected to gateway")
	h.listener.OnConnect()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return errors.New("subscription closed")
			}
			if msg.Err != nil {
				return msg.Err
			}
			h.deliver(msg.Body)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Handle) deliver(body []byte) {
	msg, err := decodeMessage(body, h.cfg.Location)
	if err != nil {
		h.log.Warn().Err(err).Msg("skipping undecodable frame")
		return
	}
	h.listener.OnMessage(msg)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
