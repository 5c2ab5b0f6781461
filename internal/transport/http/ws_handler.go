package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/core"
	"github.com/vovakirdan/potchat/internal/proto"
	"github.com/vovakirdan/potchat/internal/utils"
)

const (
	handshakeTimeout = 10 * time.Second
	stompVersion     = "1.2"
	serverName       = "potchat-gateway"
)

var (
	errClientDisconnect = errors.New("client sent DISCONNECT")
	errKicked           = errors.New("dropped by hub")
)

// StompOptions configures the STOMP endpoint.
type StompOptions struct {
	JWTRequired        bool
	RateLimitPerMinute int
}

// StompHandler upgrades HTTP connections, speaks STOMP over the WebSocket and bridges frames to core.Client.
type StompHandler struct {
	hub    *core.Hub
	jwtCfg *auth.JWTConfig
	opts   StompOptions
	log    *zerolog.Logger
}

// NewStompHandler builds a new STOMP-over-WebSocket handler.
func NewStompHandler(hub *core.Hub, jwtCfg *auth.JWTConfig, opts StompOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &StompHandler{hub: hub, jwtCfg: jwtCfg, opts: opts, log: logger}
}

// stompConn is one accepted connection. Frames are written from both loops, so writes are serialized.
type stompConn struct {
	nc     net.Conn
	reader *frame.Reader

	writeMu sync.Mutex
	writer  *frame.Writer

	subsMu   sync.Mutex
	subIDs   map[string]string // subscription id -> room
	rooms    map[string]string // room -> subscription id
	receipts map[string]string // room -> receipt owed once the hub confirms the subscription
}

func (sc *stompConn) write(f *frame.Frame) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.writer.Write(f)
}

func (sc *stompConn) subscriptionFor(room string) (string, bool) {
	sc.subsMu.Lock()
	defer sc.subsMu.Unlock()
	id, ok := sc.rooms[room]
	return id, ok
}

func (h *StompHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	nc := websocket.NetConn(ctx, conn, websocket.MessageText)
	defer nc.Close()

	sc := &stompConn{
		nc:       nc,
		reader:   frame.NewReader(nc),
		writer:   frame.NewWriter(nc),
		subIDs:   make(map[string]string),
		rooms:    make(map[string]string),
		receipts: make(map[string]string),
	}

	nickname, authenticated, err := h.handshake(r, sc)
	if err != nil {
		h.log.Warn().Err(err).Msg("stomp handshake failed")
		return
	}

	client := core.NewClient(utils.NewID(), nickname)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	sender := ""
	if authenticated {
		sender = nickname
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, sc, client, sender)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, sc, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	switch {
	case err == nil, errors.Is(err, errClientDisconnect), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		h.log.Debug().Str("client_id", client.ID).Msg("stomp connection closed")
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure, websocket.CloseStatus(err) == websocket.StatusGoingAway:
		h.log.Debug().Str("client_id", client.ID).Msg("stomp connection closed by peer")
	case errors.Is(err, errKicked):
		h.log.Info().Str("client_id", client.ID).Msg("stomp connection dropped by hub")
	default:
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("stomp connection closed with error")
	}
}

// handshake expects CONNECT or STOMP and answers CONNECTED. The bearer token is taken from the
// frame's Authorization header, falling back to the upgrade request's.
func (h *StompHandler) handshake(r *stdhttp.Request, sc *stompConn) (nickname string, authenticated bool, err error) {
	if err := sc.nc.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return "", false, err
	}

	var f *frame.Frame
	for f == nil {
		if f, err = sc.reader.Read(); err != nil {
			return "", false, fmt.Errorf("read connect: %w", err)
		}
	}
	if f.Command != frame.CONNECT && f.Command != frame.STOMP {
		_ = sc.write(errorFrame("expected CONNECT", ""))
		return "", false, fmt.Errorf("unexpected first frame %s", f.Command)
	}

	header := f.Header.Get("Authorization")
	if header == "" {
		header = r.Header.Get("Authorization")
	}
	token, hasToken := bearerToken(header)

	switch {
	case hasToken:
		claims, verr := auth.ValidateToken(h.jwtCfg, token)
		if verr != nil {
			_ = sc.write(errorFrame("invalid token", ""))
			return "", false, verr
		}
		nickname, authenticated = claims.Nickname, true
	case h.opts.JWTRequired:
		_ = sc.write(errorFrame("authentication required", ""))
		return "", false, auth.ErrNoToken
	default:
		nickname = f.Header.Get(frame.Login)
		if nickname == "" {
			nickname = utils.GuestName()
		}
	}

	if err := sc.nc.SetReadDeadline(time.Time{}); err != nil {
		return "", false, err
	}

	connected := frame.New(frame.CONNECTED,
		frame.Version, stompVersion,
		frame.HeartBeat, "0,0",
		frame.Server, serverName,
		frame.Session, utils.NewID(),
	)
	if err := sc.write(connected); err != nil {
		return "", false, fmt.Errorf("write connected: %w", err)
	}

	h.log.Info().Str("user", nickname).Bool("authenticated", authenticated).Msg("stomp client connected")
	return nickname, authenticated, nil
}

func (h *StompHandler) readLoop(ctx context.Context, sc *stompConn, client *core.Client, sender string) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)

	for {
		f, err := sc.reader.Read()
		if err != nil {
			return err
		}
		if f == nil {
			continue // heart-beat
		}

		var cmd *core.Command
		switch f.Command {
		case frame.SUBSCRIBE:
			cmd, err = h.subscribe(sc, f)
		case frame.UNSUBSCRIBE:
			cmd, err = h.unsubscribe(sc, f)
		case frame.SEND:
			if !limiter.allow(time.Now()) {
				h.log.Warn().Str("client_id", client.ID).Msg("rate limit exceeded")
				err = errors.New("rate limit exceeded")
				break
			}
			cmd, err = sendToCommand(f, sender)
		case frame.DISCONNECT:
			if receipt, ok := f.Header.Contains(frame.Receipt); ok {
				_ = sc.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
			}
			return errClientDisconnect
		default:
			err = fmt.Errorf("unsupported frame %s", f.Command)
		}
		if err != nil {
			_ = sc.write(errorFrame(err.Error(), ""))
			return err
		}

		if cmd != nil {
			select {
			case client.Commands <- cmd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if receipt, ok := f.Header.Contains(frame.Receipt); ok && f.Command != frame.SUBSCRIBE {
			if err := sc.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt)); err != nil {
				return err
			}
		}
	}
}

func (h *StompHandler) subscribe(sc *stompConn, f *frame.Frame) (*core.Command, error) {
	id := f.Header.Get(frame.Id)
	room, ok := proto.RoomFromTopic(f.Header.Get(frame.Destination))
	if id == "" || !ok {
		return nil, fmt.Errorf("bad subscription to %q", f.Header.Get(frame.Destination))
	}

	sc.subsMu.Lock()
	defer sc.subsMu.Unlock()
	if _, exists := sc.subIDs[id]; exists {
		return nil, fmt.Errorf("subscription id %q already in use", id)
	}
	if _, exists := sc.rooms[room]; exists {
		return nil, fmt.Errorf("already subscribed to %s", proto.Topic(room))
	}
	sc.subIDs[id] = room
	sc.rooms[room] = id
	if receipt, ok := f.Header.Contains(frame.Receipt); ok {
		sc.receipts[room] = receipt
	}
	return &core.Command{Kind: core.CommandSubscribe, Room: room}, nil
}

func (h *StompHandler) unsubscribe(sc *stompConn, f *frame.Frame) (*core.Command, error) {
	id := f.Header.Get(frame.Id)

	sc.subsMu.Lock()
	defer sc.subsMu.Unlock()
	room, ok := sc.subIDs[id]
	if !ok {
		return nil, fmt.Errorf("unknown subscription %q", id)
	}
	delete(sc.subIDs, id)
	delete(sc.rooms, room)
	delete(sc.receipts, room)
	return &core.Command{Kind: core.CommandUnsubscribe, Room: room}, nil
}

func (h *StompHandler) writeLoop(ctx context.Context, sc *stompConn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := h.writeEvent(sc, event); err != nil {
				h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write stomp event")
				return err
			}
		case <-client.Kicked():
			return errKicked
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *StompHandler) writeEvent(sc *stompConn, event *core.Event) error {
	switch event.Kind {
	case core.EventSubscribed:
		sc.subsMu.Lock()
		receipt, ok := sc.receipts[event.Room]
		delete(sc.receipts, event.Room)
		sc.subsMu.Unlock()
		if !ok {
			return nil
		}
		return sc.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
	case core.EventRoomMessage:
		subID, ok := sc.subscriptionFor(event.Room)
		if !ok {
			return nil // unsubscribed while the event was in flight
		}
		f, err := messageFrame(subID, event.Message)
		if err != nil {
			return err
		}
		return sc.write(f)
	case core.EventError:
		msg := "error"
		if event.Error != nil {
			msg = event.Error.Code
			_ = sc.write(errorFrame(msg, event.Error.Message))
		} else {
			_ = sc.write(errorFrame(msg, ""))
		}
		// STOMP closes the connection after an ERROR frame.
		return fmt.Errorf("hub error: %s", msg)
	default:
		return nil
	}
}
