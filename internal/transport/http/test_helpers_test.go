package http

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/core"
	"github.com/vovakirdan/potchat/internal/store/sqlite"
)

type testGateway struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	jwt   *auth.JWTConfig
}

func startTestGateway(t *testing.T, tweak func(*config.GatewayConfig)) *testGateway {
	t.Helper()

	cfg := config.Default().Gateway
	cfg.Addr = ":0"
	cfg.JWTSecret = "testsecret"
	if tweak != nil {
		tweak(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.New(nil)
	hub := core.NewHub(st, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}

	server := NewServer(hub, st, jwtCfg, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testGateway{ts: ts, hub: hub, store: st, jwt: jwtCfg}
}

func (g *testGateway) token(t *testing.T, nickname string) string {
	t.Helper()
	token, err := auth.GenerateToken(g.jwt, nickname, nickname+"@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (g *testGateway) wsURL() string {
	return strings.Replace(g.ts.URL, "http", "ws", 1) + StompPath
}

type testStompConn struct {
	nc     net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

// dialRaw opens the WebSocket without performing the STOMP handshake.
func (g *testGateway) dialRaw(t *testing.T, ctx context.Context) *testStompConn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, g.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	nc := websocket.NetConn(ctx, conn, websocket.MessageText)
	t.Cleanup(func() { _ = nc.Close() })

	return &testStompConn{nc: nc, reader: frame.NewReader(nc), writer: frame.NewWriter(nc)}
}

// dialStomp connects and completes the handshake with the given token.
func (g *testGateway) dialStomp(t *testing.T, ctx context.Context, token string) *testStompConn {
	t.Helper()

	c := g.dialRaw(t, ctx)
	connect := frame.New(frame.CONNECT, frame.AcceptVersion, "1.2", frame.Host, "localhost")
	if token != "" {
		connect.Header.Add("Authorization", "Bearer "+token)
	}
	c.send(t, connect)

	if f := c.read(t); f.Command != frame.CONNECTED {
		t.Fatalf("expected CONNECTED, got %s %v", f.Command, f.Header.Get(frame.Message))
	}
	return c
}

func (c *testStompConn) send(t *testing.T, f *frame.Frame) {
	t.Helper()
	if err := c.writer.Write(f); err != nil {
		t.Fatalf("write %s: %v", f.Command, err)
	}
}

func (c *testStompConn) read(t *testing.T) *frame.Frame {
	t.Helper()
	for {
		f, err := c.reader.Read()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f != nil {
			return f
		}
	}
}

func (c *testStompConn) subscribe(t *testing.T, id, dest string) {
	t.Helper()
	c.send(t, frame.New(frame.SUBSCRIBE, frame.Id, id, frame.Destination, dest, frame.Receipt, "sub-"+id))
	if f := c.read(t); f.Command != frame.RECEIPT || f.Header.Get(frame.ReceiptId) != "sub-"+id {
		t.Fatalf("expected RECEIPT for subscription %s, got %s", id, f.Command)
	}
}

func (c *testStompConn) publish(t *testing.T, body string) {
	t.Helper()
	f := frame.New(frame.SEND, frame.Destination, "/app/chat/message", frame.ContentType, "application/json")
	f.Body = []byte(body)
	c.send(t, f)
}
