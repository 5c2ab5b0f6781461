package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 9, 8, 19, 0, 0, 0, time.UTC)

// stepClock returns t0, t0+1s, t0+2s, ... It is only called from the session loop.
func stepClock() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	echo  bool
}

func (t *fakeTransport) Connect(_ context.Context, roomID string, l Listener) Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &fakeConn{roomID: roomID, listener: l, echo: t.echo}
	t.conns = append(t.conns, c)
	return c
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[len(t.conns)-1]
}

type fakeConn struct {
	roomID   string
	listener Listener

	mu          sync.Mutex
	published   []Message
	publishErr  error
	disconnects int
	echo        bool
}

func (c *fakeConn) Publish(_ context.Context, msg Message) error {
	c.mu.Lock()
	c.published = append(c.published, msg)
	err, echo := c.publishErr, c.echo
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if echo {
		// What the gateway sends back carries no local metadata.
		c.listener.OnMessage(Message{Kind: msg.Kind, RoomID: msg.RoomID, Sender: msg.Sender, Body: msg.Body})
	}
	return nil
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeConn) failPublishes(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

func (c *fakeConn) publishedMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

func (c *fakeConn) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeHistory struct {
	msgs    []Message
	err     error
	release chan struct{}
}

func (h *fakeHistory) LoadHistory(ctx context.Context, _ string) ([]Message, error) {
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return append([]Message(nil), h.msgs...), nil
}

var errBoom = errors.New("boom")

func openTestSession(t *testing.T, history HistoryLoader, transport *fakeTransport) *Session {
	t.Helper()

	s, err := Open(context.Background(), Options{
		RoomID:    "R42",
		LocalUser: "alice",
		History:   history,
		Transport: transport,
		Now:       stepClock(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFeedLen(t *testing.T, s *Session, n int) []Message {
	t.Helper()

	var feed []Message
	require.Eventually(t, func() bool {
		feed = s.Feed()
		return len(feed) == n
	}, 2*time.Second, 5*time.Millisecond, "feed never reached %d entries", n)
	return feed
}

func waitState(t *testing.T, s *Session, want State, reconnecting bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		st, rc := s.State()
		return st == want && rc == reconnecting
	}, 2*time.Second, 5*time.Millisecond, "session never reached %s (reconnecting=%v)", want, reconnecting)
}

func bodies(feed []Message) []string {
	out := make([]string, 0, len(feed))
	for _, m := range feed {
		out = append(out, m.Sender+":"+m.Body)
	}
	return out
}
