package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens auth.TokenProvider) (*Client, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, tokens, WithLocation(time.UTC))
	require.NoError(t, err)
	return c, &hits
}

func TestLoadHistory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pots/R42/chat/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sender":"carol","message":"later","sentAt":"2025-09-08T19:05:00Z"},
			{"sender":"bob","message":"hi","sentAt":"2025-09-08T19:00:00","type":"TALK"},
			{"sender":"dave","message":"dave entered","sentAt":"2025-09-08T19:01:00Z","type":"ENTER"},
			{"sender":"eve","message":"broken","sentAt":"not a time"}
		]`))
	}, auth.StaticToken("tok"))

	msgs, err := c.LoadHistory(context.Background(), "R42")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "bob", msgs[0].Sender)
	assert.Equal(t, chat.KindTalk, msgs[0].Kind)
	assert.Equal(t, time.Date(2025, 9, 8, 19, 0, 0, 0, time.UTC), msgs[0].SentAt)
	assert.Equal(t, chat.KindEnter, msgs[1].Kind)
	assert.Equal(t, "carol", msgs[2].Sender)
	assert.Equal(t, chat.KindTalk, msgs[2].Kind, "missing type defaults to TALK")
	assert.Equal(t, "R42", msgs[2].RoomID)
}

func TestLoadHistoryEscapesRoomID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pots/a%2F..%2Fb/chat/messages", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`[]`))
	}, auth.StaticToken("tok"))

	msgs, err := c.LoadHistory(context.Background(), "a/../b")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoadHistoryWithoutTokenMakesNoRequest(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, auth.StaticToken(""))

	_, err := c.LoadHistory(context.Background(), "R42")
	require.ErrorIs(t, err, chat.ErrHistoryUnavailable)
	require.ErrorIs(t, err, auth.ErrNoToken)
	assert.Equal(t, int32(0), hits.Load())
}

func TestLoadHistoryExpiredTokenMakesNoRequest(t *testing.T) {
	expired, err := auth.GenerateToken(&auth.JWTConfig{Secret: []byte("s"), TTL: -time.Minute}, "alice", "")
	require.NoError(t, err)

	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, auth.StaticToken(expired))

	_, err = c.LoadHistory(context.Background(), "R42")
	require.ErrorIs(t, err, chat.ErrHistoryUnavailable)
	assert.Equal(t, int32(0), hits.Load())
}

func TestLoadHistoryStatusErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}, auth.StaticToken("tok"))

	_, err := c.LoadHistory(context.Background(), "R42")
	require.ErrorIs(t, err, chat.ErrHistoryUnavailable)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, chat.ErrCodeHistoryUnavailable, chat.Code(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "token expired", se.Message)

	c, _ = newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}, auth.StaticToken("tok"))
	_, err = c.LoadHistory(context.Background(), "R42")
	require.ErrorIs(t, err, chat.ErrHistoryUnavailable)
}

func TestCurrentUser(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"nickname":"alice","email":"alice@example.com"}`))
	}, auth.StaticToken("tok"))

	profile, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Nickname)

	c, _ = newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nickname":""}`))
	}, auth.StaticToken("tok"))
	_, err = c.CurrentUser(context.Background())
	require.ErrorIs(t, err, chat.ErrNoIdentity)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", auth.StaticToken("x"))
	require.Error(t, err)
}
