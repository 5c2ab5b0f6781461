// Package api talks to the pot service REST endpoints: chat history and the current user profile.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/chat"
	"github.com/vovakirdan/potchat/internal/proto"
)

const maxErrorBody = 4 << 10

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Message)
}

// Client is a REST client for the pot service. It implements chat.HistoryLoader.
type Client struct {
	base   *url.URL
	tokens auth.TokenProvider
	http   *http.Client
	loc    *time.Location
	log    zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocation sets the zone used for history timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// WithLogger attaches a logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.With().Str("component", "api").Logger()
		}
	}
}

// New creates a client for baseURL.
func New(baseURL string, tokens auth.TokenProvider, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   base,
		tokens: tokens,
		http:   &http.Client{Timeout: 30 * time.Second},
		loc:    time.Local,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ chat.HistoryLoader = (*Client)(nil)

// LoadHistory fetches the persisted chat of roomID, oldest first.
// Every failure, including a missing or expired token, is wrapped in chat.ErrHistoryUnavailable.
func (c *Client) LoadHistory(ctx context.Context, roomID string) ([]chat.Message, error) {
	var records []proto.HistoryRecord
	if err := c.get(ctx, proto.HistoryPath(roomID), &records); err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrHistoryUnavailable, err)
	}

	msgs := make([]chat.Message, 0, len(records))
	for i, rec := range records {
		msg, err := c.fromRecord(roomID, rec)
		if err != nil {
			c.log.Warn().Err(err).Int("index", i).Str("room", roomID).Msg("skipping malformed history record")
			continue
		}
		msgs = append(msgs, msg)
	}
	slices.SortStableFunc(msgs, func(a, b chat.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	c.log.Debug().Str("room", roomID).Int("count", len(msgs)).Msg("history loaded")
	return msgs, nil
}

// CurrentUser resolves the profile of the token holder.
func (c *Client) CurrentUser(ctx context.Context) (proto.UserProfile, error) {
	var profile proto.UserProfile
	if err := c.get(ctx, proto.CurrentUserPath, &profile); err != nil {
		return proto.UserProfile{}, fmt.Errorf("current user: %w", err)
	}
	if strings.TrimSpace(profile.Nickname) == "" {
		return proto.UserProfile{}, fmt.Errorf("current user: %w", chat.ErrNoIdentity)
	}
	return profile, nil
}

func (c *Client) fromRecord(roomID string, rec proto.HistoryRecord) (chat.Message, error) {
	sentAt, err := proto.ParseTime(rec.SentAt, c.loc)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		Kind:   chat.ParseKind(rec.Type),
		RoomID: roomID,
		Sender: rec.Sender,
		Body:   rec.Message,
		SentAt: sentAt,
		Status: chat.StatusConfirmed,
	}, nil
}

// get issues an authenticated GET and decodes the JSON response into out.
// No request is made when no usable token is available.
func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := auth.Bearer(ctx, c.tokens)
	if err != nil {
		return err
	}

	// path is already escaped; keep it that way so ids containing '/' stay one segment.
	rawPath := strings.TrimRight(c.base.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	u := *c.base
	u.Path, u.RawPath = unescaped, rawPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", proto.ContentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload proto.ErrorResponse
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		se.Message = payload.Error
	} else {
		se.Message = strings.TrimSpace(string(body))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrUnauthorized, se)
	}
	return se
}
