package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no bearer token is available.
var ErrNoToken = errors.New("no auth token")

// TokenProvider yields the bearer token of the current user.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token fixed at startup (flag, env or config).
type StaticToken string

// Token implements TokenProvider.
func (s StaticToken) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// FileToken reads the token from a file on every call, so a login flow can refresh it in place.
type FileToken struct {
	Path string
}

// Token implements TokenProvider.
func (f FileToken) Token(context.Context) (string, error) {
	if f.Path == "" {
		return "", ErrNoToken
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Expired reports whether the token's exp claim lies in the past. The signature is not verified:
// the client only needs to avoid sending tokens the server would reject anyway.
// Tokens that cannot be parsed or carry no exp are treated as not expired.
func Expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Bearer returns a usable token from p, or ErrNoToken when none is available or it has expired.
func Bearer(ctx context.Context, p TokenProvider) (string, error) {
	if p == nil {
		return "", ErrNoToken
	}
	tok, err := p.Token(ctx)
	if err != nil {
		return "", err
	}
	if Expired(tok, time.Now()) {
		return "", fmt.Errorf("%w: token expired", ErrNoToken)
	}
	return tok, nil
}
