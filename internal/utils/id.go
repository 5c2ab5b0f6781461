// Package utils holds small helpers shared by the gateway.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	idBytes    = 12
	guestBytes = 3
)

// NewID returns a random hex identifier for clients, STOMP sessions and frames.
func NewID() string {
	return randomHex(idBytes)
}

// GuestName returns a display name for a connection that did not authenticate.
func GuestName() string {
	return "guest-" + randomHex(guestBytes)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	// crypto/rand failed; uniqueness still holds per process.
	s := strconv.FormatInt(time.Now().UnixNano(), 16)
	if len(s) > 2*n {
		s = s[len(s)-2*n:]
	}
	return s
}
