package chat

import "errors"

// Error codes for the failure taxonomy.
const (
	ErrCodeHistoryUnavailable = "history_unavailable"
	ErrCodeConnectFailure     = "connect_failure"
	ErrCodePublishFailure     = "publish_failure"
	ErrCodeUnknown            = "unknown"
)

var (
	// ErrHistoryUnavailable is returned when the history fetch failed or no token was available.
	ErrHistoryUnavailable = errors.New("history unavailable")
	// ErrConnectFailure is returned when the realtime transport could not be established.
	ErrConnectFailure = errors.New("connect failure")
	// ErrPublishFailure is returned when an outbound message could not be handed to the transport.
	ErrPublishFailure = errors.New("publish failure")

	ErrSessionClosed = errors.New("session closed")
	ErrNotLive       = errors.New("session not live")
	ErrEmptyMessage  = errors.New("empty message")
	ErrNoIdentity    = errors.New("local identity unresolved")
	ErrNoRoom        = errors.New("room id is required")
)

// Code maps an error to its taxonomy code for log fields.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrHistoryUnavailable):
		return ErrCodeHistoryUnavailable
	case errors.Is(err, ErrConnectFailure):
		return ErrCodeConnectFailure
	case errors.Is(err, ErrPublishFailure):
		return ErrCodePublishFailure
	default:
		return ErrCodeUnknown
	}
}
