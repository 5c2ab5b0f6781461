package chat

import (
	"strings"
	"time"
)

// Kind distinguishes room-join announcements from user content.
type Kind string

const (
	// KindEnter announces that a user entered the room.
	KindEnter Kind = "ENTER"
	// KindTalk is user-authored chat content.
	KindTalk Kind = "TALK"
)

// ParseKind normalizes a wire type. Missing or unknown types are treated as TALK.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindEnter)) {
		return KindEnter
	}
	return KindTalk
}

// Status tracks delivery of a feed entry.
type Status int

const (
	// StatusConfirmed is the status of history, remote and echoed messages.
	StatusConfirmed Status = iota
	// StatusPending marks an optimistic local message awaiting its server echo.
	StatusPending
	// StatusFailed marks a local message the transport could not publish.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

// Message is the unit of communication in a pot chat room.
type Message struct {
	ID     string
	Kind   Kind
	RoomID string
	Sender string
	Body   string
	SentAt time.Time
	Status Status
	Local  bool
}

// sameContent reports whether two messages carry the same kind, sender and body.
func sameContent(a, b Message) bool {
	return a.Kind == b.Kind && a.Sender == b.Sender && a.Body == b.Body
}
