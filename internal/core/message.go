package core

import "time"

// Message kinds relayed by the hub.
const (
	KindEnter = "ENTER"
	KindTalk  = "TALK"
)

// Message is the domain model for a pot chat message.
type Message struct {
	ID        int64
	Room      string
	Kind      string
	From      string
	Text      string
	CreatedAt time.Time
}
