package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMessage notifies subscribers about a chat message in a room.
	EventRoomMessage EventKind = iota
	// EventSubscribed confirms a subscription.
	EventSubscribed
	// EventError notifies the client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	Message Message
	Error   *CoreError
}
