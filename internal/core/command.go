package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandPublish persists a message and delivers it to every subscriber of its room, the sender included.
	CommandPublish CommandKind = iota
	// CommandSubscribe subscribes the client to a room topic.
	CommandSubscribe
	// CommandUnsubscribe removes the client from a room topic.
	CommandUnsubscribe
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Room    string
	Message Message
}
