package chat

import "context"

// HistoryLoader fetches the prior messages of a room once per session.
type HistoryLoader interface {
	// LoadHistory returns the room history in chronological order.
	// Failures wrap ErrHistoryUnavailable.
	LoadHistory(ctx context.Context, roomID string) ([]Message, error)
}

// Listener receives transport callbacks for one room subscription.
type Listener interface {
	// OnConnect fires once per successful connection, after the room topic is subscribed.
	OnConnect()
	// OnDisconnect fires when a connection attempt fails or an established connection drops.
	OnDisconnect(err error)
	// OnMessage delivers a decoded message from the room topic.
	OnMessage(msg Message)
}

// Transport establishes realtime connections to the chat gateway.
type Transport interface {
	// Connect starts connecting in the background and returns immediately.
	// The returned Conn is owned by the caller and keeps reconnecting until Disconnect.
	Connect(ctx context.Context, roomID string, l Listener) Conn
}

// Conn is a live (or reconnecting) room connection.
type Conn interface {
	// Publish sends a message to the gateway without waiting for acknowledgement.
	Publish(ctx context.Context, msg Message) error
	// Disconnect releases the connection and cancels pending reconnects. Safe to call more than once.
	Disconnect()
}
