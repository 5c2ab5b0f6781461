package store

import (
	"context"
	"time"
)

// Message represents a persisted pot chat message.
type Message struct {
	ID        int64
	PotID     string
	Kind      string
	Sender    string
	Body      string
	CreatedAt time.Time
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the newest limit messages of a pot in chronological order.
	// If beforeID is provided, only messages older than that ID are considered.
	ListMessages(ctx context.Context, potID string, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
