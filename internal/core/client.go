package core

import "sync"

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID       string
	Name     string
	Commands chan *Command
	Events   chan *Event
	Rooms    map[string]struct{}

	kicked   chan struct{}
	kickOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 64),
		Rooms:    make(map[string]struct{}),
		kicked:   make(chan struct{}),
	}
}

// Kicked is closed when the hub drops the client.
func (c *Client) Kicked() <-chan struct{} {
	return c.kicked
}

func (c *Client) kick() {
	c.kickOnce.Do(func() { close(c.kicked) })
}
