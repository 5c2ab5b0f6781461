package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/potchat/internal/store"
)

const saveTimeout = 5 * time.Second

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients       int `json:"clients"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub owns rooms and clients. All state is touched only by the Run goroutine.
type Hub struct {
	store store.MessageStore
	log   zerolog.Logger
	now   func() time.Time

	register   chan *Client
	unregister chan *Client
	inbox      chan clientCommand
	drop       chan chan int
	stats      chan chan Stats
	done       chan struct{}

	clients map[*Client]chan struct{}
	rooms   map[string]*Room
}

// NewHub creates a hub. st may be nil, in which case messages are relayed but not persisted.
func NewHub(st store.MessageStore, logger *zerolog.Logger) *Hub {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "hub").Logger()
	}
	return &Hub{
		store:      st,
		log:        l,
		now:        time.Now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan clientCommand, 64),
		drop:       make(chan chan int),
		stats:      make(chan chan Stats),
		done:       make(chan struct{}),
		clients:    make(map[*Client]chan struct{}),
		rooms:      make(map[string]*Room),
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.inbox:
			if _, ok := h.clients[cc.client]; ok {
				h.handleCommand(ctx, cc.client, cc.cmd)
			}
		case reply := <-h.drop:
			reply <- h.handleDrop()
		case reply := <-h.stats:
			reply <- h.snapshot()
		case <-ctx.Done():
			h.handleDrop()
			return
		}
	}
}

// RegisterClient attaches c to the hub and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient detaches c and removes it from every room.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// DropClients disconnects every client and returns how many were dropped.
func (h *Hub) DropClients() int {
	reply := make(chan int, 1)
	select {
	case h.drop <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Stats reports the number of clients, active rooms and subscriptions.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return Stats{}
	}
}

func (h *Hub) snapshot() Stats {
	st := Stats{Clients: len(h.clients), Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		st.Subscriptions += room.Len()
	}
	return st
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; ok {
		return
	}
	stop := make(chan struct{})
	h.clients[c] = stop
	go h.forward(ctx, c, stop)
	h.log.Debug().Str("client", c.ID).Str("user", c.Name).Msg("client registered")
}

// forward moves commands from the client's channel into the hub inbox.
func (h *Hub) forward(ctx context.Context, c *Client, stop <-chan struct{}) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- clientCommand{client: c, cmd: cmd}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleUnregister(c *Client) {
	stop, ok := h.clients[c]
	if !ok {
		return
	}
	h.detach(c)
	close(stop)
	delete(h.clients, c)
	h.log.Debug().Str("client", c.ID).Msg("client unregistered")
}

func (h *Hub) handleDrop() int {
	n := len(h.clients)
	for c, stop := range h.clients {
		h.detach(c)
		close(stop)
		c.kick()
		delete(h.clients, c)
	}
	if n > 0 {
		h.log.Info().Int("clients", n).Msg("dropped all clients")
	}
	return n
}

func (h *Hub) detach(c *Client) {
	for name := range c.Rooms {
		h.leave(c, name)
		delete(c.Rooms, name)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSubscribe:
		h.subscribe(c, cmd.Room)
	case CommandUnsubscribe:
		h.unsubscribe(c, cmd.Room)
	case CommandPublish:
		h.publish(ctx, c, cmd.Room, cmd.Message)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) subscribe(c *Client, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "room is required"))
		return
	}
	if _, ok := c.Rooms[name]; ok {
		h.sendError(c, coreError(ErrCodeAlreadySubscribed, ErrAlreadySubscribed.Error()))
		return
	}

	room, ok := h.rooms[name]
	if !ok {
		room = newRoom(name)
		h.rooms[name] = room
	}
	room.join(c)
	c.Rooms[name] = struct{}{}
	h.send(c, &Event{Kind: EventSubscribed, Room: name})
	h.log.Debug().Str("room", name).Str("user", c.Name).Int("subscribers", room.Len()).Msg("subscribed")
}

func (h *Hub) unsubscribe(c *Client, name string) {
	if _, ok := c.Rooms[name]; !ok {
		h.sendError(c, coreError(ErrCodeNotSubscribed, ErrNotSubscribed.Error()))
		return
	}
	delete(c.Rooms, name)
	h.leave(c, name)
}

func (h *Hub) leave(c *Client, name string) {
	if room, ok := h.rooms[name]; ok && room.leave(c) {
		delete(h.rooms, name)
	}
}

// publish persists msg, then broadcasts it to the room. Publishing does not require a subscription.
func (h *Hub) publish(ctx context.Context, c *Client, name string, msg Message) {
	name = strings.TrimSpace(name)
	if name == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "room is required"))
		return
	}
	switch msg.Kind {
	case "":
		msg.Kind = KindTalk
	case KindTalk, KindEnter:
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown message type "+msg.Kind))
		return
	}
	if msg.Kind == KindTalk && strings.TrimSpace(msg.Text) == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "message is empty"))
		return
	}
	if msg.From == "" {
		msg.From = c.Name
	}
	msg.Room = name
	msg.CreatedAt = h.now().UTC()

	if h.store != nil {
		saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
		rec := &store.Message{PotID: name, Kind: msg.Kind, Sender: msg.From, Body: msg.Text, CreatedAt: msg.CreatedAt}
		if err := h.store.SaveMessage(saveCtx, rec); err != nil {
			// Live delivery still happens; the message is only missing from history.
			h.log.Warn().Err(err).Str("room", name).Msg("failed to persist message")
		} else {
			msg.ID = rec.ID
		}
		cancel()
	}

	room, ok := h.rooms[name]
	if !ok {
		return
	}
	if dropped := room.Broadcast(&Event{Kind: EventRoomMessage, Room: name, Message: msg}); dropped > 0 {
		h.log.Warn().Str("room", name).Int("dropped", dropped).Msg("slow subscribers skipped")
	}
}

func (h *Hub) send(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
	default:
		h.log.Warn().Str("client", c.ID).Msg("event dropped for slow client")
	}
}

func (h *Hub) sendError(c *Client, err *CoreError) {
	h.send(c, &Event{Kind: EventError, Error: err})
}
