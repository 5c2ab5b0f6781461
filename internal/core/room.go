package core

// Room is the subscriber set of one pot topic. It is owned by the hub goroutine.
type Room struct {
	Name        string
	subscribers map[*Client]struct{}
}

func newRoom(name string) *Room {
	return &Room{Name: name, subscribers: make(map[*Client]struct{})}
}

func (r *Room) join(c *Client) {
	r.subscribers[c] = struct{}{}
}

// leave removes c and reports whether the room is now empty.
func (r *Room) leave(c *Client) (empty bool) {
	delete(r.subscribers, c)
	return len(r.subscribers) == 0
}

// Broadcast offers event to every subscriber without blocking and returns how many were full.
func (r *Room) Broadcast(event *Event) (dropped int) {
	for c := range r.subscribers {
		select {
		case c.Events <- event:
		default:
			dropped++
		}
	}
	return dropped
}

// Len returns the number of subscribers.
func (r *Room) Len() int {
	return len(r.subscribers)
}
