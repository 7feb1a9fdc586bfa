package ws

import (
	"encoding/json"
	"sync"
)

// FeedChannel is the channel every dashboard subscribes to for
// row-level change notifications.
const FeedChannel = "orders-feed"

// Event types mirror the row operations of the persistence layer.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one change-feed notification: which table changed, how,
// and the affected row.
type Event struct {
	Table string          `json:"table"`
	Type  string          `json:"event_type"`
	Row   json.RawMessage `json:"row"`
}

// channelEvent routes an event to one channel's subscribers.
type channelEvent struct {
	Channel string
	Event   Event
}

// Hub maintains the set of connected clients per channel and fans
// change-feed events out to them, plus any in-process subscribers.
type Hub struct {
	// Registered clients by channel name
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *channelEvent

	// In-process subscribers (board synchronizers) by channel
	local   map[string][]*localSub
	localID int

	mu sync.RWMutex
}

type localSub struct {
	id int
	fn func(Event)
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *channelEvent, 256),
		local:      make(map[string][]*localSub),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.channel] == nil {
				h.rooms[client.channel] = make(map[*Client]bool)
			}
			h.rooms[client.channel][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.channel]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.channel)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[ev.Channel]

			message, err := json.Marshal(ev.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[ev.Channel], client)
					if len(h.rooms[ev.Channel]) == 0 {
						delete(h.rooms, ev.Channel)
					}
				}
			}

			subs := make([]*localSub, len(h.local[ev.Channel]))
			copy(subs, h.local[ev.Channel])
			h.mu.Unlock()

			// Outside the lock: a subscriber may publish or resubscribe.
			for _, s := range subs {
				s.fn(ev.Event)
			}
		}
	}
}

// Publish sends an event to every subscriber of a channel. This is
// the API services call after a mutation.
func (h *Hub) Publish(channel string, event Event) {
	h.broadcast <- &channelEvent{Channel: channel, Event: event}
}

// SubscribeLocal registers an in-process subscriber on a channel and
// returns a cancel function. Used by the board synchronizer, which
// lives in the same process as the hub.
func (h *Hub) SubscribeLocal(channel string, fn func(Event)) func() {
	h.mu.Lock()
	h.localID++
	sub := &localSub{id: h.localID, fn: fn}
	h.local[channel] = append(h.local[channel], sub)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.local[channel]
		for i, s := range subs {
			if s.id == sub.id {
				h.local[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}
