// Package realtime owns auction rooms and live connections. A single hub
// goroutine holds all membership state; everything else talks to it through
// its inbox.
package realtime

import (
	"context"

	"antique-auction/internal/events"
	"antique-auction/utils"
)

const DefaultInboxSize = 1024

// Envelope is the frame written to a client
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client is one live connection. The hub writes to Outbox and closes it when
// the connection is unregistered or dropped.
type Client struct {
	ID     string
	UserID string
	Outbox chan Envelope
}

type Msg interface{ isHubMsg() }

type Register struct{ Client *Client }

type Unregister struct{ ClientID string }

type Join struct {
	ClientID  string
	AuctionID string
}

type Leave struct {
	ClientID  string
	AuctionID string
}

type Deliver struct{ Event events.Event }

type GetStats struct{ Reply chan Stats }

type Shutdown struct{}

func (Register) isHubMsg()   {}
func (Unregister) isHubMsg() {}
func (Join) isHubMsg()       {}
func (Leave) isHubMsg()      {}
func (Deliver) isHubMsg()    {}
func (GetStats) isHubMsg()   {}
func (Shutdown) isHubMsg()   {}

// Stats is a point-in-time view of the hub
type Stats struct {
	Connections int            `json:"connections"`
	Users       int            `json:"users"`
	Rooms       int            `json:"rooms"`
	RoomSizes   map[string]int `json:"room_sizes,omitempty"`
	Dropped     int            `json:"dropped"`
}

type member struct {
	client *Client
	rooms  map[string]struct{}
}

type Hub struct {
	inbox   chan Msg
	clients map[string]*member
	rooms   map[string]map[string]*member // auctionID -> clientID -> member
	users   map[string]map[string]*member // userID -> clientID -> member
	dropped int
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub starts the hub loop. It stops when parent is cancelled or on Shutdown.
func NewHub(parent context.Context, inboxSize int) *Hub {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan Msg, inboxSize),
		clients: make(map[string]*member),
		rooms:   make(map[string]map[string]*member),
		users:   make(map[string]map[string]*member),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Inbox exposes the hub inbox for the websocket layer and tests.
func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Done is closed once the hub loop has exited
func (h *Hub) Done() <-chan struct{} { return h.done }

// Publish hands an event to the hub without blocking. When the inbox is full
// the event is dropped; clients resync on their next snapshot.
func (h *Hub) Publish(e events.Event) {
	select {
	case h.inbox <- Deliver{Event: e}:
	default:
		utils.Warn("hub: inbox full, dropping event", map[string]any{
			"type":       e.Type,
			"auction_id": e.AuctionID,
		})
	}
}

// Send delivers a control message, giving up if ctx or the hub is done.
func (h *Hub) Send(ctx context.Context, m Msg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-ctx.Done():
		return false
	case <-h.ctx.Done():
		return false
	}
}

// Stats asks the hub loop for its current counters
func (h *Hub) Stats(ctx context.Context) (Stats, bool) {
	reply := make(chan Stats, 1)
	if !h.Send(ctx, GetStats{Reply: reply}) {
		return Stats{}, false
	}
	select {
	case st := <-reply:
		return st, true
	case <-ctx.Done():
		return Stats{}, false
	case <-h.done:
		return Stats{}, false
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				h.register(msg.Client)

			case Unregister:
				h.remove(msg.ClientID)

			case Join:
				m, ok := h.clients[msg.ClientID]
				if !ok {
					break
				}
				if h.rooms[msg.AuctionID] == nil {
					h.rooms[msg.AuctionID] = make(map[string]*member)
				}
				h.rooms[msg.AuctionID][msg.ClientID] = m
				m.rooms[msg.AuctionID] = struct{}{}

			case Leave:
				m, ok := h.clients[msg.ClientID]
				if !ok {
					break
				}
				h.leaveRoom(m, msg.AuctionID)

			case Deliver:
				h.deliver(msg.Event)

			case GetStats:
				msg.Reply <- h.stats()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) register(c *Client) {
	if old, ok := h.clients[c.ID]; ok && old.client != c {
		h.remove(c.ID)
	}
	m := &member{client: c, rooms: make(map[string]struct{})}
	h.clients[c.ID] = m
	if c.UserID != "" {
		if h.users[c.UserID] == nil {
			h.users[c.UserID] = make(map[string]*member)
		}
		h.users[c.UserID][c.ID] = m
	}
}

func (h *Hub) deliver(e events.Event) {
	env := Envelope{Type: string(e.Type), Data: e.Payload}

	var targets map[string]*member
	if e.Direct() {
		targets = h.users[e.UserID]
	} else {
		targets = h.rooms[e.AuctionID]
	}

	for id, m := range targets {
		select {
		case m.client.Outbox <- env:
		default:
			// slow consumer: drop the connection, it resyncs on reconnect
			utils.Warn("hub: dropping slow connection", map[string]any{
				"client_id": id,
				"user_id":   m.client.UserID,
				"event":     e.Type,
			})
			h.dropped++
			h.remove(id)
		}
	}
}

func (h *Hub) leaveRoom(m *member, auctionID string) {
	delete(m.rooms, auctionID)
	if room, ok := h.rooms[auctionID]; ok {
		delete(room, m.client.ID)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		}
	}
}

func (h *Hub) remove(clientID string) {
	m, ok := h.clients[clientID]
	if !ok {
		return
	}
	for auctionID := range m.rooms {
		h.leaveRoom(m, auctionID)
	}
	if byUser, ok := h.users[m.client.UserID]; ok {
		delete(byUser, clientID)
		if len(byUser) == 0 {
			delete(h.users, m.client.UserID)
		}
	}
	delete(h.clients, clientID)
	close(m.client.Outbox)
}

func (h *Hub) stats() Stats {
	sizes := make(map[string]int, len(h.rooms))
	for id, room := range h.rooms {
		sizes[id] = len(room)
	}
	return Stats{
		Connections: len(h.clients),
		Users:       len(h.users),
		Rooms:       len(h.rooms),
		RoomSizes:   sizes,
		Dropped:     h.dropped,
	}
}

func (h *Hub) shutdown() {
	for id := range h.clients {
		h.remove(id)
	}
	h.cancel()
}
