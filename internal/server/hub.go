package server

import (
	"sort"
	"sync"
)

func UserChannel(userId string) string {
	return "user:" + userId
}

func ConversationChannel(conversationId string) string {
	return "conversation:" + conversationId
}

// Hub indexes live clients by channel and channels by client. Delivery
// never blocks on a slow client: each target gets a non-blocking enqueue
// onto its send queue after the lock is released.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	clients  map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}

	chans, ok := h.clients[c]
	if !ok {
		chans = make(map[string]struct{})
		h.clients[c] = chans
	}
	chans[channel] = struct{}{}
}

// Unsubscribe removes c from channel and reports whether it was subscribed.
func (h *Hub) Unsubscribe(c *Client, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[channel][c]; !ok {
		return false
	}
	h.unsubscribeLocked(c, channel)
	return true
}

func (h *Hub) unsubscribeLocked(c *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if chans, ok := h.clients[c]; ok {
		delete(chans, channel)
	}
}

// RemoveClient drops c from every channel. It reports false if c was not
// known to the hub.
func (h *Hub) RemoveClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	chans, ok := h.clients[c]
	if !ok {
		return false
	}
	for channel := range chans {
		h.unsubscribeLocked(c, channel)
	}
	delete(h.clients, c)
	return true
}

// Publish delivers msg to every subscriber of channel except skip and
// returns the number of clients it was queued for.
func (h *Hub) Publish(channel string, msg *ServerMessage, skip *Client) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		if c != skip {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, msg)
}

// Broadcast delivers msg to every live client not owned by skipUserId.
func (h *Hub) Broadcast(msg *ServerMessage, skipUserId string) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.user.Id != skipUserId {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return deliver(targets, msg)
}

func deliver(targets []*Client, msg *ServerMessage) int {
	n := 0
	for _, c := range targets {
		if c.queueMessage(msg) {
			n++
		}
	}
	return n
}

// Channels returns the sorted channel set of c.
func (h *Hub) Channels(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chans := make([]string, 0, len(h.clients[c]))
	for channel := range h.clients[c] {
		chans = append(chans, channel)
	}
	sort.Strings(chans)
	return chans
}

func (h *Hub) Subscribed(c *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.channels[channel][c]
	return ok
}

// clientsForUser returns the live clients subscribed to the personal
// channel of userId.
func (h *Hub) clientsForUser(userId string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.channels[UserChannel(userId)]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}
