// Package realtime delivers live events to connected websocket clients.
//
// A Hub keeps the sockets of this process grouped by user id and fans
// published events out to them. Delivery is fire-and-forget: each connection
// has a bounded send queue and frames are dropped when it is full. The durable
// record of anything published here lives in the database; clients reconcile
// by polling after a reconnect. RedisBroker extends a Hub across processes.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

// Event names.
const (
	EventConnected    = "connected"
	EventNotification = "notification"
)

// Event is the JSON frame written to sockets.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broker publishes events to a user's live connections. An empty userID
// addresses every connection.
type Broker interface {
	Publish(ctx context.Context, userID string, ev Event) error
}

// Subscription is one socket's queue of encoded frames.
type Subscription struct {
	UserID string
	send   chan []byte
}

// C returns the frames queued for this subscription. It is closed by
// Unsubscribe or Hub.Close.
func (s *Subscription) C() <-chan []byte { return s.send }

// Hub is the in-process Broker. The zero value is not usable; call NewHub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub returns a Hub whose subscriptions queue up to buffer frames.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a queue for userID. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(userID string) *Subscription {
	s := &Subscription{UserID: userID, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.send)
		return s
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	wsConnections.Inc()
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.UserID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.UserID)
	}
	close(s.send)
	wsConnections.Dec()
}

// Publish encodes ev and delivers it locally.
func (h *Hub) Publish(_ context.Context, userID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Deliver(userID, data)
	return nil
}

// Deliver queues an encoded frame for userID (every user when empty) and
// returns how many queues accepted it. Full queues drop the frame.
func (h *Hub) Deliver(userID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	scope := "user"
	if userID == "" {
		scope = "broadcast"
	}
	published.WithLabelValues(scope).Inc()

	n := 0
	offer := func(s *Subscription) {
		select {
		case s.send <- frame:
			n++
		default:
			dropped.Inc()
		}
	}
	if userID == "" {
		for _, set := range h.subs {
			for s := range set {
				offer(s)
			}
		}
		return n
	}
	for s := range h.subs[userID] {
		offer(s)
	}
	return n
}

// Connections reports how many subscriptions are live.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close ends every subscription; later Subscribe calls get closed queues.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for uid, set := range h.subs {
		for s := range set {
			close(s.send)
			wsConnections.Dec()
		}
		delete(h.subs, uid)
	}
}
