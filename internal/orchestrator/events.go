package orchestrator

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventMessageAdded   = "message_added"
	EventMessageUpdated = "message_updated"
	EventPlanUpdated    = "plan_updated"
	EventStateChanged   = "state_changed"
)

// DefaultCoalesceInterval is the flush cadence for coalesced updates.
const DefaultCoalesceInterval = 100 * time.Millisecond

// Event is a generic SSE payload wrapper.
type Event struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
}

type subscriber chan []byte

// Hub fans session events out to subscribers. Slow subscribers drop events
// instead of blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[subscriber]struct{} // sessionID -> set of subscribers
}

func NewHub() *Hub { return &Hub{subs: map[string]map[subscriber]struct{}{}} }

// Subscribe registers a subscriber for sessionID. The returned function
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan []byte, func()) {
	ch := make(subscriber, 64)
	h.mu.Lock()
	set := h.subs[sessionID]
	if set == nil {
		set = map[subscriber]struct{}{}
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish encodes ev and delivers it to every subscriber of its session.
func (h *Hub) Publish(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- b:
		default:
		}
	}
	h.mu.RUnlock()
}

// Subscribers counts the subscribers of sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Coalescer keeps only the latest event per key and publishes the pending
// set on a fixed cadence.
type Coalescer struct {
	hub *Hub

	// flushMu keeps batches in publish order.
	flushMu sync.Mutex
	mu      sync.Mutex
	pending map[string]Event
	keys    []string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewCoalescer starts a coalescer publishing to h every interval.
func (h *Hub) NewCoalescer(interval time.Duration) *Coalescer {
	if interval <= 0 {
		interval = DefaultCoalesceInterval
	}
	c := &Coalescer{
		hub:     h,
		pending: map[string]Event{},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.flushLoop(interval)
	return c
}

// Put replaces the pending event for key.
func (c *Coalescer) Put(key string, ev Event) {
	c.mu.Lock()
	if _, ok := c.pending[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.pending[key] = ev
	c.mu.Unlock()
}

// Flush publishes everything pending now.
func (c *Coalescer) Flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	c.mu.Lock()
	keys, pending := c.keys, c.pending
	c.keys, c.pending = nil, map[string]Event{}
	c.mu.Unlock()
	for _, k := range keys {
		c.hub.Publish(pending[k])
	}
}

// Close stops the flush loop and publishes leftovers.
func (c *Coalescer) Close() {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		c.Flush()
	})
}

func (c *Coalescer) flushLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Flush()
		}
	}
}
