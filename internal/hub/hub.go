// Package hub fans out lifecycle events to all registered observers.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// Observer is a live event consumer. Deliver must not block; a returned
// error marks the observer dead and removes it from the registry.
type Observer interface {
	ID() string
	Deliver(data []byte) error
}

// Hub delivers events from all producers to every registered observer.
// Producers enqueue on a single channel; one dispatch loop drains it, so
// events keep their production order end to end.
type Hub struct {
	observers map[string]Observer

	register   chan Observer
	unregister chan string
	events     chan []byte

	mu sync.RWMutex
}

// New creates a hub. Call Run to start dispatching.
func New() *Hub {
	return &Hub{
		observers:  make(map[string]Observer),
		register:   make(chan Observer),
		unregister: make(chan string),
		events:     make(chan []byte, 256),
	}
}

// Run drains the hub's channels until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case obs := <-h.register:
			h.mu.Lock()
			h.observers[obs.ID()] = obs
			total := len(h.observers)
			h.mu.Unlock()
			log.Printf("Observer registered: %s (total %d)", obs.ID(), total)

		case id := <-h.unregister:
			h.remove(id)

		case data := <-h.events:
			h.fanout(data)

		case <-ctx.Done():
			return
		}
	}
}

// Register adds an observer. Re-registering the same identity replaces it.
func (h *Hub) Register(obs Observer) {
	h.register <- obs
}

// Unregister removes an observer; safe to call after it is already gone.
func (h *Hub) Unregister(id string) {
	h.unregister <- id
}

// Publish enqueues an event for delivery to the observers registered at
// dispatch time. It never blocks on an individual observer; a delivery
// failure only affects the failing observer.
func (h *Hub) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: failed to marshal event %s: %v", ev.Type, err)
		return
	}
	h.events <- data
}

// fanout delivers to a snapshot of the registry; observers whose Deliver
// fails are removed.
func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	snapshot := make([]Observer, 0, len(h.observers))
	for _, obs := range h.observers {
		snapshot = append(snapshot, obs)
	}
	h.mu.RUnlock()

	var failed []string
	for _, obs := range snapshot {
		if err := obs.Deliver(data); err != nil {
			log.Printf("WARN: dropping observer %s: %v", obs.ID(), err)
			failed = append(failed, obs.ID())
		}
	}
	for _, id := range failed {
		h.remove(id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.observers[id]
	delete(h.observers, id)
	h.mu.Unlock()
	if ok {
		log.Printf("Observer unregistered: %s", id)
	}
}

// Count returns the number of registered observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
