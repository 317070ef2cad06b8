// Package broadcast fans situation updates out to dashboard clients. The hub
// is transport-agnostic: the websocket layer registers each connection as a
// sink, and every published message reaches every sink as a typed envelope.
package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Envelope is the wire format for every outbound message
type Envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives serialized envelopes. Send must be safe for concurrent use;
// a non-nil error drops the sink from the hub.
type Sink interface {
	ID() string
	Send(data []byte) error
}

// Hub tracks sinks and broadcasts envelopes to all of them
type Hub struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{sinks: make(map[string]Sink)}
}

// Register adds a sink
func (h *Hub) Register(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[s.ID()] = s
}

// Unregister removes a sink
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, id)
}

// ActiveSinks returns the number of registered sinks
func (h *Hub) ActiveSinks() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Broadcast wraps the payload in an envelope and sends it to every sink.
// Sinks that fail are dropped so one dead connection cannot accumulate
// errors across broadcasts.
func (h *Hub) Broadcast(messageType string, payload any) {
	data, err := json.Marshal(Envelope{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Failed to marshal broadcast envelope",
			"message_type", messageType, "error", err)
		return
	}

	// Snapshot sinks under the lock, then send without holding it so a slow
	// client cannot stall register/unregister.
	h.mu.RLock()
	sinks := make([]Sink, 0, len(h.sinks))
	for _, s := range h.sinks {
		sinks = append(sinks, s)
	}
	h.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(data); err != nil {
			slog.Warn("Dropping broadcast sink",
				"sink_id", s.ID(), "message_type", messageType, "error", err)
			h.Unregister(s.ID())
		}
	}
}

// Broadcaster is the narrow interface the coordinator publishes through
type Broadcaster interface {
	Broadcast(messageType string, payload any)
}

// Discard is a Broadcaster that drops everything, for tests and tooling
type Discard struct{}

func (Discard) Broadcast(string, any) {}
