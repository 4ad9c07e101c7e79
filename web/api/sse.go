package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/julesqueue/julesq/internal/domain"
	"github.com/julesqueue/julesq/internal/webhook"
)

// Event types pushed to SSE and WebSocket clients.
const (
	EventSweep      = "sweep"
	EventTaskUpdate = "task_update"
	EventWebhook    = "webhook"
)

// Event is one queue event on the stream wire.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SweepEvent carries the tally of a finished retry sweep.
func SweepEvent(stats domain.RetryStats) Event {
	return Event{Type: EventSweep, Data: stats}
}

// TaskUpdateEvent carries a task's state after a comment check acted on it.
func TaskUpdateEvent(task TaskResponse) Event {
	return Event{Type: EventTaskUpdate, Data: task}
}

// WebhookEvent carries the action taken for a processed label event.
func WebhookEvent(result webhook.Result) Event {
	return Event{Type: EventWebhook, Data: result}
}

// Subscriber channels hold this many undelivered events before the
// consumer is considered stuck and dropped.
const eventBuffer = 8

// Hub fans queue events out to connected clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, eventBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// unsubscribe is idempotent: Broadcast may already have dropped and
// closed a slow subscriber.
func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast delivers the event to every subscriber without blocking;
// subscribers with a full buffer are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			delete(h.clients, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		client := s.hub.subscribe()
		go func() {
			<-r.Context().Done()
			s.hub.unsubscribe(client)
		}()

		for event := range client {
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
