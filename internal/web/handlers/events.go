package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// eventChannelBuffer is the buffer size of each subscriber channel.
const eventChannelBuffer = 100

// keepAliveInterval is how often an idle stream sends an SSE comment.
const keepAliveInterval = 30 * time.Second

// Registry event types.
const (
	EventRegistered = "registered"
	EventDeleted    = "deleted"
)

// RegistryEvent describes a change to the set of registered users.
type RegistryEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// EventBroadcaster fans registry events out to SSE subscribers.
// A nil broadcaster drops every event.
type EventBroadcaster struct {
	mu        sync.RWMutex
	listeners []chan RegistryEvent
}

// NewEventBroadcaster creates a broadcaster with no listeners.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{}
}

// AddListener subscribes a new buffered channel.
func (b *EventBroadcaster) AddListener() chan RegistryEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan RegistryEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unsubscribes and closes ch.
func (b *EventBroadcaster) RemoveListener(ch chan RegistryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close disconnects every subscriber.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}

// Listeners returns the number of current subscribers.
func (b *EventBroadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish sends event to all listeners without blocking.
func (b *EventBroadcaster) Publish(event RegistryEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// StatusEvent is the first message of every stream.
type StatusEvent struct {
	Users int `json:"users"`
}

// EventsHandler streams registry changes as server-sent events.
type EventsHandler struct {
	events *EventBroadcaster
	store  UserStore
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(events *EventBroadcaster, store UserStore, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		events: events,
		store:  store,
		logger: logger,
	}
}

// Stream handles GET /api/events. The stream ends when the client goes away
// or the broadcaster is closed on shutdown; EventSource clients reconnect on
// their own.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	users, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("listing users for event stream failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}

	eventCh := h.events.AddListener()
	defer h.events.RemoveListener(eventCh)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The server write timeout would otherwise cut the stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sendSSEEvent(w, flusher, "status", StatusEvent{Users: len(users)})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

func sendSSEEvent(w io.Writer, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
