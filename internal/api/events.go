package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

// SSEEvent represents a server-sent event ready for transmission.
type SSEEvent struct {
	ID        string `json:"event_id"`
	Type      string `json:"event_type"`
	JobID     string `json:"job_id,omitempty"`
	Timestamp string `json:"timestamp"`
	Data      []byte `json:"-"` // pre-serialized JSON payload
}

// EventFilter specifies which events an SSE subscriber wants to receive.
type EventFilter struct {
	Types []string
	JobID string
}

// EventSource provides job lifecycle events to the API layer. The
// ingest event bus implements this interface; api owns it to avoid a
// circular import.
type EventSource interface {
	// Subscribe returns a channel that receives SSE events matching the filter,
	// and a cancel function to unsubscribe.
	Subscribe(filter EventFilter) (<-chan SSEEvent, func())

	// ReplaySince returns buffered events since the given event ID (for Last-Event-ID recovery).
	ReplaySince(lastEventID string, filter EventFilter) []SSEEvent
}

type EventsHandler struct {
	source EventSource
}

func NewEventsHandler(source EventSource) *EventsHandler {
	return &EventsHandler{source: source}
}

// StreamEvents opens an SSE connection and pushes filtered events.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	var filter EventFilter
	if v, ok := QueryString(r, "types"); ok {
		filter.Types = strings.Split(v, ",")
	}
	if v, ok := QueryString(r, "job_id"); ok {
		filter.JobID = v
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The response controller unwraps instrumented writers to reach
	// the flusher. Committing the headers up front doubles as the
	// streaming-support check.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Replay missed events if Last-Event-ID is provided
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID != "" {
		events := h.source.ReplaySince(lastEventID, filter)
		for _, e := range events {
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
		}
		rc.Flush()
	}

	ch, cancel := h.source.Subscribe(filter)
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, event.Data)
			rc.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			rc.Flush()
		}
	}
}

// Routes registers event routes on the given router.
func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/events/stream", h.StreamEvents)
}
