package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/session"
)

// EventStream is the interface required to stream events via SSE: a
// listener channel plus a terminal check that ends the stream.
type EventStream interface {
	AddListener() chan session.Event
	RemoveListener(ch chan session.Event)
	Terminal() bool
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}

// streamSSEEvents streams events from the source until it reaches a
// terminal state, the client disconnects, or the listener channel closes.
// The initial payload is sent as a "status" event before any stream event.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, source EventStream, initial any) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := source.AddListener()
	defer source.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", initial)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if source.Terminal() {
				return
			}
		}
	}
}
