package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/session"
)

// SessionsHandler manages live recognition sessions over HTTP: frames are
// pushed in per session, marks and recognitions stream out via SSE.
type SessionsHandler struct {
	manager *session.Manager

	mu      sync.Mutex
	sources map[string]*session.FrameChannel
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(manager *session.Manager) *SessionsHandler {
	return &SessionsHandler{
		manager: manager,
		sources: make(map[string]*session.FrameChannel),
	}
}

type startSessionRequest struct {
	TenantID int64 `json:"tenant_id"`
	ClassID  int64 `json:"class_id"`
}

// Start opens a live session for a tenant and class.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.TenantID <= 0 || req.ClassID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id and class_id are required")
		return
	}

	source := session.NewFrameChannel()
	s := h.manager.Start(req.TenantID, req.ClassID, source)

	h.mu.Lock()
	h.sources[s.ID] = source
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, s.Snapshot())
}

// List returns all sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": h.manager.List()})
}

// Get returns one session's state.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Get(chi.URLParam(r, "sessionId"))
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// PushFrame queues one frame for evaluation. Frames beyond the buffer are
// dropped and reported as such; the session loop never blocks producers.
func (h *SessionsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	h.mu.Lock()
	source := h.sources[id]
	h.mu.Unlock()
	if source == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	frame, ok := readImageUpload(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}

	if !source.Push(frame) {
		respondJSON(w, http.StatusAccepted, map[string]any{"queued": false})
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

// Stop ends a session, draining any in-flight attendance marks first.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	h.mu.Lock()
	source := h.sources[id]
	delete(h.sources, id)
	h.mu.Unlock()
	if source != nil {
		source.Close()
	}

	if err := h.manager.Stop(id); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, h.manager.Get(id).Snapshot())
}

// Events streams session recognitions and marks via SSE.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Get(chi.URLParam(r, "sessionId"))
	if s == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	streamSSEEvents(w, r, sessionStream{s}, s.Snapshot())
}

// sessionStream adapts a live session to the SSE EventStream interface.
type sessionStream struct {
	*session.Session
}

func (s sessionStream) Terminal() bool {
	return s.Snapshot().Status != session.SessionRunning
}
