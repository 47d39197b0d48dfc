package handlers

import (
	"io"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/matching"
)

// RecognizeHandler exposes one-shot recognition against a tenant gallery.
type RecognizeHandler struct {
	config *config.Config
	engine *matching.Engine
}

// NewRecognizeHandler creates a recognition handler.
func NewRecognizeHandler(cfg *config.Config, engine *matching.Engine) *RecognizeHandler {
	return &RecognizeHandler{config: cfg, engine: engine}
}

// readImageUpload extracts the "image" file from a multipart request.
func readImageUpload(r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, false
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Recognize matches every face in an uploaded image against a tenant's
// gallery. The threshold profile defaults to "verification" for one-shot
// checks; pass profile=stream to use the live-session threshold.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	if tenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	profile := r.URL.Query().Get("profile")
	if profile == "" {
		profile = "verification"
	}
	threshold := h.config.Threshold(profile)

	image, ok := readImageUpload(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "image upload is required")
		return
	}

	results, err := h.engine.MatchFrame(r.Context(), tenantID, image, threshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []matching.Result{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"threshold": threshold,
		"faces":     results,
	})
}
