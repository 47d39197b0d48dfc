package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler exposes attendance listings and the administrative
// bulk reset.
type AttendanceHandler struct {
	records database.AttendanceReader
	marker  *attendance.Marker
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(records database.AttendanceReader, marker *attendance.Marker) *AttendanceHandler {
	return &AttendanceHandler{records: records, marker: marker}
}

// List returns a tenant's attendance records for one date; date defaults
// to today.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	if tenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = database.DateOf(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.records.RecordsByDate(r.Context(), tenantID, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"records": records,
	})
}

// ResetAll deletes every attendance record and reports the count.
func (h *AttendanceHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.marker.ResetAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
