package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// RosterHandler exposes tenant and class administration.
type RosterHandler struct {
	tenants database.TenantWriter
	classes database.ClassWriter
}

// NewRosterHandler creates a roster handler.
func NewRosterHandler(tenants database.TenantWriter, classes database.ClassWriter) *RosterHandler {
	return &RosterHandler{tenants: tenants, classes: classes}
}

// CreateTenant registers a new tenant.
func (h *RosterHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	tenantID, err := h.tenants.CreateTenant(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"tenant_id": tenantID})
}

// ListTenants lists all tenants.
func (h *RosterHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.Tenants(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tenants == nil {
		tenants = []database.Tenant{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// CreateClass registers a new class for a tenant.
func (h *RosterHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID int64  `json:"tenant_id"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.TenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	classID, err := h.classes.CreateClass(r.Context(), req.TenantID, strings.TrimSpace(req.Name))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"class_id": classID})
}

// ListClasses lists a tenant's classes.
func (h *RosterHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	tenantID := queryInt64(r, "tenant_id")
	if tenantID <= 0 {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	classes, err := h.classes.Classes(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if classes == nil {
		classes = []database.Class{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"classes": classes})
}
