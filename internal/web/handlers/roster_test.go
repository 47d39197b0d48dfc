package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestTenantCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	handler := NewRosterHandler(env.roster, env.roster)

	body := strings.NewReader(`{"name": "faculty-b"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants", body)
	rec := httptest.NewRecorder()
	handler.CreateTenant(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		TenantID int64 `json:"tenant_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if created.TenantID <= 0 {
		t.Fatalf("expected a positive tenant id, got %d", created.TenantID)
	}

	rec = httptest.NewRecorder()
	handler.ListTenants(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil))
	var listed struct {
		Tenants []database.Tenant `json:"tenants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(listed.Tenants) != 2 {
		t.Errorf("expected 2 tenants after create, got %d", len(listed.Tenants))
	}
}

func TestClassCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	handler := NewRosterHandler(env.roster, env.roster)

	body := strings.NewReader(`{"tenant_id": 1, "name": "EE201"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classes", body)
	rec := httptest.NewRecorder()
	handler.CreateClass(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ListClasses(rec, httptest.NewRequest(http.MethodGet, "/api/v1/classes?tenant_id=1", nil))
	var listed struct {
		Classes []database.Class `json:"classes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(listed.Classes) != 2 {
		t.Errorf("expected 2 classes after create, got %d", len(listed.Classes))
	}
}

func TestRosterCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	handler := NewRosterHandler(env.roster, env.roster)

	tests := []struct {
		name string
		post func(body string) *httptest.ResponseRecorder
		body string
	}{
		{"tenant invalid json", func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			handler.CreateTenant(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tenants", strings.NewReader(body)))
			return rec
		}, `{`},
		{"tenant blank name", func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			handler.CreateTenant(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tenants", strings.NewReader(body)))
			return rec
		}, `{"name": " "}`},
		{"class missing tenant", func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			handler.CreateClass(rec, httptest.NewRequest(http.MethodPost, "/api/v1/classes", strings.NewReader(body)))
			return rec
		}, `{"name": "EE201"}`},
		{"class blank name", func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			handler.CreateClass(rec, httptest.NewRequest(http.MethodPost, "/api/v1/classes", strings.NewReader(body)))
			return rec
		}, `{"tenant_id": 1, "name": ""}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := tc.post(tc.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTenantCreateRepositoryError(t *testing.T) {
	env := newTestEnv(t)
	env.roster.CreateError = errors.New("connection reset")
	handler := NewRosterHandler(env.roster, env.roster)

	body := strings.NewReader(`{"name": "faculty-b"}`)
	rec := httptest.NewRecorder()
	handler.CreateTenant(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tenants", body))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
