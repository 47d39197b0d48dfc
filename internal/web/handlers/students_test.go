package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestStudentsListWithSampleCounts(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students?tenant_id=1", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Students []struct {
			ID          int64  `json:"ID"`
			Name        string `json:"Name"`
			SampleCount int    `json:"sample_count"`
		} `json:"students"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(resp.Students) != 1 {
		t.Fatalf("expected 1 student, got %d", len(resp.Students))
	}
	if resp.Students[0].SampleCount != 1 {
		t.Errorf("expected sample count 1, got %d", resp.Students[0].SampleCount)
	}
}

func TestStudentsListExcludesInactive(t *testing.T) {
	env := newTestEnv(t)
	env.roster.AddStudent(database.Student{ID: 12, TenantID: 1, Name: "Gone", Active: false})
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students?tenant_id=1", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	var resp struct {
		Students []json.RawMessage `json:"students"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(resp.Students) != 1 {
		t.Errorf("expected 1 active student, got %d", len(resp.Students))
	}
}

func TestStudentGet(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/students/10", nil),
		map[string]string{"studentId": "10"},
	)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Student database.Student           `json:"student"`
		Samples []database.EnrollmentImage `json:"samples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if resp.Student.Name != "Alice" {
		t.Errorf("expected Alice, got %q", resp.Student.Name)
	}
	if len(resp.Samples) != 1 {
		t.Errorf("expected 1 sample, got %d", len(resp.Samples))
	}
}

func TestStudentGetNotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/students/999", nil),
		map[string]string{"studentId": "999"},
	)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStudentAddSample(t *testing.T) {
	env := newTestEnv(t)
	samplesDir := t.TempDir()
	handler := NewStudentsHandler(env.roster, env.enrollment, samplesDir)

	req := requestWithChiParams(
		multipartImageRequest(t, http.MethodPost, "/api/v1/students/10/samples", []byte("jpeg bytes")),
		map[string]string{"studentId": "10"},
	)
	rec := httptest.NewRecorder()
	handler.AddSample(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ImageID int64  `json:"image_id"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}

	// File landed on disk and the reference is in the store.
	data, err := os.ReadFile(filepath.Join(samplesDir, resp.Path))
	if err != nil {
		t.Fatalf("stored sample unreadable: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Error("stored sample content mismatch")
	}

	images, err := env.enrollment.ImagesForStudent(context.Background(), 10)
	if err != nil {
		t.Fatalf("listing images failed: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("expected 2 images after upload, got %d", len(images))
	}
}

func TestStudentCreate(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	body := strings.NewReader(`{"tenant_id": 1, "name": "Carol", "roll_number": "42"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/students", body)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Student struct {
			ID         int64  `json:"ID"`
			Name       string `json:"Name"`
			RollNumber string `json:"RollNumber"`
			Active     bool   `json:"Active"`
		} `json:"student"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if resp.Student.Name != "Carol" || resp.Student.RollNumber != "42" {
		t.Errorf("unexpected student in response: %+v", resp.Student)
	}
	if !resp.Student.Active {
		t.Error("new student must start active")
	}

	students, err := env.roster.ActiveStudents(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 2 {
		t.Errorf("expected 2 active students after create, got %d", len(students))
	}
}

func TestStudentCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing tenant", `{"name": "Carol"}`},
		{"missing name", `{"tenant_id": 1}`},
		{"blank name", `{"tenant_id": 1, "name": "   "}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/students", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.Create(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestStudentDeactivateLeavesNextGalleryBuild(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())
	ctx := context.Background()

	env.train(t)
	g, err := env.cache.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 prototype before deactivation, got %d", g.Len())
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/students/10", nil)
	req = requestWithChiParams(req, map[string]string{"studentId": "10"})
	rec := httptest.NewRecorder()
	handler.Deactivate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env.train(t)
	g, err = env.cache.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 0 {
		t.Errorf("deactivated student must leave the gallery on retrain, got %d prototypes", g.Len())
	}
}

func TestStudentDeactivateNotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/students/999", nil)
	req = requestWithChiParams(req, map[string]string{"studentId": "999"})
	rec := httptest.NewRecorder()
	handler.Deactivate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStudentGetIncludesExtractedFaces(t *testing.T) {
	env := newTestEnv(t)
	handler := NewStudentsHandler(env.roster, env.enrollment, t.TempDir())

	// Training persists the extracted faces the endpoint reports.
	env.train(t)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/students/10", nil),
		map[string]string{"studentId": "10"},
	)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Faces []struct {
			ImageID  int64   `json:"image_id"`
			DetScore float64 `json:"det_score"`
			Dim      int     `json:"dim"`
		} `json:"faces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(resp.Faces) != 1 {
		t.Fatalf("expected 1 extracted face after training, got %d", len(resp.Faces))
	}
	if resp.Faces[0].Dim != 4 || resp.Faces[0].DetScore != 0.9 {
		t.Errorf("unexpected face metadata: %+v", resp.Faces[0])
	}
}
