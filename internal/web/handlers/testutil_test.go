package handlers

import (
	"bytes"
	"context"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// testConfig creates a minimal config for testing.
func testConfig() *config.Config {
	return &config.Config{
		Thresholds: config.ThresholdsConfig{
			Profiles: map[string]config.ThresholdProfile{
				"stream":       {Threshold: 0.50},
				"verification": {Threshold: 0.65},
			},
		},
	}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartImageRequest builds a multipart request with one "image" part.
func multipartImageRequest(t *testing.T, method, path string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		t.Fatalf("creating form file failed: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("writing form file failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// canned detector: image bytes map straight to faces.
type stubDetector struct {
	mu    sync.Mutex
	faces map[string][]extractor.Face
	err   error
}

func (d *stubDetector) DetectAndEmbed(ctx context.Context, image []byte) ([]extractor.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.faces[string(image)], nil
}

func (d *stubDetector) Dim() int { return 4 }

// unitVec builds a 4-dim unit vector with the given leading component.
func unitVec(lead float64) []float32 {
	rest := math.Sqrt(1 - lead*lead)
	return []float32{float32(lead), float32(rest), 0, 0}
}

// testEnv bundles the full wired stack handler tests run against.
type testEnv struct {
	config     *config.Config
	roster     *mock.MockRoster
	enrollment *mock.MockEnrollment
	records    *mock.MockAttendance
	cache      *gallery.Cache
	store      *gallery.Store
	detector   *stubDetector
	engine     *matching.Engine
	marker     *attendance.Marker
	trainer    *session.Trainer
	manager    *session.Manager
}

// memLoader serves enrollment samples from a map keyed by path.
type memLoader map[string][]byte

func (m memLoader) Load(ctx context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, context.Canceled
	}
	return data, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := gallery.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store failed: %v", err)
	}
	cache := gallery.NewCache(store)

	roster := mock.NewMockRoster()
	roster.AddTenant(database.Tenant{ID: 1, Name: "faculty-a"})
	roster.AddStudent(database.Student{ID: 10, TenantID: 1, Name: "Alice", Active: true})
	roster.AddClass(database.Class{ID: 100, TenantID: 1, Name: "CS101"})

	enrollment := mock.NewMockEnrollment()
	records := mock.NewMockAttendance(roster)

	detector := &stubDetector{faces: map[string][]extractor.Face{
		"alice_sample": {{Dim: 4, Embedding: unitVec(0.99), BBox: []float64{0, 0, 100, 100}, DetScore: 0.9}},
		"alice_frame":  {{Dim: 4, Embedding: unitVec(0.98), BBox: []float64{0, 0, 100, 100}, DetScore: 0.9}},
	}}

	loader := memLoader{"alice.jpg": []byte("alice_sample")}
	if _, err := enrollment.AddImage(context.Background(), 10, "alice.jpg"); err != nil {
		t.Fatalf("adding image failed: %v", err)
	}

	cfg := testConfig()
	engine := matching.NewEngine(cache, detector, 1.0)
	marker := attendance.NewMarker(roster, records)
	trainer := session.NewTrainer(roster, enrollment, detector, store, cache, loader)
	manager := session.NewManager(engine, marker, cfg.Threshold("stream"), 1, 0)

	return &testEnv{
		config:     cfg,
		roster:     roster,
		enrollment: enrollment,
		records:    records,
		cache:      cache,
		store:      store,
		detector:   detector,
		engine:     engine,
		marker:     marker,
		trainer:    trainer,
		manager:    manager,
	}
}

// train runs a synchronous training pass so the gallery has Alice in it.
func (e *testEnv) train(t *testing.T) {
	t.Helper()
	if _, err := e.trainer.Train(context.Background(), 1); err != nil {
		t.Fatalf("training failed: %v", err)
	}
}
