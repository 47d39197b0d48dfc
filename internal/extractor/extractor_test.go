package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLargestFace(t *testing.T) {
	tests := []struct {
		name     string
		faces    []Face
		expected int // index of expected winner, -1 for nil
	}{
		{"empty", nil, -1},
		{
			"single",
			[]Face{{FaceIndex: 0, BBox: []float64{0, 0, 10, 10}}},
			0,
		},
		{
			"largest wins",
			[]Face{
				{FaceIndex: 0, BBox: []float64{0, 0, 10, 10}},
				{FaceIndex: 1, BBox: []float64{0, 0, 50, 50}},
				{FaceIndex: 2, BBox: []float64{0, 0, 20, 20}},
			},
			1,
		},
		{
			"first wins on exact tie",
			[]Face{
				{FaceIndex: 0, BBox: []float64{0, 0, 30, 30}},
				{FaceIndex: 1, BBox: []float64{100, 100, 130, 130}},
			},
			0,
		},
		{
			"malformed box loses to valid box",
			[]Face{
				{FaceIndex: 0, BBox: []float64{5, 5}},
				{FaceIndex: 1, BBox: []float64{0, 0, 10, 10}},
			},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LargestFace(tt.faces)
			if tt.expected < 0 {
				if got != nil {
					t.Fatalf("LargestFace = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("LargestFace = nil, want a face")
			}
			if got.FaceIndex != tt.expected {
				t.Errorf("LargestFace picked face %d, want %d", got.FaceIndex, tt.expected)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0x00}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDetectAndEmbedInsightFace(t *testing.T) {
	embedding := make([]float32, 4)
	for i := range embedding {
		embedding[i] = 0.5
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 1,
			Faces: []Face{
				{FaceIndex: 0, Dim: 4, Embedding: embedding, BBox: []float64{1, 2, 3, 4}, DetScore: 0.99},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, ProviderInsightFace, 4)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	faces, err := client.DetectAndEmbed(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00})
	if err != nil {
		t.Fatalf("DetectAndEmbed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(faces))
	}
	if faces[0].DetScore != 0.99 {
		t.Errorf("DetScore = %v, want 0.99", faces[0].DetScore)
	}
}

func TestDetectAndEmbedDimMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 1,
			Faces:      []Face{{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 2, 3}}},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", 512)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.DetectAndEmbed(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected dimension mismatch error, got nil")
	}
}

func TestDetectAndEmbedCompreFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/detection/detect" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"result":[{"box":{"x_min":10,"y_min":20,"x_max":30,"y_max":40,"probability":0.87},"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, ProviderCompreFace, 2)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	faces, err := client.DetectAndEmbed(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("DetectAndEmbed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(faces))
	}
	want := []float64{10, 20, 30, 40}
	for i, v := range faces[0].BBox {
		if v != want[i] {
			t.Errorf("BBox[%d] = %v, want %v", i, v, want[i])
		}
	}
	if faces[0].DetScore != 0.87 {
		t.Errorf("DetScore = %v, want 0.87", faces[0].DetScore)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", ProviderInsightFace, 512); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewClient("http://localhost", "magic", 512); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewClient("http://localhost", ProviderInsightFace, 0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestDownscaleFrame(t *testing.T) {
	// Encode a 100x60 test image.
	img := image.NewRGBA(image.Rect(0, 0, 100, 60))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test image: %v", err)
	}

	out, err := DownscaleFrame(buf.Bytes(), 0.5)
	if err != nil {
		t.Fatalf("DownscaleFrame: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Bounds().Dx() != 50 || decoded.Bounds().Dy() != 30 {
		t.Errorf("downscaled to %dx%d, want 50x30", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}

	// Factor 1.0 is a no-op.
	same, err := DownscaleFrame(buf.Bytes(), 1.0)
	if err != nil {
		t.Fatalf("DownscaleFrame noop: %v", err)
	}
	if !bytes.Equal(same, buf.Bytes()) {
		t.Error("factor 1.0 should return input unchanged")
	}
}

func TestScaleBBox(t *testing.T) {
	bbox := []float64{10, 20, 30, 40}
	scaled := ScaleBBox(bbox, 0.5)
	want := []float64{20, 40, 60, 80}
	for i := range want {
		if scaled[i] != want[i] {
			t.Errorf("ScaleBBox[%d] = %v, want %v", i, scaled[i], want[i])
		}
	}

	// Identity factor returns the box as-is.
	if got := ScaleBBox(bbox, 1.0); &got[0] != &bbox[0] {
		t.Error("factor 1.0 should return input slice")
	}
}
