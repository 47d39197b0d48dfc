package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	// ProviderInsightFace is the default embedding server protocol
	// (multipart upload to /embed/face, faces returned with embeddings).
	ProviderInsightFace = "insightface"
	// ProviderCompreFace speaks the CompreFace detection plugin protocol.
	ProviderCompreFace = "compreface"
)

// Detector is the contract consumed by the prototype builder and the
// matching engine. Implementations must return reproducible embeddings of
// fixed dimension for the same face.
type Detector interface {
	DetectAndEmbed(ctx context.Context, imageData []byte) ([]Face, error)
	Dim() int
}

// Client talks to the external face detection/embedding server.
type Client struct {
	baseURL  string
	provider string
	dim      int
	client   *http.Client
}

// NewClient creates a client for the configured provider. An empty provider
// defaults to insightface.
func NewClient(baseURL, provider string, dim int) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("extractor URL is required")
	}
	if provider == "" {
		provider = ProviderInsightFace
	}
	if provider != ProviderInsightFace && provider != ProviderCompreFace {
		return nil, fmt.Errorf("unknown extractor provider %q", provider)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		provider: provider,
		dim:      dim,
		client:   &http.Client{},
	}, nil
}

// Dim returns the fixed embedding dimension for this deployment.
func (c *Client) Dim() int {
	return c.dim
}

// faceResponse is the insightface-style detection response.
type faceResponse struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// compreFaceResponse is the CompreFace detection plugin response.
type compreFaceResponse struct {
	Result []struct {
		Box struct {
			XMin float64 `json:"x_min"`
			YMin float64 `json:"y_min"`
			XMax float64 `json:"x_max"`
			YMax float64 `json:"y_max"`
			Prob float64 `json:"probability"`
		} `json:"box"`
		Embedding []float32 `json:"embedding"`
	} `json:"result"`
}

// DetectAndEmbed detects all faces in the image and returns their
// embeddings. Faces whose embedding dimension differs from the configured
// one are rejected, since mixing dimensions between enrollment and matching
// silently breaks the dot product downstream.
func (c *Client) DetectAndEmbed(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := c.postMultipartImage(ctx, c.endpoint(), imageData)
	if err != nil {
		return nil, err
	}

	faces, err := c.decodeFaces(body)
	if err != nil {
		return nil, err
	}

	for i := range faces {
		if len(faces[i].Embedding) != c.dim {
			return nil, fmt.Errorf("face %d: embedding dimension %d, deployment expects %d",
				i, len(faces[i].Embedding), c.dim)
		}
	}
	return faces, nil
}

func (c *Client) endpoint() string {
	if c.provider == ProviderCompreFace {
		return "/api/v1/detection/detect"
	}
	return "/embed/face"
}

func (c *Client) decodeFaces(body []byte) ([]Face, error) {
	if c.provider == ProviderCompreFace {
		var resp compreFaceResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		faces := make([]Face, 0, len(resp.Result))
		for i, r := range resp.Result {
			faces = append(faces, Face{
				FaceIndex: i,
				Dim:       len(r.Embedding),
				Embedding: r.Embedding,
				BBox:      []float64{r.Box.XMin, r.Box.YMin, r.Box.XMax, r.Box.YMax},
				DetScore:  r.Box.Prob,
			})
		}
		return faces, nil
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Faces, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	mimeType := detectMIMEType(imageData)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
