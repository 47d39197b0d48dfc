// Package matching scores live embeddings against a tenant's gallery and
// renders accept/reject decisions.
package matching

import (
	"context"
	"log"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// UnknownName labels rejected or unmatched faces in results.
const UnknownName = "Unknown"

// Result is the outcome of matching one live embedding against a gallery.
// Ephemeral, produced per detected face per frame; never persisted.
type Result struct {
	IdentityID  int64     `json:"identity_id,omitempty"` // 0 when no identity accepted
	DisplayName string    `json:"display_name"`
	Score       float64   `json:"score"` // raw best score, reported regardless of decision
	Accepted    bool      `json:"accepted"`
	BBox        []float64 `json:"bbox,omitempty"`
}

// Engine matches live embeddings against cached tenant galleries.
type Engine struct {
	cache    *gallery.Cache
	detector extractor.Detector
	resize   float64
}

// NewEngine creates a matching engine. The resize factor applies to whole
// frames before detection (1.0 disables downscaling).
func NewEngine(cache *gallery.Cache, detector extractor.Detector, resize float64) *Engine {
	if resize <= 0 || resize > 1 {
		resize = 1
	}
	return &Engine{cache: cache, detector: detector, resize: resize}
}

// Match scores one embedding against the tenant's gallery. An empty gallery
// short-circuits to Unknown with score 0, no scan. Otherwise every
// prototype is compared with a linear dot-product scan (galleries are small
// and fully resident; an index would buy nothing but maintenance). Exact
// score ties keep the first identity encountered, in ascending identity-id
// order, so repeated calls agree.
func (e *Engine) Match(ctx context.Context, tenantID int64, embedding []float32, threshold float64) (Result, error) {
	g, err := e.cache.Get(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}

	if g.Len() == 0 {
		return Result{DisplayName: UnknownName}, nil
	}

	var bestID int64
	bestScore := -2.0 // below any possible cosine similarity
	for _, id := range g.IdentityIDs() {
		score := CosineSimilarity(embedding, g.Prototypes[id].Vector)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	result := Result{DisplayName: UnknownName, Score: bestScore}
	if bestScore > threshold {
		p := g.Prototypes[bestID]
		result.IdentityID = p.IdentityID
		result.DisplayName = p.DisplayName
		result.Accepted = true
	}
	return result, nil
}

// MatchFrame detects every face in a raw frame and matches each one
// independently against the tenant's gallery. Two faces may both resolve to
// the same identity; collapsing such duplicates is the caller's policy, not
// the engine's. Extractor failures degrade to "no faces this frame".
func (e *Engine) MatchFrame(ctx context.Context, tenantID int64, frame []byte, threshold float64) ([]Result, error) {
	input := frame
	downscaled := false
	if e.resize < 1 {
		scaled, err := extractor.DownscaleFrame(frame, e.resize)
		if err != nil {
			// Undecodable frames go to the detector untouched; it has its
			// own format handling.
			log.Printf("frame downscale failed, sending original: %v", err)
		} else {
			input = scaled
			downscaled = true
		}
	}

	faces, err := e.detector.DetectAndEmbed(ctx, input)
	if err != nil {
		log.Printf("tenant %d: extraction failed, treating frame as empty: %v", tenantID, err)
		return nil, nil
	}

	results := make([]Result, 0, len(faces))
	for i := range faces {
		r, err := e.Match(ctx, tenantID, faces[i].Embedding, threshold)
		if err != nil {
			return nil, err
		}
		bbox := faces[i].BBox
		if downscaled {
			bbox = extractor.ScaleBBox(bbox, e.resize)
		}
		r.BBox = bbox
		results = append(results, r)
	}
	return results, nil
}
