package gallery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/extractor"
)

// Builder turns a set of enrollment sample images for one identity into a
// single normalized prototype vector.
type Builder struct {
	detector extractor.Detector
}

// NewBuilder creates a prototype builder over the given detector.
func NewBuilder(detector extractor.Detector) *Builder {
	return &Builder{detector: detector}
}

// Build extracts one embedding per usable sample image and averages them
// into a prototype. Images where detection fails or finds no face are
// skipped (logged, non-fatal); when an image contains multiple faces the
// largest one is assumed to be the enrollee. Returns ErrNoFaceFound when no
// sample yields a face.
//
// Averaging unit vectors does not preserve unit norm, so the mean is
// re-normalized before it can ever feed a dot-product comparison.
func (b *Builder) Build(ctx context.Context, identityID int64, displayName string, images [][]byte) (*Prototype, error) {
	var vectors [][]float32

	for i, img := range images {
		faces, err := b.detector.DetectAndEmbed(ctx, img)
		if err != nil {
			log.Printf("identity %d: sample %d: extraction failed: %v", identityID, i, err)
			continue
		}
		face := extractor.LargestFace(faces)
		if face == nil {
			log.Printf("identity %d: sample %d: no face detected", identityID, i)
			continue
		}
		if len(vectors) > 0 && len(face.Embedding) != len(vectors[0]) {
			return nil, fmt.Errorf("identity %d: sample %d: embedding dimension %d differs from %d",
				identityID, i, len(face.Embedding), len(vectors[0]))
		}
		vectors = append(vectors, face.Embedding)
	}

	return b.FromVectors(identityID, displayName, vectors)
}

// FromVectors averages already-extracted embeddings into a normalized
// prototype. Used by the training pipeline when embeddings were persisted
// during extraction and do not need to be recomputed. Returns
// ErrNoFaceFound for an empty set.
func (b *Builder) FromVectors(identityID int64, displayName string, vectors [][]float32) (*Prototype, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("identity %d: %w", identityID, ErrNoFaceFound)
	}

	vec := Mean(vectors)
	Normalize(vec)

	return &Prototype{
		IdentityID:  identityID,
		DisplayName: displayName,
		Vector:      vec,
		SampleCount: len(vectors),
		CreatedAt:   time.Now().UTC(),
	}, nil
}
