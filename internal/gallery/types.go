// Package gallery implements per-tenant identity galleries: building
// prototype vectors from enrollment samples, persisting galleries as
// per-tenant blobs, and caching loaded galleries for matching.
package gallery

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	// ErrNoFaceFound means no usable face was detected in any of the
	// enrollment samples for an identity.
	ErrNoFaceFound = errors.New("no face found in enrollment samples")

	// ErrCorruptGallery means a persisted gallery blob exists but cannot be
	// decoded. Callers decide whether to retrain or surface the error; the
	// store never silently treats a corrupt blob as an empty gallery.
	ErrCorruptGallery = errors.New("corrupt gallery blob")
)

// Prototype is the representative embedding for one enrolled identity,
// derived from its enrollment samples. Immutable between trainings.
type Prototype struct {
	IdentityID  int64
	DisplayName string
	Vector      []float32 // unit L2 norm
	SampleCount int       // enrollment images that contributed a vector
	CreatedAt   time.Time
}

// Gallery is the full set of prototypes for one tenant. Galleries are
// replaced wholesale on retraining, never patched, so identities dropped
// from the roster disappear with the swap. Treat loaded galleries as
// immutable snapshots.
type Gallery struct {
	TenantID   int64
	Prototypes map[int64]Prototype
	Version    int64 // build timestamp (unix seconds)
}

// NewEmpty returns the valid "nothing enrolled yet" gallery for a tenant.
func NewEmpty(tenantID int64) *Gallery {
	return &Gallery{TenantID: tenantID, Prototypes: map[int64]Prototype{}}
}

// Len returns the number of enrolled identities.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Prototypes)
}

// IdentityIDs returns the identity ids in ascending order. Matching
// iterates in this order so score ties break deterministically.
func (g *Gallery) IdentityIDs() []int64 {
	ids := make([]int64, 0, len(g.Prototypes))
	for id := range g.Prototypes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales a vector to unit L2 norm in place. Zero vectors are left
// untouched.
func Normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// Mean computes the arithmetic mean of the given vectors. All vectors must
// share the same dimension; callers enforce that before accumulating.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			sums[i] += float64(x)
		}
	}
	mean := make([]float32, dim)
	for i, s := range sums {
		mean[i] = float32(s / float64(len(vectors)))
	}
	return mean
}
