// Package session runs the two long-lived workflows: tenant gallery
// training and live recognition sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/identity"
)

// ErrTrainingInProgress is returned when a tenant retrain is requested
// while one is already running for the same tenant.
var ErrTrainingInProgress = errors.New("training already in progress for this tenant")

// defaultBuildConcurrency bounds parallel per-student extraction during a
// training run.
const defaultBuildConcurrency = 4

// SampleLoader loads enrollment sample bytes by stored path.
type SampleLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// FileLoader loads enrollment samples from a base directory on local disk.
type FileLoader struct {
	Base string
}

// Load reads one sample file. Stored paths are relative to the base
// directory and may not escape it.
func (f FileLoader) Load(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Join(f.Base, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", path, err)
	}
	return data, nil
}

// IdentityReport summarizes one student's outcome in a training run.
type IdentityReport struct {
	StudentID   int64  `json:"student_id"`
	Name        string `json:"name"`
	SampleCount int    `json:"sample_count"` // usable samples that fed the prototype
	Enrolled    bool   `json:"enrolled"`
	Reason      string `json:"reason,omitempty"` // why the student was skipped
}

// TrainReport is the outcome of one tenant training run.
type TrainReport struct {
	TenantID       int64            `json:"tenant_id"`
	GalleryVersion int64            `json:"gallery_version"`
	Enrolled       int              `json:"enrolled"`
	Skipped        int              `json:"skipped"`
	Identities     []IdentityReport `json:"identities"`
	Duration       time.Duration    `json:"duration_ns"`
}

// Trainer rebuilds tenant galleries from the enrollment roster. At most
// one training run per tenant may be active at a time; different tenants
// train independently.
type Trainer struct {
	roster      database.StudentReader
	enrollment  database.EnrollmentWriter
	detector    extractor.Detector
	builder     *gallery.Builder
	store       *gallery.Store
	cache       *gallery.Cache
	loader      SampleLoader
	concurrency int

	// Progress, when set, is called after each student finishes.
	Progress func(done, total int)

	mu      sync.Mutex
	running map[int64]bool
}

// NewTrainer creates a trainer over the given collaborators.
func NewTrainer(
	roster database.StudentReader,
	enrollment database.EnrollmentWriter,
	detector extractor.Detector,
	store *gallery.Store,
	cache *gallery.Cache,
	loader SampleLoader,
) *Trainer {
	return &Trainer{
		roster:      roster,
		enrollment:  enrollment,
		detector:    detector,
		builder:     gallery.NewBuilder(detector),
		store:       store,
		cache:       cache,
		loader:      loader,
		concurrency: defaultBuildConcurrency,
		running:     make(map[int64]bool),
	}
}

// acquire marks the tenant as training, failing if a run is active.
func (t *Trainer) acquire(tenantID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running[tenantID] {
		return ErrTrainingInProgress
	}
	t.running[tenantID] = true
	return nil
}

func (t *Trainer) release(tenantID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, tenantID)
}

// InProgress reports whether a training run is active for the tenant.
func (t *Trainer) InProgress(tenantID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running[tenantID]
}

// Train rebuilds the tenant's gallery from its active roster: extract
// faces from every student's enrollment samples, average them into
// prototypes, persist the gallery, and swap the cache. The new gallery
// fully replaces the previous one; students with zero usable samples are
// excluded and reported, never fatal. A failed save leaves the old
// gallery in place.
func (t *Trainer) Train(ctx context.Context, tenantID int64) (*TrainReport, error) {
	return t.TrainWithProgress(ctx, tenantID, t.Progress)
}

// TrainWithProgress is Train with a per-call progress callback, used when
// multiple runs report to independent observers.
func (t *Trainer) TrainWithProgress(ctx context.Context, tenantID int64, progress func(done, total int)) (*TrainReport, error) {
	if err := t.acquire(tenantID); err != nil {
		return nil, err
	}
	defer t.release(tenantID)

	started := time.Now()

	students, err := t.roster.ActiveStudents(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load roster for tenant %d: %w", tenantID, err)
	}

	for _, name := range duplicateNames(students) {
		log.Printf("tenant %d: multiple students share the name %q, verify the roster", tenantID, name)
	}

	g := gallery.NewEmpty(tenantID)
	report := &TrainReport{
		TenantID:   tenantID,
		Identities: make([]IdentityReport, len(students)),
	}

	var done int
	var progressMu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(t.concurrency)
	for i, student := range students {
		i, student := i, student
		eg.Go(func() error {
			proto, sampleCount, reason := t.buildStudent(egCtx, student)

			progressMu.Lock()
			report.Identities[i] = IdentityReport{
				StudentID:   student.ID,
				Name:        student.Name,
				SampleCount: sampleCount,
				Enrolled:    proto != nil,
				Reason:      reason,
			}
			if proto != nil {
				g.Prototypes[student.ID] = *proto
			}
			done++
			if progress != nil {
				progress(done, len(students))
			}
			progressMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, ir := range report.Identities {
		if ir.Enrolled {
			report.Enrolled++
		} else {
			report.Skipped++
		}
	}

	g.Version = time.Now().Unix()
	if err := t.store.Save(g); err != nil {
		return nil, fmt.Errorf("persist gallery for tenant %d: %w", tenantID, err)
	}
	t.cache.Replace(g)

	report.GalleryVersion = g.Version
	report.Duration = time.Since(started)
	return report, nil
}

// duplicateNames returns display names shared by more than one student
// after diacritics-insensitive normalization. Collisions are legitimate
// (rosters do contain namesakes) but worth surfacing before a session
// marks attendance against them.
func duplicateNames(students []database.Student) []string {
	byNorm := make(map[string]int, len(students))
	for _, s := range students {
		byNorm[identity.NormalizeName(s.Name)]++
	}
	var dupes []string
	seen := make(map[string]bool)
	for _, s := range students {
		n := identity.NormalizeName(s.Name)
		if byNorm[n] > 1 && !seen[n] {
			seen[n] = true
			dupes = append(dupes, s.Name)
		}
	}
	return dupes
}

// buildStudent extracts faces from one student's samples and builds the
// prototype. Per-sample failures are logged and skipped; a student with
// zero usable samples yields a nil prototype with the reason set.
func (t *Trainer) buildStudent(ctx context.Context, student database.Student) (*gallery.Prototype, int, string) {
	images, err := t.enrollment.ImagesForStudent(ctx, student.ID)
	if err != nil {
		log.Printf("student %d: loading enrollment images failed: %v", student.ID, err)
		return nil, 0, "enrollment images unavailable"
	}
	if len(images) == 0 {
		return nil, 0, "no enrollment samples"
	}

	var faces []database.EnrollmentFace
	var vectors [][]float32
	for _, img := range images {
		data, err := t.loader.Load(ctx, img.Path)
		if err != nil {
			log.Printf("student %d: sample %s unreadable: %v", student.ID, img.Path, err)
			continue
		}
		detected, err := t.detector.DetectAndEmbed(ctx, data)
		if err != nil {
			log.Printf("student %d: sample %s: extraction failed: %v", student.ID, img.Path, err)
			continue
		}
		face := extractor.LargestFace(detected)
		if face == nil {
			log.Printf("student %d: sample %s: no face detected", student.ID, img.Path)
			continue
		}

		faces = append(faces, database.EnrollmentFace{
			StudentID: student.ID,
			ImageID:   img.ID,
			Embedding: face.Embedding,
			BBox:      face.BBox,
			DetScore:  face.DetScore,
			Dim:       len(face.Embedding),
		})
		vectors = append(vectors, face.Embedding)
	}

	if len(vectors) == 0 {
		return nil, 0, "no usable faces in samples"
	}

	// Keep extracted faces for observability and future retrains. Failure
	// here does not block the prototype, the gallery is the contract.
	if err := t.enrollment.ReplaceFaces(ctx, student.ID, faces); err != nil {
		log.Printf("student %d: persisting extracted faces failed: %v", student.ID, err)
	}

	proto, err := t.builder.FromVectors(student.ID, student.Name, vectors)
	if err != nil {
		log.Printf("student %d: prototype build failed: %v", student.ID, err)
		return nil, 0, "prototype build failed"
	}
	return proto, len(vectors), ""
}
