package gallery

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/extractor"
)

// fakeDetector returns canned detection results per call.
type fakeDetector struct {
	results [][]extractor.Face
	errs    []error
	calls   int
}

func (f *fakeDetector) DetectAndEmbed(ctx context.Context, imageData []byte) ([]extractor.Face, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, nil
}

func (f *fakeDetector) Dim() int { return 2 }

func face(bbox []float64, embedding ...float32) extractor.Face {
	return extractor.Face{BBox: bbox, Embedding: embedding, Dim: len(embedding)}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if n := Norm(v); math.Abs(n-1.0) > 1e-6 {
		t.Errorf("norm after Normalize = %v, want 1.0", n)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("Normalize should leave zero vectors untouched")
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 0}, {0, 1}})
	want := []float32{0.5, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Mean[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if Mean(nil) != nil {
		t.Error("Mean of no vectors should be nil")
	}
}

func TestBuildPrototype(t *testing.T) {
	det := &fakeDetector{
		results: [][]extractor.Face{
			{face([]float64{0, 0, 10, 10}, 1, 0)},
			{face([]float64{0, 0, 10, 10}, 0, 1)},
		},
	}

	p, err := NewBuilder(det).Build(context.Background(), 7, "Alice", [][]byte{{1}, {2}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", p.SampleCount)
	}
	if p.IdentityID != 7 || p.DisplayName != "Alice" {
		t.Errorf("identity fields = %d/%q", p.IdentityID, p.DisplayName)
	}
	// Mean of two orthogonal unit vectors has norm 1/sqrt(2); the prototype
	// must be re-normalized to unit length.
	if n := Norm(p.Vector); math.Abs(n-1.0) > 1e-6 {
		t.Errorf("prototype norm = %v, want 1.0", n)
	}
}

func TestBuildSkipsFailedSamples(t *testing.T) {
	// 3 images: one extraction error, two good ones.
	det := &fakeDetector{
		results: [][]extractor.Face{
			nil,
			{face([]float64{0, 0, 10, 10}, 1, 0)},
			{face([]float64{0, 0, 10, 10}, 1, 0)},
		},
		errs: []error{errors.New("server unavailable"), nil, nil},
	}

	p, err := NewBuilder(det).Build(context.Background(), 1, "Bob", [][]byte{{1}, {2}, {3}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2 (one sample failed extraction)", p.SampleCount)
	}
}

func TestBuildPicksLargestFace(t *testing.T) {
	det := &fakeDetector{
		results: [][]extractor.Face{
			{
				face([]float64{0, 0, 10, 10}, 0, 1),   // small background face
				face([]float64{0, 0, 100, 100}, 1, 0), // the enrollee
			},
		},
	}

	p, err := NewBuilder(det).Build(context.Background(), 1, "Carol", [][]byte{{1}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Vector[0] != 1 || p.Vector[1] != 0 {
		t.Errorf("prototype = %v, want largest face embedding [1 0]", p.Vector)
	}
}

func TestBuildNoFaces(t *testing.T) {
	det := &fakeDetector{results: [][]extractor.Face{nil, nil}}

	_, err := NewBuilder(det).Build(context.Background(), 1, "Dan", [][]byte{{1}, {2}})
	if !errors.Is(err, ErrNoFaceFound) {
		t.Errorf("Build error = %v, want ErrNoFaceFound", err)
	}
}

func testGallery(tenantID int64) *Gallery {
	return &Gallery{
		TenantID: tenantID,
		Version:  42,
		Prototypes: map[int64]Prototype{
			1: {IdentityID: 1, DisplayName: "Alice", Vector: []float32{1, 0}, SampleCount: 3},
			2: {IdentityID: 2, DisplayName: "Bob", Vector: []float32{0, 1}, SampleCount: 1},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(testGallery(5)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g, err := store.Load(5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.TenantID != 5 || g.Version != 42 || g.Len() != 2 {
		t.Errorf("loaded gallery = %+v", g)
	}
	if g.Prototypes[1].DisplayName != "Alice" || g.Prototypes[1].SampleCount != 3 {
		t.Errorf("prototype 1 = %+v", g.Prototypes[1])
	}
}

func TestStoreLoadAbsent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	g, err := store.Load(999)
	if err != nil {
		t.Fatalf("Load absent: %v", err)
	}
	if g != nil {
		t.Errorf("Load absent = %+v, want nil", g)
	}
}

func TestStoreCorruptBlob(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not a gallery at all")},
		{"truncated header", []byte("FA")},
		{"bad magic", []byte("XXXX\x00\x01rest")},
		{"future version", append([]byte("FAGL\x00\x99"), make([]byte, 16)...)},
		{"truncated body", []byte("FAGL\x00\x01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, "tenant_3.gallery"), tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := store.Load(3)
			if !errors.Is(err, ErrCorruptGallery) {
				t.Errorf("Load corrupt = %v, want ErrCorruptGallery", err)
			}
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(testGallery(1)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Retrain: roster dropped identity 1, added identity 9.
	replacement := &Gallery{
		TenantID: 1,
		Version:  43,
		Prototypes: map[int64]Prototype{
			2: {IdentityID: 2, DisplayName: "Bob", Vector: []float32{0, 1}, SampleCount: 1},
			9: {IdentityID: 9, DisplayName: "Eve", Vector: []float32{1, 0}, SampleCount: 2},
		},
	}
	if err := store.Save(replacement); err != nil {
		t.Fatalf("Save replacement: %v", err)
	}

	g, err := store.Load(1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := g.Prototypes[1]; ok {
		t.Error("dropped identity 1 still present after full-replace save")
	}
	if _, ok := g.Prototypes[9]; !ok {
		t.Error("added identity 9 missing after full-replace save")
	}
}

func TestCacheGetEmptyForUntrainedTenant(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	cache := NewCache(store)

	g, err := cache.Get(context.Background(), 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Len() != 0 || g.TenantID != 10 {
		t.Errorf("untrained tenant gallery = %+v, want empty", g)
	}
}

func TestCacheCorruptPropagates(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "tenant_4.gallery"), []byte("junk-junk-junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := NewCache(store)
	if _, err := cache.Get(context.Background(), 4); !errors.Is(err, ErrCorruptGallery) {
		t.Errorf("Get corrupt = %v, want ErrCorruptGallery", err)
	}
	if cache.Cached() != 0 {
		t.Error("corrupt gallery must not be cached")
	}
}

func TestCacheReplaceAndInvalidate(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	cache := NewCache(store)
	ctx := context.Background()

	if _, err := cache.Get(ctx, 1); err != nil {
		t.Fatal(err)
	}

	fresh := testGallery(1)
	cache.Replace(fresh)

	g, err := cache.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g != fresh {
		t.Error("Get after Replace should return the swapped-in snapshot")
	}

	// Invalidate, then persist a different gallery and check it is reloaded.
	if err := store.Save(testGallery(1)); err != nil {
		t.Fatal(err)
	}
	cache.Invalidate(1)

	g, err = cache.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if g == fresh {
		t.Error("Get after Invalidate should reload from the store")
	}
	if g.Version != 42 {
		t.Errorf("reloaded gallery version = %d, want 42", g.Version)
	}
}

func TestCacheSingleLoadUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	if err := store.Save(testGallery(2)); err != nil {
		t.Fatal(err)
	}

	cache := NewCache(store)
	ctx := context.Background()

	const goroutines = 32
	var wg sync.WaitGroup
	results := make([]*Gallery, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(ctx, 2)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
	}
	// Every goroutine must observe the same snapshot pointer: the load was
	// shared, not duplicated.
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Get calls returned different snapshots")
		}
	}
	if cache.Cached() != 1 {
		t.Errorf("Cached = %d, want 1", cache.Cached())
	}
}

func TestGalleryIdentityIDsSorted(t *testing.T) {
	g := &Gallery{Prototypes: map[int64]Prototype{
		30: {}, 10: {}, 20: {},
	}}
	ids := g.IdentityIDs()
	want := []int64{10, 20, 30}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IdentityIDs = %v, want %v", ids, want)
		}
	}
}

// slowLoader blocks Load until released so tests can interleave a Replace
// with an in-flight first-access load.
type slowLoader struct {
	gallery *Gallery
	started chan struct{}
	release chan struct{}
}

func (l *slowLoader) Load(tenantID int64) (*Gallery, error) {
	close(l.started)
	<-l.release
	return l.gallery, nil
}

func TestCacheSlowLoadDoesNotClobberReplace(t *testing.T) {
	stale := testGallery(7)
	stale.Version = 1
	loader := &slowLoader{
		gallery: stale,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := &Cache{store: loader, galleries: make(map[int64]*Gallery)}
	ctx := context.Background()

	got := make(chan *Gallery, 1)
	go func() {
		g, err := cache.Get(ctx, 7)
		if err != nil {
			t.Error(err)
		}
		got <- g
	}()

	// The load is reading the pre-train blob when the trainer swaps in the
	// fresh gallery. The swap must survive the load finishing afterwards.
	<-loader.started
	fresh := testGallery(7)
	fresh.Version = 2
	cache.Replace(fresh)
	close(loader.release)

	if g := <-got; g != fresh {
		t.Errorf("in-flight Get returned version %d, want the replaced gallery", g.Version)
	}
	g, err := cache.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if g != fresh {
		t.Errorf("Get after slow load returned version %d, want the replaced gallery", g.Version)
	}
}
