package gallery

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store persists one serialized gallery blob per tenant on disk.
type Store struct {
	dir string
}

// NewStore creates a gallery store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("gallery directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating gallery directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(tenantID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("tenant_%d.gallery", tenantID))
}

// Save writes the tenant's gallery as a full replacement. The blob is
// written to a temp file and renamed into place so a crash mid-write can
// never leave a half-written gallery behind.
func (s *Store) Save(g *Gallery) error {
	data, err := encodeGallery(g)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf("tenant_%d_*.tmp", g.TenantID))
	if err != nil {
		return fmt.Errorf("creating temp gallery file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing gallery blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing gallery blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing gallery blob: %w", err)
	}

	if err := os.Rename(tmpName, s.path(g.TenantID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing gallery blob: %w", err)
	}
	return nil
}

// Load reads the tenant's last saved gallery. A missing file returns
// (nil, nil): "never trained" is not an error. A blob that exists but
// cannot be decoded returns ErrCorruptGallery.
func (s *Store) Load(tenantID int64) (*Gallery, error) {
	data, err := os.ReadFile(s.path(tenantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading gallery blob: %w", err)
	}
	return decodeGallery(data)
}

// Delete removes the tenant's persisted gallery, if any.
func (s *Store) Delete(tenantID int64) error {
	err := os.Remove(s.path(tenantID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting gallery blob: %w", err)
	}
	return nil
}
