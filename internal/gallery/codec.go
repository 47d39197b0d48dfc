package gallery

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// Blob layout: 4-byte magic, 2-byte big-endian version, gob-encoded
// Gallery. The header makes blobs self-describing so a loader can reject
// foreign or truncated files instead of feeding garbage to gob.
var blobMagic = []byte("FAGL")

const blobVersion uint16 = 1

const headerLen = 6

// encodeGallery serializes a gallery into a versioned blob.
func encodeGallery(g *Gallery) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(blobMagic)
	if err := binary.Write(&buf, binary.BigEndian, blobVersion); err != nil {
		return nil, fmt.Errorf("writing blob header: %w", err)
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, fmt.Errorf("encoding gallery: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeGallery parses a versioned blob back into a gallery. Any structural
// problem (bad magic, unknown version, truncated or undecodable body) is
// reported as ErrCorruptGallery.
func decodeGallery(data []byte) (*Gallery, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrCorruptGallery, len(data))
	}
	if !bytes.Equal(data[:4], blobMagic) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptGallery, data[:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob version %d", ErrCorruptGallery, version)
	}

	var g Gallery
	if err := gob.NewDecoder(bytes.NewReader(data[headerLen:])).Decode(&g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptGallery, err)
	}
	if g.Prototypes == nil {
		g.Prototypes = map[int64]Prototype{}
	}
	return &g, nil
}
