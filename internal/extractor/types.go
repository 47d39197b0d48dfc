// Package extractor wraps the external face detection/embedding server
// behind a uniform contract. The server does the heavy lifting (detection
// model, embedding network); this package only speaks its HTTP API.
package extractor

// Face is a single detected face with its embedding vector.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixel coordinates
	DetScore  float64   `json:"det_score"`
}

// Area returns the bounding box area in square pixels, 0 for malformed boxes.
func (f *Face) Area() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	w := f.BBox[2] - f.BBox[0]
	h := f.BBox[3] - f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// LargestFace selects the face with the largest bounding box area.
// On an exact area tie the first-detected face wins, so enrollment stays
// deterministic for identical inputs. Returns nil for an empty slice.
func LargestFace(faces []Face) *Face {
	var best *Face
	var bestArea float64
	for i := range faces {
		area := faces[i].Area()
		if best == nil || area > bestArea {
			best = &faces[i]
			bestArea = area
		}
	}
	return best
}
