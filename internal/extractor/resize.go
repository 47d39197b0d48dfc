package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DownscaleFrame shrinks a camera frame by the given factor before it is
// sent to the detection server. Detection on a half-size frame is several
// times faster and bounding boxes are scaled back up by the caller using
// the same factor. A factor >= 1 returns the input unchanged.
func DownscaleFrame(data []byte, factor float64) ([]byte, error) {
	if factor >= 1 || factor <= 0 {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	newWidth := int(float64(bounds.Dx()) * factor)
	newHeight := int(float64(bounds.Dy()) * factor)
	if newWidth < 1 || newHeight < 1 {
		return data, nil
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized frame: %w", err)
	}
	return buf.Bytes(), nil
}

// ScaleBBox maps a bounding box detected on a downscaled frame back to the
// original frame's coordinates.
func ScaleBBox(bbox []float64, factor float64) []float64 {
	if factor >= 1 || factor <= 0 || len(bbox) != 4 {
		return bbox
	}
	scaled := make([]float64, 4)
	for i, v := range bbox {
		scaled[i] = v / factor
	}
	return scaled
}
