package ocr

import "image"

// Point is one corner of a detected text polygon, in pixel coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the four-point bounding polygon of a text region, ordered
// clockwise from the top-left corner
type Quad [4]Point

// QuadFromRect builds a clockwise quad from an axis-aligned rectangle
func QuadFromRect(r image.Rectangle) Quad {
	return Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// Rect returns the axis-aligned bounding rectangle of the quad
func (q Quad) Rect() image.Rectangle {
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := q[0].X, q[0].Y

	for _, p := range q[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}

// TextRegion is one OCR-detected text instance. Regions are immutable once
// produced and are identified by their index in the per-image result slice.
type TextRegion struct {
	Box        Quad    `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Engine extracts text regions from an image
type Engine interface {
	ReadText(img image.Image) ([]TextRegion, error)
}
