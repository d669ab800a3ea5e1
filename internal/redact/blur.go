package redact

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/smartblur/smartblur/internal/ocr"
)

// Region returns a copy of img with a Gaussian blur of the given sigma
// applied inside the axis-aligned bounds of box. The box is clamped to the
// image; a box that is empty after clamping leaves the copy untouched. The
// input image is never mutated.
func Region(img image.Image, box ocr.Quad, sigma float64) image.Image {
	rect := box.Rect().Intersect(img.Bounds())
	if rect.Empty() || sigma <= 0 {
		return imaging.Clone(img)
	}

	crop := imaging.Crop(img, rect)
	blurred := imaging.Blur(crop, sigma)

	// Paste clones the background before drawing onto it.
	return imaging.Paste(img, blurred, rect.Min)
}

// Apply blurs every region whose index is in blurred and returns the
// composite. Indices outside the region slice are ignored. Where two boxes
// overlap, the higher index wins inside the overlap; blurs over disjoint
// boxes compose in any order.
func Apply(img image.Image, regions []ocr.TextRegion, blurred map[int]struct{}, sigma float64) image.Image {
	out := img
	for i, region := range regions {
		if _, ok := blurred[i]; !ok {
			continue
		}
		out = Region(out, region.Box, sigma)
	}

	if out == img {
		return imaging.Clone(img)
	}
	return out
}
