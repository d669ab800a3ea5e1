package redact

import (
	"image"
	"image/color"
	"testing"

	"github.com/smartblur/smartblur/internal/ocr"
)

// checkerboard gives the blur something to visibly smooth out
func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/2+y/2)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	return img
}

func samePixel(a, b image.Image, x, y int) bool {
	ar, ag, ab, aa := a.At(x, y).RGBA()
	br, bg, bb, ba := b.At(x, y).RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func TestRegionBlursOnlyInsideBox(t *testing.T) {
	img := checkerboard(60, 60)
	box := ocr.QuadFromRect(image.Rect(10, 10, 30, 30))

	out := Region(img, box, 5)

	changed := false
	for y := 12; y < 28; y++ {
		for x := 12; x < 28; x++ {
			if !samePixel(img, out, x, y) {
				changed = true
			}
		}
	}
	if !changed {
		t.Error("no pixel inside the box changed")
	}

	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			inside := x >= 10 && x < 30 && y >= 10 && y < 30
			if !inside && !samePixel(img, out, x, y) {
				t.Fatalf("pixel outside the box changed at (%d, %d)", x, y)
			}
		}
	}
}

func TestRegionDoesNotMutateInput(t *testing.T) {
	img := checkerboard(40, 40)
	want := checkerboard(40, 40)

	Region(img, ocr.QuadFromRect(image.Rect(5, 5, 35, 35)), 10)

	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if !samePixel(img, want, x, y) {
				t.Fatalf("input image mutated at (%d, %d)", x, y)
			}
		}
	}
}

func TestRegionDegenerateBox(t *testing.T) {
	img := checkerboard(40, 40)

	// Zero-area box and a box entirely off-image must both be no-ops.
	for _, box := range []ocr.Quad{
		ocr.QuadFromRect(image.Rect(10, 10, 10, 10)),
		ocr.QuadFromRect(image.Rect(100, 100, 120, 120)),
	} {
		out := Region(img, box, 10)
		for y := 0; y < 40; y++ {
			for x := 0; x < 40; x++ {
				if !samePixel(img, out, x, y) {
					t.Fatalf("degenerate box %v changed pixel (%d, %d)", box, x, y)
				}
			}
		}
	}
}

func TestRegionClampsToImageBounds(t *testing.T) {
	img := checkerboard(40, 40)
	box := ocr.QuadFromRect(image.Rect(-20, -20, 20, 20))

	out := Region(img, box, 5)

	// Pixels beyond the clamped rectangle stay intact.
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			inside := x < 20 && y < 20
			if !inside && !samePixel(img, out, x, y) {
				t.Fatalf("pixel outside clamped box changed at (%d, %d)", x, y)
			}
		}
	}
}

func TestApplyComposesDisjointBoxesInAnyOrder(t *testing.T) {
	img := checkerboard(60, 60)
	a := ocr.QuadFromRect(image.Rect(2, 2, 14, 14))
	b := ocr.QuadFromRect(image.Rect(30, 30, 50, 50))

	ab := Region(Region(img, a, 8), b, 8)
	ba := Region(Region(img, b, 8), a, 8)

	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			if !samePixel(ab, ba, x, y) {
				t.Fatalf("order-dependent result for disjoint boxes at (%d, %d)", x, y)
			}
		}
	}
}

func TestApplySkipsUnselectedAndOutOfRangeIndices(t *testing.T) {
	img := checkerboard(60, 60)
	regions := []ocr.TextRegion{
		{Box: ocr.QuadFromRect(image.Rect(5, 5, 20, 20)), Text: "one"},
		{Box: ocr.QuadFromRect(image.Rect(30, 30, 50, 50)), Text: "two"},
	}

	out := Apply(img, regions, map[int]struct{}{1: {}, 7: {}}, 8)

	if samePixel(img, out, 40, 40) {
		t.Error("selected region was not blurred")
	}
	for y := 5; y < 20; y++ {
		for x := 5; x < 20; x++ {
			if !samePixel(img, out, x, y) {
				t.Fatalf("unselected region changed at (%d, %d)", x, y)
			}
		}
	}
}
