package redact

import (
	"image"
	"image/color"
	"testing"

	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
)

func newTestAnnotator() *Annotator {
	log := logger.NewNop()
	return NewAnnotator(classify.New(log), "", 24, log)
}

func TestAnnotateDoesNotMutateInput(t *testing.T) {
	a := newTestAnnotator()
	img := checkerboard(120, 80)
	want := checkerboard(120, 80)

	regions := []ocr.TextRegion{
		{Box: ocr.QuadFromRect(image.Rect(30, 30, 100, 60)), Text: "john@example.com"},
	}
	a.Annotate(img, regions, map[int]struct{}{}, nil)

	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			if !samePixel(img, want, x, y) {
				t.Fatalf("input image mutated at (%d, %d)", x, y)
			}
		}
	}
}

func TestAnnotateEmptyRegions(t *testing.T) {
	a := newTestAnnotator()
	img := checkerboard(40, 40)

	out := a.Annotate(img, nil, map[int]struct{}{}, nil)

	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if !samePixel(img, out, x, y) {
				t.Fatalf("empty region list changed pixel (%d, %d)", x, y)
			}
		}
	}
}

func TestAnnotateStatusColors(t *testing.T) {
	a := newTestAnnotator()

	// Top edge midpoint of the polygon, clear of the index badge.
	edgeAt := func(out image.Image) color.NRGBA {
		return out.(*image.NRGBA).NRGBAAt(65, 30)
	}
	box := ocr.QuadFromRect(image.Rect(30, 30, 100, 60))

	t.Run("Blurred", func(t *testing.T) {
		img := checkerboard(120, 80)
		regions := []ocr.TextRegion{{Box: box, Text: "john@example.com"}}

		out := a.Annotate(img, regions, map[int]struct{}{0: {}}, nil)
		if got := edgeAt(out); got.R != 255 || got.G != 0 {
			t.Errorf("blurred outline color = %+v, want red", got)
		}
	})

	t.Run("Sensitive", func(t *testing.T) {
		img := checkerboard(120, 80)
		regions := []ocr.TextRegion{{Box: box, Text: "john@example.com"}}

		out := a.Annotate(img, regions, map[int]struct{}{}, nil)
		if got := edgeAt(out); got.R != 255 || got.G != 165 {
			t.Errorf("sensitive outline color = %+v, want orange", got)
		}
	})

	t.Run("Safe", func(t *testing.T) {
		img := checkerboard(120, 80)
		regions := []ocr.TextRegion{{Box: box, Text: "hello world"}}

		out := a.Annotate(img, regions, map[int]struct{}{}, nil)
		if got := edgeAt(out); got.G != 128 || got.R != 0 {
			t.Errorf("safe outline color = %+v, want green", got)
		}
	})

	t.Run("CustomPatternColorsSensitive", func(t *testing.T) {
		img := checkerboard(120, 80)
		regions := []ocr.TextRegion{{Box: box, Text: "badge emp-ab12"}}
		p, err := classify.NewCustomPattern("Employee ID", `EMP-[A-Z]{2}\d{2}`)
		if err != nil {
			t.Fatalf("NewCustomPattern: %v", err)
		}

		out := a.Annotate(img, regions, map[int]struct{}{}, []*classify.CustomPattern{p})
		if got := edgeAt(out); got.R != 255 || got.G != 165 {
			t.Errorf("custom-matched outline color = %+v, want orange", got)
		}
	})
}

func TestAnnotatorFallsBackWithoutFont(t *testing.T) {
	log := logger.NewNop()
	a := NewAnnotator(classify.New(log), "/nonexistent/font.ttf", 24, log)

	img := checkerboard(120, 80)
	regions := []ocr.TextRegion{
		{Box: ocr.QuadFromRect(image.Rect(30, 30, 100, 60)), Text: "hello"},
	}

	// Must render with the built-in font rather than fail.
	out := a.Annotate(img, regions, map[int]struct{}{}, nil)
	if out == nil {
		t.Fatal("Annotate returned nil")
	}
}
