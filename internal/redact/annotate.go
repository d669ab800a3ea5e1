package redact

import (
	"image"
	"image/color"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"github.com/smartblur/smartblur/internal/classify"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	outlineWidth = 3
	circleRadius = 20
)

var (
	colorBlurred   = color.RGBA{R: 255, A: 255}                 // region is blurred
	colorSensitive = color.RGBA{R: 255, G: 165, A: 255}         // sensitive, not blurred
	colorSafe      = color.RGBA{G: 128, A: 255}                 // nothing detected
	colorLabel     = color.RGBA{R: 255, G: 255, B: 255, A: 255} // index numbers
)

// Annotator renders the overlay view: per-region polygon outlines, index
// badges and status labels colored by blur/classification state.
type Annotator struct {
	classifier *classify.Classifier
	face       font.Face
	smallFace  font.Face
	logger     *logger.Logger
}

// NewAnnotator creates an annotator. fontPath may name a TTF file; when it
// is empty or unreadable the annotator falls back to a built-in bitmap font
// rather than failing.
func NewAnnotator(classifier *classify.Classifier, fontPath string, fontSize float64, log *logger.Logger) *Annotator {
	a := &Annotator{
		classifier: classifier,
		face:       basicfont.Face7x13,
		smallFace:  basicfont.Face7x13,
		logger:     log,
	}

	if fontPath == "" {
		return a
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		log.Warn("Preferred font unavailable, using built-in font",
			zap.String("font_path", fontPath),
			zap.Error(err),
		)
		return a
	}

	ttf, err := truetype.Parse(data)
	if err != nil {
		log.Warn("Preferred font unparseable, using built-in font",
			zap.String("font_path", fontPath),
			zap.Error(err),
		)
		return a
	}

	a.face = truetype.NewFace(ttf, &truetype.Options{Size: fontSize})
	a.smallFace = truetype.NewFace(ttf, &truetype.Options{Size: fontSize * 2 / 3})
	return a
}

// Annotate draws every region onto a copy of img, in index order. A region
// in blurred is labeled BLURRED; otherwise its text is classified and the
// label is the category name or Safe. The input image is never mutated.
func (a *Annotator) Annotate(img image.Image, regions []ocr.TextRegion, blurred map[int]struct{}, patterns []*classify.CustomPattern) image.Image {
	out := imaging.Clone(img)

	for i, region := range regions {
		var col color.RGBA
		var status string

		if _, ok := blurred[i]; ok {
			col = colorBlurred
			status = "BLURRED"
		} else if result := a.classifier.Classify(region.Text, patterns); result.Sensitive {
			col = colorSensitive
			status = string(result.Category)
		} else {
			col = colorSafe
			status = "Safe"
		}

		drawPolygon(out, region.Box, col, outlineWidth)

		// Index badge sits on the polygon's first point.
		x := int(region.Box[0].X)
		y := int(region.Box[0].Y)
		fillCircle(out, x, y, circleRadius, col)
		strokeCircle(out, x, y, circleRadius, 2, colorLabel)
		a.drawTextCentered(out, x, y, strconv.Itoa(i+1), colorLabel, a.face)
		a.drawText(out, x+circleRadius+5, y-10, status, col, a.smallFace)
	}

	return out
}

func drawPolygon(dst *image.NRGBA, box ocr.Quad, col color.RGBA, width int) {
	for i := range box {
		p := box[i]
		q := box[(i+1)%len(box)]
		drawLine(dst, int(p.X), int(p.Y), int(q.X), int(q.Y), col, width)
	}
}

// drawLine draws a Bresenham line thickened to roughly width pixels
func drawLine(dst *image.NRGBA, x0, y0, x1, y1 int, col color.RGBA, width int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	half := width / 2
	for {
		for ox := -half; ox <= half; ox++ {
			for oy := -half; oy <= half; oy++ {
				setIfInside(dst, x0+ox, y0+oy, col)
			}
		}

		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func fillCircle(dst *image.NRGBA, cx, cy, r int, col color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				setIfInside(dst, cx+dx, cy+dy, col)
			}
		}
	}
}

func strokeCircle(dst *image.NRGBA, cx, cy, r, width int, col color.RGBA) {
	inner := (r - width) * (r - width)
	outer := r * r
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d := dx*dx + dy*dy
			if d <= outer && d >= inner {
				setIfInside(dst, cx+dx, cy+dy, col)
			}
		}
	}
}

func setIfInside(dst *image.NRGBA, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
		dst.SetNRGBA(x, y, color.NRGBA{R: col.R, G: col.G, B: col.B, A: col.A})
	}
}

// drawTextCentered centers text on (x, y)
func (a *Annotator) drawTextCentered(dst *image.NRGBA, x, y int, text string, col color.RGBA, face font.Face) {
	bounds, advance := font.BoundString(face, text)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x) - advance/2,
			Y: fixed.I(y) - (bounds.Min.Y+bounds.Max.Y)/2,
		},
	}
	d.DrawString(text)
}

func (a *Annotator) drawText(dst *image.NRGBA, x, y int, text string, col color.RGBA, face font.Face) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
