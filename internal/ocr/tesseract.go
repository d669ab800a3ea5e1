package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/smartblur/smartblur/internal/logger"
	"go.uber.org/zap"
)

// Tesseract runs text recognition through a local tesseract installation.
// Each call uses a fresh client; tesseract clients are not safe for reuse
// across images.
type Tesseract struct {
	languages []string
	logger    *logger.Logger
}

// NewTesseract creates an engine configured for the given languages
func NewTesseract(languages []string, log *logger.Logger) *Tesseract {
	return &Tesseract{
		languages: languages,
		logger:    log,
	}
}

// ReadText recognizes text in img and returns one region per text line.
// An image with no recognizable text yields an empty slice, not an error.
func (t *Tesseract) ReadText(img image.Image) ([]TextRegion, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages %v: %w", t.languages, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to load image into tesseract: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to read text regions: %w", err)
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}

		regions = append(regions, TextRegion{
			Box:        QuadFromRect(box.Box),
			Text:       text,
			Confidence: box.Confidence / 100.0,
		})
	}

	t.logger.Debug("OCR completed",
		zap.Int("regions", len(regions)),
		zap.Strings("languages", t.languages),
	)

	return regions, nil
}
