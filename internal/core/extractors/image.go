package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/ocr"
)

// ImageExtractor OCRs a whole image after colour normalisation.
type ImageExtractor struct {
	ocr ocr.Engine
}

var _ core.Extractor = (*ImageExtractor)(nil)

func NewImageExtractor(engine ocr.Engine) *ImageExtractor {
	return &ImageExtractor{ocr: engine}
}

func (e *ImageExtractor) Kind() core.FileKind { return core.KindImage }

func (e *ImageExtractor) Extract(ctx context.Context, doc core.RawDocument) (core.ExtractedText, error) {
	img, format, err := ocr.PreparePNG(doc.Data)
	if err != nil {
		return core.ExtractedText{}, err
	}
	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("ocr %s image: %w", format, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return core.ExtractedText{}, fmt.Errorf("%w: no text detected in %s image", core.ErrNoText, format)
	}
	return core.ExtractedText{Kind: core.KindImage, Text: text, Segments: 1}, nil
}
