// Package ocr recognises text in raster images.
package ocr

import (
	"context"
	"strings"
)

// Engine recognises text in a PNG image. Implementations must be safe for
// concurrent use; per-page OCR runs in parallel.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
	Name() string
}

// Languages parses a tesseract language list ("eng+hin" or "eng,hin").
func Languages(s string) []string {
	s = strings.ReplaceAll(s, ",", "+")
	var out []string
	for _, l := range strings.Split(s, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return []string{"eng"}
	}
	return out
}
