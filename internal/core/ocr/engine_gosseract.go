//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/markdave123-py/coursemate/internal/core/command"
)

// Gosseract links libtesseract. A fresh client per call keeps it safe for
// parallel pages; gosseract clients are not goroutine safe.
type Gosseract struct {
	langs []string
}

var _ Engine = (*Gosseract)(nil)

func NewGosseract(langs []string) *Gosseract {
	return &Gosseract{langs: langs}
}

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(g.langs...); err != nil {
		return "", fmt.Errorf("gosseract language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("gosseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// NewDefault returns the linked engine; it is available whenever the binary
// was built with the ocr tag.
func NewDefault(_ command.Runner, langs []string) (Engine, bool) {
	return NewGosseract(langs), true
}
