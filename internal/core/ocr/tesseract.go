package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core/command"
)

// TesseractBinary is the CLI the default engine shells out to.
const TesseractBinary = "tesseract"

// Tesseract runs the tesseract CLI on a scoped temp file.
type Tesseract struct {
	runner command.Runner
	langs  []string
}

var _ Engine = (*Tesseract)(nil)

func NewTesseract(runner command.Runner, langs []string) *Tesseract {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Tesseract{runner: runner, langs: langs}
}

func (t *Tesseract) Name() string { return "tesseract-cli" }

func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	var text string
	err := command.WithTempDir("coursemate-ocr-*", func(dir string) error {
		in := filepath.Join(dir, "page.png")
		if err := os.WriteFile(in, png, 0o600); err != nil {
			return fmt.Errorf("write ocr input: %w", err)
		}
		out, _, err := t.runner.Run(ctx, TesseractBinary,
			in, "stdout",
			"-l", strings.Join(t.langs, "+"),
			"--oem", "3",
			"--psm", "3",
		)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(string(out))
		return nil
	})
	return text, err
}
