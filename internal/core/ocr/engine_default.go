//go:build !ocr

package ocr

import "github.com/markdave123-py/coursemate/internal/core/command"

// NewDefault returns the tesseract CLI engine, or false when the binary is
// not installed.
func NewDefault(runner command.Runner, langs []string) (Engine, bool) {
	if !command.Available(TesseractBinary) {
		return nil, false
	}
	return NewTesseract(runner, langs), true
}
