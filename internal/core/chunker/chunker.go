// Package chunker splits extracted text into fixed-width overlapping windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/coursemate/internal/core"
)

// DefaultWidth is the default number of characters per chunk.
const DefaultWidth = 1000

// DefaultOverlap is the default number of characters shared by neighbouring chunks.
const DefaultOverlap = 200

// ErrInvalidWindow is returned when width <= overlap or overlap < 0.
var ErrInvalidWindow = errors.New("chunk width must be greater than overlap and overlap must not be negative")

// Chunker holds a validated window configuration.
type Chunker struct {
	width   int
	overlap int
}

// New validates the window once so callers can fail at startup.
func New(width, overlap int) (*Chunker, error) {
	if err := validate(width, overlap); err != nil {
		return nil, err
	}
	return &Chunker{width: width, overlap: overlap}, nil
}

// Chunk splits text with the configured window.
func (c *Chunker) Chunk(text string) []core.TextChunk {
	chunks, _ := Chunk(text, c.width, c.overlap)
	return chunks
}

// Width returns the configured window width.
func (c *Chunker) Width() int { return c.width }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk slides a window of width characters over text, advancing by
// width-overlap each step. Characters are runes, so multi-byte text is never
// split inside a code point. The last window ends at the end of text.
// Whitespace-only input yields no chunks.
func Chunk(text string, width, overlap int) ([]core.TextChunk, error) {
	if err := validate(width, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := width - overlap

	chunks := make([]core.TextChunk, 0, n/step+1)
	for start := 0; ; start += step {
		end := start + width
		if end > n {
			end = n
		}
		chunks = append(chunks, core.TextChunk{Index: len(chunks), Text: string(runes[start:end])})
		if end == n {
			break
		}
	}
	return chunks, nil
}

// Len returns the chunk length in characters.
func Len(c core.TextChunk) int {
	return utf8.RuneCountInString(c.Text)
}

func validate(width, overlap int) error {
	if overlap < 0 || width <= overlap {
		return fmt.Errorf("%w (width=%d, overlap=%d)", ErrInvalidWindow, width, overlap)
	}
	return nil
}
