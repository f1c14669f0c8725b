package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// RawDocument is the immutable payload produced by a Fetcher.
type RawDocument struct {
	Ref         string
	Data        []byte
	Filename    string
	ContentType string
	// SourceID is the external reference id when the fetcher knows one.
	SourceID string
}

// SourceKey identifies the document for stable id derivation: the external
// id when known, a content hash otherwise.
func (d RawDocument) SourceKey() string {
	if d.SourceID != "" {
		return d.SourceID
	}
	sum := sha256.Sum256(d.Data)
	return "sha256_" + hex.EncodeToString(sum[:16])
}

// ExtractedText represents the result of text extraction.
// Text is never empty or all-whitespace when returned without error.
type ExtractedText struct {
	Kind     FileKind
	Text     string
	Segments int
}

// TextChunk is one window of an ExtractedText.
type TextChunk struct {
	Index int
	Text  string
}

// Extractor converts the raw bytes of one FileKind into plain text.
type Extractor interface {
	Kind() FileKind
	Extract(ctx context.Context, doc RawDocument) (ExtractedText, error)
}

// Fetcher resolves an external reference to raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (RawDocument, error)
}
