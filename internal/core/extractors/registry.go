package extractors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/command"
	"github.com/markdave123-py/coursemate/internal/core/ocr"
)

// Options tune the extractors.
type Options struct {
	PageWorkers    int
	OCRScale       int
	SegmentSeconds int
}

func (o Options) withDefaults() Options {
	if o.PageWorkers <= 0 {
		o.PageWorkers = 4
	}
	if o.OCRScale <= 0 {
		o.OCRScale = 2
	}
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = 600
	}
	return o
}

// Tools are the optional capabilities the extractors draw on. A nil field
// means the capability is absent in this process.
type Tools struct {
	Runner      command.Runner
	PDF         PDFTool
	OCR         ocr.Engine
	Transcriber core.Transcriber
	Media       bool
	Convert     ConvertFunc
}

// Probe looks for external binaries once, at process start. The OCR engine
// and transcriber are supplied by the caller since they come from config.
func Probe(runner command.Runner, engine ocr.Engine, tr core.Transcriber) Tools {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	t := Tools{Runner: runner, OCR: engine, Transcriber: tr}
	if command.Available(PopplerTools...) {
		t.PDF = NewPoppler(runner)
	}
	t.Media = command.Available(MediaTools...)
	return t
}

// Capabilities reports what is usable, for health output and startup logs.
func (t Tools) Capabilities() map[string]bool {
	return map[string]bool{
		"pdf":           t.PDF != nil,
		"ocr":           t.OCR != nil,
		"media":         t.Media,
		"transcription": t.Transcriber != nil,
	}
}

// Registry is the closed dispatch table from FileKind to extractor.
type Registry struct {
	document core.Extractor
	slides   core.Extractor
	image    core.Extractor
	av       core.Extractor
}

// NewRegistry wires one extractor per kind, substituting an unavailable
// extractor wherever a required capability is missing.
func NewRegistry(t Tools, opts Options, log *slog.Logger) *Registry {
	r := &Registry{
		document: NewDocumentExtractor(t.PDF, t.OCR, t.Convert, opts, log),
		slides:   NewSlidesExtractor(),
	}

	if t.OCR != nil {
		r.image = NewImageExtractor(t.OCR)
	} else {
		r.image = Unavailable(core.KindImage, "ocr engine")
	}

	var missing []string
	if !t.Media {
		missing = append(missing, MediaTools...)
	}
	if t.Transcriber == nil {
		missing = append(missing, "transcription service")
	}
	if len(missing) == 0 {
		r.av = NewAudioVisualExtractor(t.Runner, t.Transcriber, opts, log)
	} else {
		r.av = Unavailable(core.KindAudioVisual, missing...)
	}
	return r
}

// For returns the extractor for kind. KindUnknown has none.
func (r *Registry) For(kind core.FileKind) (core.Extractor, bool) {
	switch kind {
	case core.KindDocument:
		return r.document, true
	case core.KindSlides:
		return r.slides, true
	case core.KindImage:
		return r.image, true
	case core.KindAudioVisual:
		return r.av, true
	case core.KindUnknown:
		return nil, false
	}
	return nil, false
}

type unavailable struct {
	kind    core.FileKind
	missing []string
}

// Unavailable returns an extractor that always fails with
// core.ErrCapabilityUnavailable naming what is missing.
func Unavailable(kind core.FileKind, missing ...string) core.Extractor {
	return &unavailable{kind: kind, missing: missing}
}

func (u *unavailable) Kind() core.FileKind { return u.kind }

func (u *unavailable) Extract(context.Context, core.RawDocument) (core.ExtractedText, error) {
	return core.ExtractedText{}, fmt.Errorf("%s extractor: %w: missing %s", u.kind, core.ErrCapabilityUnavailable, strings.Join(u.missing, ", "))
}
