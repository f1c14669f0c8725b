package extractors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/command"
	"github.com/markdave123-py/coursemate/internal/core/detector"
	"github.com/markdave123-py/coursemate/internal/core/ocr"
	"github.com/markdave123-py/coursemate/internal/logger"
)

const (
	pdfMime   = "application/pdf"
	docxMime  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	octetMime = "application/octet-stream"
)

// ErrUnsupportedDocument means no converter type could be derived for a
// non-PDF document.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// ConvertFunc turns a non-PDF office document into text.
type ConvertFunc func(data []byte, mimeType string) (string, error)

// DocconvConvert is the ConvertFunc backed by sajari/docconv. docconv panics
// on some malformed archives; those come back as errors.
func DocconvConvert(data []byte, mimeType string) (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, err = "", fmt.Errorf("docconv %s: %v", mimeType, r)
		}
	}()
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// DocumentExtractor reads PDFs page by page with an OCR fallback and hands
// other office documents to docconv.
type DocumentExtractor struct {
	pdf     PDFTool
	ocr     ocr.Engine
	convert ConvertFunc
	dpi     int
	workers int
	log     *slog.Logger
}

var _ core.Extractor = (*DocumentExtractor)(nil)

// NewDocumentExtractor accepts a nil pdf tool or OCR engine; the matching
// paths then report core.ErrCapabilityUnavailable or skip the fallback.
func NewDocumentExtractor(pdf PDFTool, engine ocr.Engine, convert ConvertFunc, opts Options, log *slog.Logger) *DocumentExtractor {
	opts = opts.withDefaults()
	if convert == nil {
		convert = DocconvConvert
	}
	return &DocumentExtractor{
		pdf:     pdf,
		ocr:     engine,
		convert: convert,
		dpi:     72 * opts.OCRScale,
		workers: opts.PageWorkers,
		log:     logger.OrDiscard(log).With("component", "extractor", "kind", core.KindDocument.String()),
	}
}

func (e *DocumentExtractor) Kind() core.FileKind { return core.KindDocument }

func (e *DocumentExtractor) Extract(ctx context.Context, doc core.RawDocument) (core.ExtractedText, error) {
	mimeType := documentMime(doc)
	if mimeType == pdfMime {
		return e.extractPDF(ctx, doc)
	}
	return e.extractOffice(doc, mimeType)
}

func documentMime(doc core.RawDocument) string {
	if detector.IsPDF(doc.Data) {
		return pdfMime
	}
	if mt, _, err := mime.ParseMediaType(doc.ContentType); err == nil && mt != "" && mt != octetMime {
		return mt
	}
	if mt := docconv.MimeTypeByExtension(doc.Filename); mt != octetMime {
		return mt
	}
	if detector.IsDocx(doc.Data) {
		return docxMime
	}
	return ""
}

func (e *DocumentExtractor) extractPDF(ctx context.Context, doc core.RawDocument) (core.ExtractedText, error) {
	if e.pdf == nil {
		return core.ExtractedText{}, fmt.Errorf("pdf text layer: %w: %s", core.ErrCapabilityUnavailable, strings.Join(PopplerTools, ", "))
	}

	var pages []string
	err := command.WithTempDir("coursemate-pdf-*", func(dir string) error {
		path := filepath.Join(dir, "source.pdf")
		if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
			return fmt.Errorf("materialise pdf: %w", err)
		}
		n, err := e.pdf.PageCount(ctx, path)
		if err != nil {
			return fmt.Errorf("count pages: %w", err)
		}

		pages = make([]string, n)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i := range pages {
			page := i + 1
			g.Go(func() error {
				text, err := e.page(gctx, path, dir, page)
				pages[page-1] = text
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		return core.ExtractedText{}, err
	}

	text, ok := joinSegments("Page", pages)
	if !ok {
		return core.ExtractedText{}, fmt.Errorf("%w: none of %d pages yielded text", core.ErrNoText, len(pages))
	}
	return core.ExtractedText{Kind: core.KindDocument, Text: text, Segments: len(pages)}, nil
}

// page returns the text for one page. Failures are logged and absorbed so a
// single bad page never aborts the document; only cancellation propagates.
func (e *DocumentExtractor) page(ctx context.Context, path, dir string, page int) (string, error) {
	text, err := e.pdf.PageText(ctx, path, page)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.log.Warn("text layer failed", "page", page, "error", err)
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	if e.ocr == nil {
		return "", nil
	}

	img, err := e.pdf.RenderPage(ctx, path, page, e.dpi, dir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.log.Warn("render failed", "page", page, "error", err)
		return "", nil
	}
	text, err = e.ocr.Recognize(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.log.Warn("ocr failed", "page", page, "engine", e.ocr.Name(), "error", err)
		return "", nil
	}
	e.log.Debug("page recovered by ocr", "page", page, "chars", len(text))
	return strings.TrimSpace(text), nil
}

func (e *DocumentExtractor) extractOffice(doc core.RawDocument, mimeType string) (core.ExtractedText, error) {
	if mimeType == "" || mimeType == octetMime {
		return core.ExtractedText{}, fmt.Errorf("document %q: %w", doc.Filename, ErrUnsupportedDocument)
	}
	body, err := e.convert(doc.Data, mimeType)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("docconv %s: %w", mimeType, err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return core.ExtractedText{}, fmt.Errorf("%w: %s document is empty", core.ErrNoText, mimeType)
	}
	return core.ExtractedText{Kind: core.KindDocument, Text: body, Segments: 1}, nil
}

// joinSegments renders "--- <label> N ---" markers followed by each
// segment's text. ok is false when every segment is empty.
func joinSegments(label string, segments []string) (string, bool) {
	var b strings.Builder
	ok := false
	for i, s := range segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- %s %d ---", label, i+1)
		if s != "" {
			ok = true
			b.WriteByte('\n')
			b.WriteString(s)
		}
	}
	return b.String(), ok
}
