package extractors

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core/command"
)

// PopplerTools are the binaries the PDF path needs.
var PopplerTools = []string{"pdfinfo", "pdftotext", "pdftoppm"}

// PDFTool reads a PDF on disk page by page. Pages are 1-based.
type PDFTool interface {
	PageCount(ctx context.Context, path string) (int, error)
	PageText(ctx context.Context, path string, page int) (string, error)
	// RenderPage rasterises one page at dpi into dir and returns PNG bytes.
	RenderPage(ctx context.Context, path string, page, dpi int, dir string) ([]byte, error)
}

// Poppler implements PDFTool with poppler-utils.
type Poppler struct {
	runner command.Runner
}

var _ PDFTool = (*Poppler)(nil)

func NewPoppler(runner command.Runner) *Poppler {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	return &Poppler{runner: runner}
}

func (p *Poppler) PageCount(ctx context.Context, path string) (int, error) {
	out, _, err := p.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, err
	}
	return parsePageCount(out)
}

func (p *Poppler) PageText(ctx context.Context, path string, page int) (string, error) {
	n := strconv.Itoa(page)
	out, _, err := p.runner.Run(ctx, "pdftotext",
		"-f", n, "-l", n,
		"-enc", "UTF-8", "-nopgbrk",
		path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *Poppler) RenderPage(ctx context.Context, path string, page, dpi int, dir string) ([]byte, error) {
	n := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page-"+n)
	if _, _, err := p.runner.Run(ctx, "pdftoppm",
		"-f", n, "-l", n,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		path, prefix); err != nil {
		return nil, err
	}
	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return img, nil
}

func parsePageCount(pdfinfo []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(pdfinfo))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count %q: %w", line, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo: no page count in output")
}
