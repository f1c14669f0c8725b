package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
)

const (
	nsDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	relTypeSlide    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"

	// CellSeparator joins the cells of one table row.
	CellSeparator = " | "
)

var slideFileRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// SlidesExtractor reads PPTX decks: every text frame on every slide plus
// table cells, in presentation order.
type SlidesExtractor struct{}

var _ core.Extractor = (*SlidesExtractor)(nil)

func NewSlidesExtractor() *SlidesExtractor { return &SlidesExtractor{} }

func (e *SlidesExtractor) Kind() core.FileKind { return core.KindSlides }

func (e *SlidesExtractor) Extract(ctx context.Context, doc core.RawDocument) (core.ExtractedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("open pptx container: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	order, err := slideOrder(files)
	if err != nil {
		return core.ExtractedText{}, err
	}
	if len(order) == 0 {
		return core.ExtractedText{}, fmt.Errorf("%w: deck has no slides", core.ErrNoText)
	}

	slides := make([]string, len(order))
	for i, name := range order {
		if err := ctx.Err(); err != nil {
			return core.ExtractedText{}, err
		}
		f, ok := files[name]
		if !ok {
			continue
		}
		text, err := readSlide(f)
		if err != nil {
			return core.ExtractedText{}, fmt.Errorf("slide %d: %w", i+1, err)
		}
		slides[i] = text
	}

	text, ok := joinSegments("Slide", slides)
	if !ok {
		return core.ExtractedText{}, fmt.Errorf("%w: none of %d slides has text", core.ErrNoText, len(slides))
	}
	return core.ExtractedText{Kind: core.KindSlides, Text: text, Segments: len(slides)}, nil
}

type presentationXML struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// slideOrder resolves the deck order from the presentation part. Decks
// without a usable sldIdLst fall back to slideN.xml numbering.
func slideOrder(files map[string]*zip.File) ([]string, error) {
	pres, okPres := files["ppt/presentation.xml"]
	rels, okRels := files["ppt/_rels/presentation.xml.rels"]
	if okPres && okRels {
		var p presentationXML
		var r relationshipsXML
		if err := decodeXML(pres, &p); err != nil {
			return nil, fmt.Errorf("presentation.xml: %w", err)
		}
		if err := decodeXML(rels, &r); err != nil {
			return nil, fmt.Errorf("presentation.xml.rels: %w", err)
		}
		targets := make(map[string]string, len(r.Relationships))
		for _, rel := range r.Relationships {
			if rel.Type == relTypeSlide {
				targets[rel.ID] = resolveTarget(rel.Target)
			}
		}
		var order []string
		for _, id := range p.SlideIDs {
			if t, ok := targets[id.RID]; ok {
				order = append(order, t)
			}
		}
		if len(order) > 0 {
			return order, nil
		}
	}
	return numberedSlides(files), nil
}

func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join("ppt", target)
}

func numberedSlides(files map[string]*zip.File) []string {
	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range files {
		m := slideFileRE.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{n, name})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func readSlide(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return slideText(rc)
}

// slideText walks DrawingML paragraphs. Paragraphs outside tables become
// lines; inside a table each cell collects its paragraphs and each row
// becomes one line of cells joined by CellSeparator.
func slideText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines      []string
		para       strings.Builder
		inText     bool
		tableDepth int
		cellParas  []string
		row        []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse slide xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsDrawingML {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				para.Reset()
			case "br":
				para.WriteByte('\n')
			case "tbl":
				tableDepth++
			case "tr":
				row = row[:0]
			case "tc":
				cellParas = cellParas[:0]
			}
		case xml.EndElement:
			if t.Name.Space != nsDrawingML {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				s := strings.TrimSpace(para.String())
				if s == "" {
					continue
				}
				if tableDepth > 0 {
					cellParas = append(cellParas, s)
				} else {
					lines = append(lines, s)
				}
			case "tc":
				row = append(row, strings.Join(cellParas, " "))
			case "tr":
				if strings.TrimSpace(strings.Join(row, "")) != "" {
					lines = append(lines, strings.Join(row, CellSeparator))
				}
			case "tbl":
				tableDepth--
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
