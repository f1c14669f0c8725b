// Package detector classifies raw bytes into a core.FileKind.
//
// Signals are consulted cheapest first: the declared content type, then the
// filename extension, then the leading bytes of the payload. The first signal
// that matches wins.
package detector

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
)

type keyword struct {
	substr string
	kind   core.FileKind
}

// Order matters: the first keyword contained in the media type wins.
var contentTypeKeywords = []keyword{
	{"pdf", core.KindDocument},
	{"presentation", core.KindSlides},
	{"powerpoint", core.KindSlides},
	{"image", core.KindImage},
	{"video", core.KindAudioVisual},
	{"audio", core.KindAudioVisual},
	{"wordprocessingml", core.KindDocument},
	{"msword", core.KindDocument},
	{"opendocument.text", core.KindDocument},
	{"rtf", core.KindDocument},
}

var extensions = map[string]core.FileKind{
	".pdf":  core.KindDocument,
	".docx": core.KindDocument,
	".doc":  core.KindDocument,
	".odt":  core.KindDocument,
	".rtf":  core.KindDocument,
	".pptx": core.KindSlides,
	".pptm": core.KindSlides,
	".ppsx": core.KindSlides,
	".jpg":  core.KindImage,
	".jpeg": core.KindImage,
	".png":  core.KindImage,
	".gif":  core.KindImage,
	".bmp":  core.KindImage,
	".tif":  core.KindImage,
	".tiff": core.KindImage,
	".webp": core.KindImage,
	".mp4":  core.KindAudioVisual,
	".mov":  core.KindAudioVisual,
	".avi":  core.KindAudioVisual,
	".mkv":  core.KindAudioVisual,
	".webm": core.KindAudioVisual,
	".m4v":  core.KindAudioVisual,
	".mp3":  core.KindAudioVisual,
	".wav":  core.KindAudioVisual,
	".m4a":  core.KindAudioVisual,
	".ogg":  core.KindAudioVisual,
	".flac": core.KindAudioVisual,
}

// Classify never fails: no match is core.KindUnknown.
func Classify(data []byte, filename, contentType string) core.FileKind {
	if k := FromContentType(contentType); k != core.KindUnknown {
		return k
	}
	if k := FromFilename(filename); k != core.KindUnknown {
		return k
	}
	return FromMagic(data)
}

// FromContentType matches the media type (parameters ignored) against the
// keyword table.
func FromContentType(contentType string) core.FileKind {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return core.KindUnknown
	}
	for _, kw := range contentTypeKeywords {
		if strings.Contains(ct, kw.substr) {
			return kw.kind
		}
	}
	return core.KindUnknown
}

// FromFilename looks up the lower-cased extension.
func FromFilename(filename string) core.FileKind {
	if filename == "" {
		return core.KindUnknown
	}
	return extensions[strings.ToLower(filepath.Ext(filename))]
}

var (
	sigPDF   = []byte("%PDF-")
	sigZIP   = []byte("PK\x03\x04")
	sigJPEG  = []byte{0xFF, 0xD8, 0xFF}
	sigPNG   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	sigGIF87 = []byte("GIF87a")
	sigGIF89 = []byte("GIF89a")
	sigBMP   = []byte("BM")
	sigEBML  = []byte{0x1A, 0x45, 0xDF, 0xA3}
	sigRIFF  = []byte("RIFF")
	sigFLV   = []byte("FLV\x01")
	sigMPEGP = []byte{0x00, 0x00, 0x01, 0xBA}
	sigID3   = []byte("ID3")
	sigOgg   = []byte("OggS")
	sigFLAC  = []byte("fLaC")
	sigTIFLE = []byte("II*\x00")
	sigTIFBE = []byte("MM\x00*")
)

// imageBrands are ISO-BMFF major brands of still images (HEIF and AVIF).
var imageBrands = map[string]bool{
	"heic": true, "heix": true, "heim": true, "heis": true,
	"hevc": true, "hevx": true, "mif1": true, "msf1": true,
	"avif": true, "avis": true,
}

// FromMagic sniffs the payload. ZIP containers only count as slides when the
// presentation manifest is present.
func FromMagic(data []byte) core.FileKind {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		return core.KindDocument
	case bytes.HasPrefix(data, sigZIP):
		return zipKind(data)
	case bytes.HasPrefix(data, sigJPEG),
		bytes.HasPrefix(data, sigPNG),
		bytes.HasPrefix(data, sigGIF87),
		bytes.HasPrefix(data, sigGIF89),
		bytes.HasPrefix(data, sigTIFLE),
		bytes.HasPrefix(data, sigTIFBE),
		isRIFF(data, "WEBP"),
		isBMP(data):
		return core.KindImage
	case isISOBMFF(data):
		if imageBrands[string(data[8:12])] {
			return core.KindImage
		}
		return core.KindAudioVisual
	case bytes.HasPrefix(data, sigEBML),
		bytes.HasPrefix(data, sigEBML),
		isRIFF(data, "AVI "),
		isRIFF(data, "WAVE"),
		bytes.HasPrefix(data, sigFLV),
		bytes.HasPrefix(data, sigMPEGP),
		isMPEGTS(data),
		bytes.HasPrefix(data, sigID3),
		bytes.HasPrefix(data, sigOgg),
		bytes.HasPrefix(data, sigFLAC):
		return core.KindAudioVisual
	}
	return core.KindUnknown
}

// IsPDF reports whether data starts with the PDF signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, sigPDF)
}

// IsDocx reports whether data is a ZIP holding a WordprocessingML body.
func IsDocx(data []byte) bool {
	return bytes.HasPrefix(data, sigZIP) && zipKind(data) == core.KindDocument
}

func zipKind(data []byte) core.FileKind {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return core.KindUnknown
	}
	kind := core.KindUnknown
	for _, f := range zr.File {
		switch f.Name {
		case "ppt/presentation.xml":
			return core.KindSlides
		case "word/document.xml":
			kind = core.KindDocument
		}
	}
	return kind
}

// isBMP checks the "BM" tag plus a plausible DIB header size so plain text
// starting with "BM" is not taken for a bitmap.
func isBMP(data []byte) bool {
	if len(data) < 18 || !bytes.HasPrefix(data, sigBMP) {
		return false
	}
	switch data[14] {
	case 12, 40, 52, 56, 64, 108, 124:
		return data[15] == 0 && data[16] == 0 && data[17] == 0
	}
	return false
}

func isISOBMFF(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp"))
}

func isRIFF(data []byte, form string) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, sigRIFF) && string(data[8:12]) == form
}

// isMPEGTS requires the 0x47 sync byte at three consecutive 188-byte packets.
func isMPEGTS(data []byte) bool {
	const packet = 188
	if len(data) < packet*3 {
		return false
	}
	return data[0] == 0x47 && data[packet] == 0x47 && data[packet*2] == 0x47
}
