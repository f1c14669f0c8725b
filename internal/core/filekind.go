package core

// FileKind is the closed set of formats the pipeline knows how to extract.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindDocument
	KindSlides
	KindImage
	KindAudioVisual
)

// Kinds lists every extractable kind in dispatch order.
var Kinds = []FileKind{KindDocument, KindSlides, KindImage, KindAudioVisual}

func (k FileKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindSlides:
		return "slides"
	case KindImage:
		return "image"
	case KindAudioVisual:
		return "audiovisual"
	default:
		return "unknown"
	}
}

// ParseFileKind is the inverse of String. Unrecognised input maps to KindUnknown.
func ParseFileKind(s string) FileKind {
	for _, k := range Kinds {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}
