package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/core"
)

func TestRegistry_DispatchIsExhaustive(t *testing.T) {
	reg := NewRegistry(Tools{
		PDF:         &fakePDF{},
		OCR:         &fakeOCR{},
		Transcriber: &fakeTranscriber{},
		Media:       true,
		Runner:      mediaRunner(true, 1, nil),
	}, Options{}, nil)

	for _, k := range core.Kinds {
		ex, ok := reg.For(k)
		require.True(t, ok, k.String())
		assert.Equal(t, k, ex.Kind())
	}
	_, ok := reg.For(core.KindUnknown)
	assert.False(t, ok)
}

func TestRegistry_MissingCapabilitiesAreTyped(t *testing.T) {
	reg := NewRegistry(Tools{}, Options{}, nil)
	ctx := context.Background()

	img, ok := reg.For(core.KindImage)
	require.True(t, ok)
	_, err := img.Extract(ctx, core.RawDocument{Data: []byte{0x89, 'P', 'N', 'G'}})
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)
	assert.ErrorContains(t, err, "ocr engine")

	av, _ := reg.For(core.KindAudioVisual)
	_, err = av.Extract(ctx, core.RawDocument{})
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)
	assert.ErrorContains(t, err, "ffmpeg")
	assert.ErrorContains(t, err, "transcription service")

	doc, _ := reg.For(core.KindDocument)
	_, err = doc.Extract(ctx, core.RawDocument{Data: pdfBytes})
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	// slides need nothing external
	slides, _ := reg.For(core.KindSlides)
	_, err = slides.Extract(ctx, core.RawDocument{Data: []byte("not a zip")})
	assert.NotErrorIs(t, err, core.ErrCapabilityUnavailable)
}

func TestTools_Capabilities(t *testing.T) {
	caps := Tools{OCR: &fakeOCR{}, Media: true}.Capabilities()
	assert.Equal(t, map[string]bool{"pdf": false, "ocr": true, "media": true, "transcription": false}, caps)
}
