package extractors

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/coursemate/internal/core"
)

type inspectingOCR struct {
	text   string
	opaque bool
}

func (o *inspectingOCR) Name() string { return "inspect" }

func (o *inspectingOCR) Recognize(_ context.Context, data []byte) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if op, ok := img.(interface{ Opaque() bool }); ok {
		o.opaque = op.Opaque()
	}
	return o.text, nil
}

func translucentPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.NRGBA{A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImage_NormalisesBeforeOCR(t *testing.T) {
	engine := &inspectingOCR{text: "  Whiteboard: Dijkstra \n"}
	got, err := NewImageExtractor(engine).Extract(context.Background(), core.RawDocument{Data: translucentPNG(t)})
	require.NoError(t, err)
	assert.Equal(t, "Whiteboard: Dijkstra", got.Text)
	assert.Equal(t, core.KindImage, got.Kind)
	assert.True(t, engine.opaque)
}

func TestImage_NoTextIsFailure(t *testing.T) {
	_, err := NewImageExtractor(&inspectingOCR{text: " "}).Extract(context.Background(), core.RawDocument{Data: translucentPNG(t)})
	assert.ErrorIs(t, err, core.ErrNoText)
}

func TestImage_Undecodable(t *testing.T) {
	_, err := NewImageExtractor(&inspectingOCR{}).Extract(context.Background(), core.RawDocument{Data: []byte("GIF89a-broken")})
	assert.Error(t, err)
}
