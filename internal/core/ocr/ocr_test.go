package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout   []byte
	err      error
	gotName  string
	gotArgs  []string
	inputLen int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName, f.gotArgs = name, args
	if len(args) > 0 {
		if b, err := os.ReadFile(args[0]); err == nil {
			f.inputLen = len(b)
		}
	}
	return f.stdout, nil, f.err
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"eng"}, Languages(""))
	assert.Equal(t, []string{"eng", "hin"}, Languages("eng+hin"))
	assert.Equal(t, []string{"eng", "mar"}, Languages(" eng , mar "))
}

func TestTesseract_Recognize(t *testing.T) {
	r := &fakeRunner{stdout: []byte("  Midterm is on March 5th.\n\n")}
	eng := NewTesseract(r, []string{"eng", "hin"})

	text, err := eng.Recognize(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "Midterm is on March 5th.", text)
	assert.Equal(t, TesseractBinary, r.gotName)
	assert.Equal(t, "stdout", r.gotArgs[1])
	assert.Contains(t, r.gotArgs, "eng+hin")
	assert.Equal(t, len("png-bytes"), r.inputLen)

	// the input file lives in a scoped dir that is gone afterwards
	_, statErr := os.Stat(r.gotArgs[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestTesseract_RunnerError(t *testing.T) {
	boom := errors.New("tesseract crashed")
	eng := NewTesseract(&fakeRunner{err: boom}, nil)
	_, err := eng.Recognize(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, boom)
}

func TestNormalizeRGB_FlattensAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 11))
	src.Set(10, 10, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	src.Set(11, 10, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	dst := NormalizeRGB(src)
	assert.Equal(t, image.Rect(0, 0, 2, 1), dst.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(1, 0))
	assert.True(t, dst.Opaque())
}

func TestPreparePNG_Grayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.SetGray(1, 1, color.Gray{Y: 80})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray))

	out, format, err := PreparePNG(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, a := img.At(1, 1).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestPreparePNG_Garbage(t *testing.T) {
	_, _, err := PreparePNG([]byte("not an image"))
	assert.Error(t, err)
}
