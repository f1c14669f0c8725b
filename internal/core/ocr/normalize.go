package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// NormalizeRGB flattens any colour model (grayscale, paletted, CMYK, with or
// without alpha) onto an opaque white canvas. The png encoder writes opaque
// RGBA images as 3-channel RGB, which is what tesseract expects.
func NormalizeRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// PreparePNG decodes any supported raster format and returns it re-encoded
// as an opaque RGB PNG, plus the source format name.
func PreparePNG(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, NormalizeRGB(img)); err != nil {
		return nil, format, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}
