package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("decode image")
	ErrEncode = errors.New("encode image")
)

// MaxPixels bounds the decoded size of a source image.
const MaxPixels = 40_000_000

var encoder = png.Encoder{CompressionLevel: png.BestCompression}

// Size returns the dimensions an image of `width`x`height` is scaled to so
// that it is at most `maxHeight` tall. Images are never enlarged.
func Size(width, height, maxHeight int) (int, int) {
	if height <= maxHeight || height <= 0 || maxHeight <= 0 {
		return width, height
	}
	scaled := width * maxHeight / height
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxHeight
}

// Resize decodes `data` (jpeg, png, gif, webp or bmp), shrinks it to at most
// `maxHeight` pixels tall preserving the aspect ratio and re-encodes it as
// a png.
func Resize(data []byte, maxHeight int) ([]byte, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if config.Width <= 0 || config.Height <= 0 || config.Width > MaxPixels/config.Height {
		return nil, fmt.Errorf("%w: %dx%d is too large", ErrDecode, config.Width, config.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bounds := src.Bounds()
	width, height := Size(bounds.Dx(), bounds.Dy(), maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	var out bytes.Buffer
	err = encoder.Encode(&out, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return out.Bytes(), nil
}
