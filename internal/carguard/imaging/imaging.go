// Package imaging decodes probe and reference images and normalizes them
// to a fixed square resolution for appearance comparison.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrDecode means the bytes are not an image in a supported format.
var ErrDecode = errors.New("imaging: cannot decode image")

// DefaultMaxPixels bounds the decoded size of an image whose limit is unset.
const DefaultMaxPixels = 40_000_000

// Decode accepts jpeg, png, gif and webp up to DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited reads the header first and refuses images declaring more
// than maxPixels pixels before any pixel buffer is allocated.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: zero-sized image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: zero-sized image", ErrDecode)
	}
	return img, format, nil
}

// Resize scales src to side×side, ignoring aspect ratio.
func Resize(src image.Image, side int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
