// Package imaging shrinks uploaded photos before they are stored or sent to the vision API.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 800
	DefaultJPEGQuality  = 85
)

var ErrUnsupportedImage = errors.New("unsupported image format")

type Options struct {
	MaxDimension int
	Quality      int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultJPEGQuality
	}
	return o
}

// Fit decodes a JPEG, PNG or WebP image, scales it so the longer edge is at
// most MaxDimension (never upscaling) and re-encodes it as JPEG.
func Fit(r io.Reader, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	src, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := scale(src, opts.MaxDimension)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// TargetSize returns the dimensions an image of w x h is scaled to.
func TargetSize(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

func scale(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), maxDim)

	// JPEG has no alpha; start from white so transparent PNG areas do not turn black.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
