// Package imaging bounds the size of user photos before they are uploaded.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 1000
	DefaultQuality  = 70
	// DefaultMaxPixels bounds the decoded size of a photo; 50 MP is above any
	// phone camera.
	DefaultMaxPixels = 50_000_000
)

// ErrEncoding matches every *EncodingError.
var ErrEncoding = errors.New("photo encoding failed")

type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("photo %s: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Photo is the result of normalization, ready for upload.
type Photo struct {
	Data     []byte
	Filename string
	MimeType string
	Width    int
	Height   int
	// Resized is false when Data is the caller's original bytes.
	Resized bool
}

type Normalizer struct {
	MaxWidth int
	Quality  int
	// MaxPixels rejects images whose header declares more pixels, before any
	// pixel buffer is allocated.
	MaxPixels int
}

func NewNormalizer(maxWidth, quality, maxPixels int) Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return Normalizer{MaxWidth: maxWidth, Quality: quality, MaxPixels: maxPixels}
}

// Normalize returns data unchanged when the image is at most MaxWidth pixels
// wide. Wider images are scaled to exactly MaxWidth, keeping the aspect ratio,
// and re-encoded as JPEG.
func (n Normalizer) Normalize(data []byte, filename string) (Photo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, &EncodingError{Op: "decode", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Photo{}, &EncodingError{Op: "decode", Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if n.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(n.MaxPixels) {
		return Photo{}, &EncodingError{Op: "decode", Err: fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, n.MaxPixels)}
	}

	if cfg.Width <= n.MaxWidth {
		return Photo{
			Data:     data,
			Filename: filename,
			MimeType: "image/" + format,
			Width:    cfg.Width,
			Height:   cfg.Height,
		}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Photo{}, &EncodingError{Op: "decode", Err: err}
	}

	width, height := n.scaledSize(cfg.Width, cfg.Height)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha; flatten transparent areas onto white.
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.Quality}); err != nil {
		return Photo{}, &EncodingError{Op: "encode", Err: err}
	}

	return Photo{
		Data:     buf.Bytes(),
		Filename: jpegName(filename),
		MimeType: "image/jpeg",
		Width:    width,
		Height:   height,
		Resized:  true,
	}, nil
}

func (n Normalizer) scaledSize(w, h int) (int, int) {
	scale := float64(n.MaxWidth) / float64(w)
	height := int(math.Round(float64(h) * scale))
	if height < 1 {
		height = 1
	}
	return n.MaxWidth, height
}

func jpegName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base == "" {
		base = "photo"
	}
	return base + ".jpg"
}
