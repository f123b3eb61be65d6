package astroenvelope

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/Asteroidea-tn/astrocarver/pkg/astrocapture"
)

var ErrEncode = errors.New("encode error")

const DefaultQuality = 90

// Encoder turns frames into envelopes. The zero value encodes at DefaultQuality
// without resizing.
type Encoder struct {
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// Encode compresses the frame to JPEG and wraps it with its timestamps.
// The same frame always yields the same envelope.
func (e Encoder) Encode(frame astrocapture.RawFrame) (Envelope, error) {
	img := frame.Image
	if img == nil {
		return Envelope{}, fmt.Errorf("%w: frame has no image", ErrEncode)
	}
	if img.Bounds().Empty() {
		return Envelope{}, fmt.Errorf("%w: frame image is %dx%d", ErrEncode, img.Bounds().Dx(), img.Bounds().Dy())
	}

	img = e.fit(img)

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Envelope{}, fmt.Errorf("%w: jpeg: %w", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return Envelope{}, fmt.Errorf("%w: jpeg produced no data", ErrEncode)
	}

	return New(frame.TimestampMs, frame.CapturedAt, base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// fit downscales img to the configured bounds, keeping its aspect ratio.
func (e Encoder) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if e.MaxWidth > 0 && w > e.MaxWidth {
		scale = float64(e.MaxWidth) / float64(w)
	}
	if e.MaxHeight > 0 && h > e.MaxHeight {
		if s := float64(e.MaxHeight) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return img
	}

	dw := max(1, int(float64(w)*scale))
	dh := max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
