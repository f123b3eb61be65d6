package astroenvelope

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/Asteroidea-tn/astrocarver/pkg/astrocapture"
)

func testFrame(w, h int) astrocapture.RawFrame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	return astrocapture.RawFrame{
		Image:       img,
		TimestampMs: 1000,
		CapturedAt:  time.Date(2026, 10, 18, 11, 30, 12, 45*int(time.Millisecond), time.Local),
	}
}

func TestEncoder_EncodeIsDeterministic(t *testing.T) {
	frame := testFrame(32, 18)
	enc := Encoder{Quality: 80}

	a, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("second Encode failed: %v", err)
	}
	if a != b {
		t.Fatal("expected identical envelopes for the same frame")
	}

	da, _ := a.Bytes()
	db, _ := b.Bytes()
	if !bytes.Equal(da, db) {
		t.Fatal("expected byte-identical documents")
	}
}

func TestEncoder_EnvelopeFields(t *testing.T) {
	frame := testFrame(16, 9)
	env, err := Encoder{}.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if env.TimestampMs() != 1000 {
		t.Fatalf("expected timestamp 1000, got %d", env.TimestampMs())
	}
	if env.DateTime() != "20261018 113012045" {
		t.Fatalf("unexpected date time %q", env.DateTime())
	}

	data, err := env.Image()
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("payload is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 9 {
		t.Fatalf("expected 16x9 JPEG, got %v", b)
	}
}

func TestEncoder_RejectsEmptyFrames(t *testing.T) {
	cases := map[string]astrocapture.RawFrame{
		"nil image":  {TimestampMs: 1},
		"zero width": {Image: image.NewRGBA(image.Rect(0, 0, 0, 10))},
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (Encoder{}).Encode(frame); !errors.Is(err, ErrEncode) {
				t.Fatalf("expected ErrEncode, got %v", err)
			}
		})
	}
}

func TestEncoder_Downscale(t *testing.T) {
	env, err := Encoder{MaxWidth: 20, MaxHeight: 20}.Encode(testFrame(64, 32))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data, _ := env.Image()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Fatalf("expected 20x10 after downscale, got %v", b)
	}
}

func TestEncoder_NoUpscale(t *testing.T) {
	env, err := Encoder{MaxWidth: 640, MaxHeight: 360}.Encode(testFrame(8, 8))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data, _ := env.Image()
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Fatalf("expected original 8x8, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEnvelope_DocumentLayout(t *testing.T) {
	env := New(1000, time.Date(2026, 1, 2, 3, 4, 5, 6*int(time.Millisecond), time.Local), "AAA=")
	data, err := env.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	doc := string(data)

	if !strings.HasPrefix(doc, `<?xml version="1.0"?>`) {
		t.Fatalf("missing xml declaration: %q", doc)
	}
	ts := strings.Index(doc, "<Timestamp>1000</Timestamp>")
	dt := strings.Index(doc, "<DateTime>20260102 030405006</DateTime>")
	img := strings.Index(doc, "<ImageBase64>AAA=</ImageBase64>")
	if ts < 0 || dt < 0 || img < 0 {
		t.Fatalf("missing element in %q", doc)
	}
	if !(ts < dt && dt < img) {
		t.Fatalf("elements out of order in %q", doc)
	}
	if !strings.Contains(doc, "<ImageData>") {
		t.Fatalf("missing root element in %q", doc)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != env {
		t.Fatalf("expected %+v, got %+v", env, parsed)
	}
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 12, 31, 23, 59, 58, 7*int(time.Millisecond)+999, time.Local)
	if got := FormatDateTime(ts); got != "20261231 235958007" {
		t.Fatalf("unexpected format %q", got)
	}
}
