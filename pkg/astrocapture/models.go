package astrocapture

import (
	"errors"
	"image"
	"time"
)

var ErrCapture = errors.New("capture error")

// =========== CAPTURE MODELS ========
type Config struct {
	ID       string
	Source   string // rtsp:// url, /dev/videoN, or file:// path
	Width    int
	Height   int
	FPS      int
	Timeout  time.Duration
	Crop     []Point // four corners, empty = full frame
	LockPath string  // cross-process device lock, empty = none
}

// RawFrame is one image read from the device. TimestampMs counts milliseconds
// since the capture session started.
type RawFrame struct {
	Image       image.Image
	TimestampMs uint32
	CapturedAt  time.Time
}
