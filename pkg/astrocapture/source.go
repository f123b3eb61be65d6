package astrocapture

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

const lockRetryDelay = 50 * time.Millisecond

// Device reads a single frame from the underlying camera.
type Device interface {
	Read(ctx context.Context) (image.Image, error)
}

// Source serializes access to a Device and stamps each frame with the time
// elapsed since the session started.
type Source struct {
	mu     sync.Mutex
	id     string
	device Device
	lock   *flock.Flock
	start  time.Time
	now    func() time.Time
}

// NewSource opens a capture session on device. lockPath, when set, names a file
// lock that is held around every device read.
func NewSource(id string, device Device, lockPath string) *Source {
	s := &Source{
		id:     id,
		device: device,
		now:    time.Now,
	}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	s.start = s.now()
	return s
}

// OpenSource picks the device for cfg.Source and opens a session on it.
func OpenSource(cfg Config) *Source {
	var device Device
	if path, ok := strings.CutPrefix(cfg.Source, "file://"); ok {
		device = FileDevice{Path: path}
	} else {
		device = NewFFmpegDevice(cfg)
	}
	return NewSource(cfg.ID, device, cfg.LockPath)
}

// Capture reads one frame. Concurrent callers wait for the read in progress.
// The device lock, if any, is waited on for at most defaultTimeout.
// A failed read or an empty image is reported as ErrCapture.
func (s *Source) Capture(ctx context.Context) (RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		lockCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		ok, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
		cancel()
		if err != nil {
			return RawFrame{}, fmt.Errorf("%w: %s: acquire device lock: %w", ErrCapture, s.id, err)
		}
		if !ok {
			return RawFrame{}, fmt.Errorf("%w: %s: device lock %s is held", ErrCapture, s.id, s.lock.Path())
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				log.Warn().Err(err).Str("camera", s.id).Msg("Failed to release device lock")
			}
		}()
	}

	img, err := s.device.Read(ctx)
	capturedAt := s.now()
	if err != nil {
		return RawFrame{}, fmt.Errorf("%w: %s: %w", ErrCapture, s.id, err)
	}
	if img == nil || img.Bounds().Empty() {
		return RawFrame{}, fmt.Errorf("%w: %s: failed to fetch frame", ErrCapture, s.id)
	}

	elapsed := capturedAt.Sub(s.start)
	if elapsed < 0 {
		elapsed = 0
	}

	log.Debug().
		Str("camera", s.id).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int64("timestamp_ms", elapsed.Milliseconds()).
		Msg("Frame captured")

	return RawFrame{
		Image:       img,
		TimestampMs: uint32(elapsed.Milliseconds()),
		CapturedAt:  capturedAt,
	}, nil
}
