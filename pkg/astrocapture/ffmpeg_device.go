package astrocapture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/bmp"
)

const defaultTimeout = 10 * time.Second

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpegDevice grabs one frame per Read by running ffmpeg against the source.
type FFmpegDevice struct {
	Camera Config
	Run    Runner
}

func NewFFmpegDevice(cfg Config) *FFmpegDevice {
	return &FFmpegDevice{Camera: cfg, Run: runCommand}
}

// Read captures a single frame and decodes ffmpeg's BMP output.
func (d *FFmpegDevice) Read(ctx context.Context) (image.Image, error) {
	timeout := d.Camera.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := d.Run
	if run == nil {
		run = runCommand
	}

	out, err := run(ctx, "ffmpeg", d.args()...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg returned no frame data")
	}

	img, err := bmp.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg frame: %w", err)
	}
	return img, nil
}

// args builds the ffmpeg command line for a one-frame grab written to stdout.
func (d *FFmpegDevice) args() []string {
	cam := d.Camera
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch {
	case strings.HasPrefix(cam.Source, "rtsp://"), strings.HasPrefix(cam.Source, "rtsps://"):
		args = append(args, "-rtsp_transport", "tcp")
	case strings.HasPrefix(cam.Source, "/dev/"):
		args = append(args, "-f", "v4l2")
		if cam.FPS > 0 {
			args = append(args, "-framerate", strconv.Itoa(cam.FPS))
		}
		if cam.Width > 0 && cam.Height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", cam.Width, cam.Height))
		}
	}

	args = append(args, "-i", cam.Source, "-frames:v", "1")

	// Only pass -vf if a filter is needed
	if vf := cropFilter(cam.Crop); vf != "" {
		args = append(args, "-vf", vf)
	}

	return append(args, "-f", "image2pipe", "-c:v", "bmp", "-")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w | %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
