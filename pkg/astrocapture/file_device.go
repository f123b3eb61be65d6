package astrocapture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
)

// FileDevice reads a still image from disk on every Read, e.g. a snapshot
// another process keeps refreshing.
type FileDevice struct {
	Path string
}

func (d FileDevice) Read(_ context.Context) (image.Image, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return img, nil
}
