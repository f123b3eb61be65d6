package astrocapture

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveSnapshot writes a JPEG to dir as "<id>_<stamp>.jpg" and returns the path.
func SaveSnapshot(dir, id, stamp string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", id, stamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}
