package astrocapture

import (
	"fmt"
	"strconv"
	"strings"
)

type Point struct {
	X, Y int
}

type Rectangle struct {
	X, Y, Width, Height int
}

func ExtractBoundingBox(points ...Point) Rectangle {
	if len(points) == 0 {
		return Rectangle{}
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y

	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// ParsePoints reads "x:y,x:y,x:y,x:y". An empty string means no crop.
func ParsePoints(raw string) ([]Point, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("crop region needs 4 points, got %d", len(parts))
	}

	points := make([]Point, 0, 4)
	for _, part := range parts {
		xs, ys, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("crop point %q: expected x:y", part)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xs))
		if err != nil {
			return nil, fmt.Errorf("crop point %q: %w", part, err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			return nil, fmt.Errorf("crop point %q: %w", part, err)
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points, nil
}

// cropFilter renders the bounding box of points as an ffmpeg crop filter.
func cropFilter(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	r := ExtractBoundingBox(points...)
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("crop=%d:%d:%d:%d", r.Width, r.Height, r.X, r.Y)
}
