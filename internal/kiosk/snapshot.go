package kiosk

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const snapshotMaxSize = 640

// SnapshotWriter saves annotated attempt frames as JPEG files for audit.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter ensures the target directory exists.
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir}, nil
}

// Save writes the frame with the face box drawn on it, named by attempt ID.
func (w *SnapshotWriter) Save(frame Frame, box image.Rectangle, attemptID string) error {
	img, err := frame.Image()
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	annotated := drawBox(img, box, 2)
	resized := resizeToFit(annotated, snapshotMaxSize)

	path := filepath.Join(w.dir, attemptID+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// resizeToFit scales the image down to fit within maxSize while keeping the
// aspect ratio. Smaller images pass through untouched.
func resizeToFit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		if width <= maxSize {
			return img
		}
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		if height <= maxSize {
			return img
		}
		newHeight = maxSize
		newWidth = width * maxSize / height
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}

// drawBox draws a red rectangle around the face on a copy of the image.
func drawBox(img image.Image, box image.Rectangle, lineWidth int) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	red := color.RGBA{255, 0, 0, 255}
	for w := range lineWidth {
		drawHLine(dst, box.Min.X, box.Max.X, box.Min.Y+w, red)
		drawHLine(dst, box.Min.X, box.Max.X, box.Max.Y-w, red)
		drawVLine(dst, box.Min.Y, box.Max.Y, box.Min.X+w, red)
		drawVLine(dst, box.Min.Y, box.Max.Y, box.Max.X-w, red)
	}
	return dst
}
