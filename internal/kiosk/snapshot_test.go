package kiosk

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotWriterSavesAnnotatedJPEG(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSnapshotWriter(dir)
	if err != nil {
		t.Fatalf("new snapshot writer: %v", err)
	}

	frame := &fakeFrame{}
	if err := w.Save(frame, image.Rect(100, 100, 200, 200), "attempt-1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "attempt-1.jpg"))
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if img.Bounds().Dx() > snapshotMaxSize || img.Bounds().Dy() > snapshotMaxSize {
		t.Errorf("snapshot not resized: %v", img.Bounds())
	}
}

func TestResizeToFitKeepsSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	if got := resizeToFit(img, snapshotMaxSize); got != img {
		t.Error("small images should pass through untouched")
	}

	big := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	resized := resizeToFit(big, snapshotMaxSize)
	if resized.Bounds().Dx() != 640 || resized.Bounds().Dy() != 360 {
		t.Errorf("unexpected resize: %v", resized.Bounds())
	}
}

func TestDrawBoxMarksEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	out := drawBox(img, image.Rect(10, 10, 40, 40), 1)

	rgba, ok := out.(*image.RGBA)
	if !ok {
		t.Fatal("expected an RGBA image")
	}
	red := color.RGBA{255, 0, 0, 255}
	if rgba.RGBAAt(25, 10) != red {
		t.Error("top edge not drawn")
	}
	if rgba.RGBAAt(10, 25) != red {
		t.Error("left edge not drawn")
	}
	if rgba.RGBAAt(25, 25) == red {
		t.Error("interior must stay untouched")
	}
}
