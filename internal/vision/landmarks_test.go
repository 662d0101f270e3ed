package vision

import (
	"image"
	"math"
	"testing"
)

func landmarkData(x, y float32) []float32 {
	data := make([]float32, 2*landmarkCount)
	for i := 0; i < landmarkCount; i++ {
		data[2*i] = x
		data[2*i+1] = y
	}
	return data
}

func TestMapLandmarksNormalizesToFrame(t *testing.T) {
	frame := image.Rect(0, 0, 640, 480)
	roi := image.Rect(100, 100, 212, 212)

	pts := mapLandmarks(landmarkData(0.5, 0.5), roi, frame)

	if len(pts) != landmarkCount {
		t.Fatalf("expected %d points, got %d", landmarkCount, len(pts))
	}
	wantX := (100.0 + 0.5*112.0) / 640.0
	wantY := (100.0 + 0.5*112.0) / 480.0
	if math.Abs(pts[0].X-wantX) > 1e-9 || math.Abs(pts[0].Y-wantY) > 1e-9 {
		t.Errorf("point = (%f, %f), want (%f, %f)", pts[0].X, pts[0].Y, wantX, wantY)
	}

	for i, p := range pts {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			t.Fatalf("point %d = (%f, %f) outside [0,1]", i, p.X, p.Y)
		}
	}
}

func TestMapLandmarksPixelJitterStaysSubThreshold(t *testing.T) {
	frame := image.Rect(0, 0, 640, 480)
	roi := image.Rect(100, 100, 212, 212)

	base := mapLandmarks(landmarkData(0.5, 0.5), roi, frame)
	// a tenth of a pixel within the 112 px crop
	jittered := mapLandmarks(landmarkData(0.5+0.1/112.0, 0.5), roi, frame)

	dx := jittered[0].X - base[0].X
	// sensor noise on a static photo must stay far below the default
	// movement variance gate of 0.0005
	if dx*dx > 0.0005/100 {
		t.Errorf("pixel-level jitter maps to normalized delta %g, too large", dx)
	}
}
