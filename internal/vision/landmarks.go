package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attend/internal/kiosk"
	"github.com/kozaktomas/face-attend/internal/liveness"
)

const (
	landmarkInputSize = 112
	landmarkCount     = 68
)

// LandmarkNet extracts 68 facial landmark points with an ONNX regression
// model. Output coordinates are normalized to the crop and mapped into
// frame-normalized space.
type LandmarkNet struct {
	net gocv.Net
}

// NewLandmarkNet loads the landmark model.
func NewLandmarkNet(modelPath string) (*LandmarkNet, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("landmark model path is required")
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load landmark model from %s", modelPath)
	}
	return &LandmarkNet{net: net}, nil
}

// Close releases the network.
func (l *LandmarkNet) Close() error {
	return l.net.Close()
}

// Landmarks runs the model on the face box region of the frame.
func (l *LandmarkNet) Landmarks(frame kiosk.Frame, box image.Rectangle) ([]liveness.Point, error) {
	mat, err := frameMat(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kiosk.ErrNoLandmarks, err)
	}

	roi := box.Intersect(frame.Bounds())
	if roi.Empty() {
		return nil, fmt.Errorf("%w: face box outside frame", kiosk.ErrNoLandmarks)
	}

	region := mat.Region(roi)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0/255.0,
		image.Pt(landmarkInputSize, landmarkInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	l.net.SetInput(blob, "")
	output := l.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: read network output: %v", kiosk.ErrNoLandmarks, err)
	}
	if len(data) < 2*landmarkCount {
		return nil, fmt.Errorf("%w: model produced %d values, expected %d",
			kiosk.ErrNoLandmarks, len(data), 2*landmarkCount)
	}

	return mapLandmarks(data, roi, frame.Bounds()), nil
}

// mapLandmarks converts crop-relative model output into points normalized
// to the frame, so downstream variance thresholds are resolution
// independent.
func mapLandmarks(data []float32, roi, frame image.Rectangle) []liveness.Point {
	pts := make([]liveness.Point, landmarkCount)
	w := float64(roi.Dx())
	h := float64(roi.Dy())
	fw := float64(frame.Dx())
	fh := float64(frame.Dy())
	for i := 0; i < landmarkCount; i++ {
		pts[i] = liveness.Point{
			X: (float64(roi.Min.X) + float64(data[2*i])*w) / fw,
			Y: (float64(roi.Min.Y) + float64(data[2*i+1])*h) / fh,
		}
	}
	return pts
}
