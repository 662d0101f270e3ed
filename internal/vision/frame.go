// Package vision holds everything that touches OpenCV: camera capture,
// YuNet face detection, landmark extraction and ArcFace signature
// generation. The rest of the code sees only the kiosk interfaces.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// matFrame wraps a gocv.Mat as a kiosk.Frame.
type matFrame struct {
	mat gocv.Mat
}

// NewFrame wraps an owned Mat. The caller hands over ownership; Close
// releases it.
func NewFrame(mat gocv.Mat) *matFrame {
	return &matFrame{mat: mat}
}

func (f *matFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

func (f *matFrame) Image() (image.Image, error) {
	img, err := f.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mat to image: %w", err)
	}
	return img, nil
}

func (f *matFrame) Close() {
	f.mat.Close()
}

// Mat exposes the underlying Mat to other vision components. Frames from
// other packages are rejected.
func (f *matFrame) Mat() gocv.Mat {
	return f.mat
}

// frameMat extracts the gocv.Mat from a frame created by this package.
func frameMat(frame interface{ Bounds() image.Rectangle }) (gocv.Mat, error) {
	mf, ok := frame.(*matFrame)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("frame does not wrap a gocv Mat")
	}
	return mf.mat, nil
}
