// Package kiosk runs the attendance capture loop: it watches the camera,
// waits for a blink trigger and drives the identification pipeline.
package kiosk

import (
	"image"

	"github.com/kozaktomas/face-attend/internal/liveness"
)

// Frame is one captured image. Close must be called when the frame is no
// longer needed to release the underlying buffer.
type Frame interface {
	Bounds() image.Rectangle
	Image() (image.Image, error)
	Close()
}

// FrameSource produces frames from a camera or file sequence.
type FrameSource interface {
	Open() error
	Read() (Frame, error)
	Close() error
}

// Detection is one face found in a frame. Crop holds the padded face
// region and must be closed by the receiver.
type Detection struct {
	Crop       Frame
	Box        image.Rectangle
	Confidence float64
}

// Detector locates faces in a frame.
type Detector interface {
	// DetectSingle returns the most confident face together with the
	// total number of faces in the frame. The detection is nil when no
	// face is present.
	DetectSingle(frame Frame) (*Detection, int, error)
}

// Landmarker extracts facial landmark points from a detected face.
type Landmarker interface {
	Landmarks(frame Frame, box image.Rectangle) ([]liveness.Point, error)
}

// Embedder turns a face crop into a fixed-dimension signature vector.
type Embedder interface {
	Generate(crop Frame) ([]float32, error)
	Dim() int
}
