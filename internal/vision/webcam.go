package vision

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/kiosk"
)

// Webcam captures frames from a local camera. A numeric device string is
// treated as a device index, anything else as a path or URL.
type Webcam struct {
	device string
	width  int
	height int

	cap *gocv.VideoCapture
}

// NewWebcam creates an unopened webcam source.
func NewWebcam(cfg config.CameraConfig) *Webcam {
	return &Webcam{
		device: cfg.Device,
		width:  cfg.Width,
		height: cfg.Height,
	}
}

// Open acquires the capture device and applies the configured resolution.
func (w *Webcam) Open() error {
	var source interface{} = w.device
	if idx, err := strconv.Atoi(w.device); err == nil {
		source = idx
	}

	cap, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return fmt.Errorf("open capture device %q: %w", w.device, err)
	}

	if w.width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(w.width))
	}
	if w.height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(w.height))
	}

	w.cap = cap
	return nil
}

// Read grabs the next frame. The returned frame owns its buffer.
func (w *Webcam) Read() (kiosk.Frame, error) {
	if w.cap == nil {
		return nil, fmt.Errorf("capture device not opened")
	}

	mat := gocv.NewMat()
	if ok := w.cap.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("read from capture device %q failed", w.device)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("capture device %q returned an empty frame", w.device)
	}
	return NewFrame(mat), nil
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	if err != nil {
		return fmt.Errorf("close capture device: %w", err)
	}
	return nil
}
