package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attend/internal/kiosk"
)

// ReadImage loads an image file as a frame, for enrollment from photos.
func ReadImage(path string) (kiosk.Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	return NewFrame(mat), nil
}
