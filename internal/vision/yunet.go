package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/kiosk"
)

// YuNet face rows carry box, five landmark pairs and a confidence score.
const yunetRowCols = 15

// YuNet detects faces with the OpenCV YuNet DNN model.
type YuNet struct {
	detector      gocv.FaceDetectorYN
	minConfidence float32
	padding       int
}

// NewYuNet loads the YuNet ONNX model from cfg.ModelPath.
func NewYuNet(cfg config.DetectorConfig) (*YuNet, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("detector model path is required")
	}

	detector := gocv.NewFaceDetectorYN(cfg.ModelPath, "", image.Pt(320, 320))
	detector.SetScoreThreshold(float32(cfg.Confidence))

	return &YuNet{
		detector:      detector,
		minConfidence: float32(cfg.Confidence),
		padding:       cfg.CropPadding,
	}, nil
}

// Close releases the detector.
func (y *YuNet) Close() error {
	y.detector.Close()
	return nil
}

// detect runs the model and returns the raw face boxes with scores.
func (y *YuNet) detect(frame kiosk.Frame) ([]image.Rectangle, []float64, error) {
	mat, err := frameMat(frame)
	if err != nil {
		return nil, nil, err
	}
	if mat.Empty() {
		return nil, nil, fmt.Errorf("empty frame")
	}

	y.detector.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(mat, &faces)

	if faces.Empty() || faces.Cols() < yunetRowCols {
		return nil, nil, nil
	}

	var boxes []image.Rectangle
	var scores []float64
	for r := 0; r < faces.Rows(); r++ {
		score := faces.GetFloatAt(r, 14)
		if score < y.minConfidence {
			continue
		}
		x := int(faces.GetFloatAt(r, 0))
		yy := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		boxes = append(boxes, image.Rect(x, yy, x+w, yy+h))
		scores = append(scores, float64(score))
	}
	return boxes, scores, nil
}

// DetectSingle returns the most confident face and how many faces the
// frame contains, from a single inference pass. The crop is padded and
// clipped to the frame bounds; the caller owns it.
func (y *YuNet) DetectSingle(frame kiosk.Frame) (*kiosk.Detection, int, error) {
	boxes, scores, err := y.detect(frame)
	if err != nil {
		return nil, 0, err
	}
	if len(boxes) == 0 {
		return nil, 0, nil
	}

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	mat, err := frameMat(frame)
	if err != nil {
		return nil, len(boxes), err
	}

	box := boxes[best]
	padded := image.Rect(
		box.Min.X-y.padding,
		box.Min.Y-y.padding,
		box.Max.X+y.padding,
		box.Max.Y+y.padding,
	).Intersect(frame.Bounds())
	if padded.Empty() {
		return nil, len(boxes), nil
	}

	region := mat.Region(padded)
	crop := region.Clone()
	region.Close()

	return &kiosk.Detection{
		Crop:       NewFrame(crop),
		Box:        box,
		Confidence: scores[best],
	}, len(boxes), nil
}
