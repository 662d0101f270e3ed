package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/kiosk"
	"github.com/kozaktomas/face-attend/internal/match"
)

const arcfaceInputSize = 112

// ArcFace generates unit-normalized face signatures from an ONNX model.
type ArcFace struct {
	net gocv.Net
	dim int
}

// NewArcFace loads the model and probes it with a blank input so a
// signature dimension mismatch fails at startup instead of during
// attempts.
func NewArcFace(cfg config.EmbedderConfig) (*ArcFace, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("embedder model path is required")
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load embedder model from %s", cfg.ModelPath)
	}

	a := &ArcFace{net: net, dim: cfg.Dim}

	probe := gocv.NewMatWithSize(arcfaceInputSize, arcfaceInputSize, gocv.MatTypeCV8UC3)
	defer probe.Close()

	out, err := a.forward(probe)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("embedder model probe failed: %w", err)
	}
	if len(out) != a.dim {
		net.Close()
		return nil, fmt.Errorf("embedder model produces %d values, configured dimension is %d", len(out), a.dim)
	}

	return a, nil
}

// Close releases the network.
func (a *ArcFace) Close() error {
	return a.net.Close()
}

// Dim returns the signature dimension.
func (a *ArcFace) Dim() int {
	return a.dim
}

// forward runs one inference pass and copies out the raw output vector.
func (a *ArcFace) forward(mat gocv.Mat) ([]float32, error) {
	// ArcFace preprocessing: 112x112, (x-127.5)/127.5, BGR to RGB
	blob := gocv.BlobFromImage(mat, 1.0/127.5,
		image.Pt(arcfaceInputSize, arcfaceInputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	a.net.SetInput(blob, "")
	output := a.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Generate produces the unit-normalized signature for a face crop.
func (a *ArcFace) Generate(crop kiosk.Frame) ([]float32, error) {
	mat, err := frameMat(crop)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kiosk.ErrEmbeddingFailed, err)
	}
	if mat.Empty() || mat.Cols() == 0 || mat.Rows() == 0 {
		return nil, fmt.Errorf("%w: empty crop", kiosk.ErrEmbeddingFailed)
	}

	raw, err := a.forward(mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kiosk.ErrEmbeddingFailed, err)
	}
	if len(raw) != a.dim {
		return nil, fmt.Errorf("%w: model produced %d values, expected %d",
			kiosk.ErrEmbeddingFailed, len(raw), a.dim)
	}

	signature, err := match.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kiosk.ErrEmbeddingFailed, err)
	}
	return signature, nil
}
