package match

import (
	"errors"
	"math"
)

// ErrZeroVector is returned when a signature has no magnitude and
// therefore no direction to normalize.
var ErrZeroVector = errors.New("zero magnitude vector cannot be normalized")

// Normalize scales vec to unit length. The input is not modified.
func Normalize(vec []float32) ([]float32, error) {
	if len(vec) == 0 {
		return nil, ErrZeroVector
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, ErrZeroVector
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
