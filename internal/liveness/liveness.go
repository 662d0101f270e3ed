// Package liveness implements passive liveness checks over a short window
// of face landmark observations: blink detection via the eye aspect ratio
// and micro-movement detection via landmark position variance.
package liveness

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Point is one landmark coordinate, normalized to frame size.
type Point struct {
	X float64
	Y float64
}

// Eye landmark indices within the 68-point annotation scheme.
var (
	LeftEye  = [6]int{36, 37, 38, 39, 40, 41}
	RightEye = [6]int{42, 43, 44, 45, 46, 47}
)

func dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeAspectRatio computes the EAR for one eye: the mean of the two vertical
// lid distances over the horizontal eye width. Open eyes sit around 0.3,
// closed eyes drop near zero.
func EyeAspectRatio(pts []Point, eye [6]int) float64 {
	for _, i := range eye {
		if i >= len(pts) {
			return 0
		}
	}

	p1, p2, p3 := pts[eye[0]], pts[eye[1]], pts[eye[2]]
	p4, p5, p6 := pts[eye[3]], pts[eye[4]], pts[eye[5]]

	horizontal := dist(p1, p4)
	if horizontal == 0 {
		return 0
	}
	return (dist(p2, p6) + dist(p3, p5)) / (2 * horizontal)
}

// AverageEAR computes the EAR averaged over both eyes.
func AverageEAR(pts []Point) float64 {
	return (EyeAspectRatio(pts, LeftEye) + EyeAspectRatio(pts, RightEye)) / 2
}

// Verdict is the result of evaluating the observation window.
type Verdict struct {
	Live   bool
	Score  float64 // movement variance that drove the decision
	Reason string
}

// Monitor accumulates landmark observations and decides blink triggers and
// liveness. Not safe for concurrent use; the kiosk loop owns it.
type Monitor struct {
	window            int
	movementThreshold float64
	blinkVariance     float64
	earThreshold      float64
	cooldown          time.Duration

	frames      [][]Point
	ears        []float64
	lastTrigger time.Time
}

// NewMonitor creates a monitor over the given observation window.
func NewMonitor(window int, movementThreshold, blinkVariance, earThreshold float64, cooldown time.Duration) *Monitor {
	if window < 2 {
		window = 2
	}
	return &Monitor{
		window:            window,
		movementThreshold: movementThreshold,
		blinkVariance:     blinkVariance,
		earThreshold:      earThreshold,
		cooldown:          cooldown,
	}
}

// Observe records one landmark set and reports whether it triggers a blink.
// A trigger fires when the average EAR drops below the threshold and the
// cooldown since the previous trigger has elapsed.
func (m *Monitor) Observe(pts []Point, now time.Time) bool {
	m.frames = append(m.frames, pts)
	if len(m.frames) > m.window {
		m.frames = m.frames[1:]
	}

	ear := AverageEAR(pts)
	m.ears = append(m.ears, ear)
	if len(m.ears) > m.window {
		m.ears = m.ears[1:]
	}

	if ear >= m.earThreshold {
		return false
	}
	if !m.lastTrigger.IsZero() && now.Sub(m.lastTrigger) < m.cooldown {
		return false
	}
	m.lastTrigger = now
	return true
}

// ResetCooldown restarts the blink cooldown, e.g. when a result display
// period ends.
func (m *Monitor) ResetCooldown(now time.Time) {
	m.lastTrigger = now
}

// Evaluate decides liveness over the current window. A subject passes when
// the landmarks show natural micro-movement or the eye aspect ratio varied
// enough to indicate a blink. A static sequence, as produced by a printed
// photo held steady, fails.
func (m *Monitor) Evaluate() Verdict {
	if len(m.frames) < m.window {
		return Verdict{Live: false, Reason: "insufficient observations"}
	}

	movement := m.movementVariance()
	if movement > m.movementThreshold {
		return Verdict{Live: true, Score: movement, Reason: "movement detected"}
	}

	if len(m.ears) >= 2 {
		earVar := stat.Variance(m.ears, nil)
		if earVar > m.blinkVariance {
			return Verdict{Live: true, Score: movement, Reason: "blink detected"}
		}
	}

	return Verdict{Live: false, Score: movement, Reason: "static landmarks"}
}

// movementVariance averages the per-coordinate variance across the window.
// Frames with differing landmark counts are truncated to the shortest.
func (m *Monitor) movementVariance() float64 {
	n := len(m.frames)
	if n < 2 {
		return 0
	}

	points := len(m.frames[0])
	for _, f := range m.frames[1:] {
		if len(f) < points {
			points = len(f)
		}
	}
	if points == 0 {
		return 0
	}

	series := make([]float64, n)
	var total float64
	for p := 0; p < points; p++ {
		for i, f := range m.frames {
			series[i] = f[p].X
		}
		total += stat.Variance(series, nil)

		for i, f := range m.frames {
			series[i] = f[p].Y
		}
		total += stat.Variance(series, nil)
	}
	return total / float64(2*points)
}
