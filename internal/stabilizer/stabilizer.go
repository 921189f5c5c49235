// Package stabilizer smooths a stream of 2-D pixel points with an
// exponential moving average whose weight grows with the size of the jump.
//
// Small jitter gets a low alpha so tracking noise is suppressed; large moves
// saturate at the maximum alpha so the filter does not visibly trail a real
// head movement.
package stabilizer

import (
	"image"
	"math"
)

// Default filter parameters.
const (
	DefaultAlphaMin  = 0.05
	DefaultAlphaMax  = 0.35
	DefaultThreshold = 100.0
)

// Params configures a Stabilizer.
type Params struct {
	AlphaMin  float64
	AlphaMax  float64
	Threshold float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		AlphaMin:  DefaultAlphaMin,
		AlphaMax:  DefaultAlphaMax,
		Threshold: DefaultThreshold,
	}
}

// Stabilizer is not safe for concurrent use. The owning goroutine must
// serialize calls.
type Stabilizer struct {
	params      Params
	last        image.Point
	initialized bool
}

// New creates a Stabilizer. Each zero-valued param falls back to its default,
// and AlphaMax is raised to AlphaMin if it would otherwise sit below it.
func New(p Params) *Stabilizer {
	d := DefaultParams()
	if p.AlphaMin <= 0 {
		p.AlphaMin = d.AlphaMin
	}
	if p.AlphaMax <= 0 {
		p.AlphaMax = d.AlphaMax
	}
	if p.AlphaMax < p.AlphaMin {
		p.AlphaMax = p.AlphaMin
	}
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	return &Stabilizer{params: p}
}

// Alpha returns the smoothing weight for a jump of the given distance.
// It ramps linearly from AlphaMin at zero to AlphaMax at Threshold and
// stays at AlphaMax beyond it.
func (s *Stabilizer) Alpha(distance float64) float64 {
	if distance >= s.params.Threshold {
		return s.params.AlphaMax
	}
	if distance < 0 {
		distance = 0
	}
	return s.params.AlphaMin + (s.params.AlphaMax-s.params.AlphaMin)*(distance/s.params.Threshold)
}

// Stabilize feeds a new observation and returns the stabilized point.
// The first observation is adopted unchanged.
func (s *Stabilizer) Stabilize(p image.Point) image.Point {
	if !s.initialized {
		s.last = p
		s.initialized = true
		return s.last
	}

	dx := float64(p.X - s.last.X)
	dy := float64(p.Y - s.last.Y)
	alpha := s.Alpha(math.Hypot(dx, dy))

	x := alpha*float64(p.X) + (1-alpha)*float64(s.last.X)
	y := alpha*float64(p.Y) + (1-alpha)*float64(s.last.Y)

	// int() truncation toward zero, matching pixel-grid snapping.
	s.last = image.Pt(int(x), int(y))
	return s.last
}

// Last returns the current stabilized point and whether one exists.
func (s *Stabilizer) Last() (image.Point, bool) {
	return s.last, s.initialized
}

// Reset drops the stabilized state; the next observation bootstraps again.
func (s *Stabilizer) Reset() {
	s.last = image.Point{}
	s.initialized = false
}
