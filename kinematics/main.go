// Package kinematics is the fixed-step speed model of trains. Distances are in metres,
// speeds in m/s and times in seconds.
package kinematics

import "math"

const (
	MaxSpeed     = 140 / 3.6
	Acceleration = 0.5
	// Deceleration is negative.
	Deceleration = -1.0
)

// Model is a constant acceleration model.
type Model struct {
	Acc  float64 `json:"acc"`
	Dec  float64 `json:"dec"` // negative
	VMax float64 `json:"vMax"`
}

var Default = Model{Acc: Acceleration, Dec: Deceleration, VMax: MaxSpeed}

// StoppingDistance is the distance needed to stop from speed v.
func (m Model) StoppingDistance(v float64) float64 {
	if m.Dec >= 0 {
		return math.Inf(1)
	}
	return v * v / (2 * -m.Dec)
}

// Clamp forces v into [0, VMax].
func (m Model) Clamp(v float64) float64 {
	return math.Max(0, math.Min(m.VMax, v))
}

// Accelerate returns the speed after accelerating for dt.
func (m Model) Accelerate(v, dt float64) float64 {
	return m.Clamp(v + m.Acc*dt)
}

// Brake returns the speed after braking for dt.
func (m Model) Brake(v, dt float64) float64 {
	return m.Clamp(v + m.Dec*dt)
}

// Advance returns the distance covered in dt at the pre-step speed v, limited to free.
// The second result is set when the limit cut the step short.
func (m Model) Advance(v, dt, free float64) (float64, bool) {
	d := math.Max(0, v) * dt
	if d > free {
		return math.Max(0, free), true
	}
	return d, false
}
