package kinematics

import (
	"fmt"
	"testing"
)

func TestSpeedBounds(t *testing.T) {
	const dt = 0.1
	for _, v := range []float64{0, 0.01, 10, MaxSpeed - 0.01, MaxSpeed} {
		t.Run(fmt.Sprintf("%g", v), func(t *testing.T) {
			a := Default.Accelerate(v, dt)
			if a > MaxSpeed || a < v || a-v > Acceleration*dt+1e-12 {
				t.Fatalf("accelerate: %g → %g", v, a)
			}
			b := Default.Brake(v, dt)
			if b < 0 || b > v || v-b > -Deceleration*dt+1e-12 {
				t.Fatalf("brake: %g → %g", v, b)
			}
		})
	}
}

func TestStoppingDistance(t *testing.T) {
	if got := Default.StoppingDistance(10); got != 50 {
		t.Fatalf("expected 50, got %g", got)
	}
	if got := (Model{Acc: 1}).StoppingDistance(1); got < 1e300 {
		t.Fatalf("model without brakes must never stop, got %g", got)
	}
}

func TestAdvance(t *testing.T) {
	d, cut := Default.Advance(10, 0.5, 100)
	if d != 5 || cut {
		t.Fatalf("got %g %t", d, cut)
	}
	d, cut = Default.Advance(10, 0.5, 2)
	if d != 2 || !cut {
		t.Fatalf("got %g %t", d, cut)
	}
	d, _ = Default.Advance(-10, 0.5, 2)
	if d != 0 {
		t.Fatalf("negative speed must not advance, got %g", d)
	}
}
