package coords

import (
	"math"
	"testing"
)

func near(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

func TestTranslateMovesPoints(t *testing.T) {
	p := Translate(10, -5).Transform(Point{X: 3, Y: 4})
	if p.X != 13 || p.Y != -1 {
		t.Errorf("got (%v, %v), want (13, -1)", p.X, p.Y)
	}
}

func TestIdentityLeavesTransformsAlone(t *testing.T) {
	m := Scale(2, 3).Multiply(Translate(7, 8))
	if m.Multiply(Identity()) != m || Identity().Multiply(m) != m {
		t.Error("identity changed the transform")
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	p := Rotate(math.Pi / 2).Transform(Point{X: 1, Y: 0})
	if !near(p.X, 0) || !near(p.Y, 1) {
		t.Errorf("(1, 0) rotated to (%v, %v), want (0, 1)", p.X, p.Y)
	}
}

func TestRotateAroundFixesPivot(t *testing.T) {
	m := RotateAround(math.Pi/2, 50, 50)

	if p := m.Transform(Point{X: 50, Y: 50}); !near(p.X, 50) || !near(p.Y, 50) {
		t.Errorf("pivot moved to (%v, %v)", p.X, p.Y)
	}
	// A quarter turn counterclockwise sends a point right of the pivot up.
	if p := m.Transform(Point{X: 60, Y: 50}); !near(p.X, 50) || !near(p.Y, 60) {
		t.Errorf("(60, 50) rotated to (%v, %v), want (50, 60)", p.X, p.Y)
	}
}

func TestMultiplyAppliesLeftFirst(t *testing.T) {
	p := Scale(2, 2).Multiply(Translate(10, 0)).Transform(Point{X: 1, Y: 1})
	if !near(p.X, 12) || !near(p.Y, 2) {
		t.Errorf("scale then translate gave (%v, %v), want (12, 2)", p.X, p.Y)
	}

	p = Translate(10, 0).Multiply(Scale(2, 2)).Transform(Point{X: 1, Y: 1})
	if !near(p.X, 22) || !near(p.Y, 2) {
		t.Errorf("translate then scale gave (%v, %v), want (22, 2)", p.X, p.Y)
	}
}
