// Package coords provides the affine transforms behind content stream
// placement. A Matrix carries the six numbers of a cm or Tm operand
// list in their wire order [a b c d e f], so x' = a*x + c*y + e and
// y' = b*x + d*y + f.
package coords

import "math"

// Matrix is a 2D affine transform in operand order [a b c d e f].
type Matrix [6]float64

// Point is a position in page space.
type Point struct {
	X, Y float64
}

// Identity returns the transform mapping every point onto itself.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns the transform moving points by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns the transform scaling by sx horizontally and sy
// vertically.
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate returns the transform rotating by rad counterclockwise about
// the origin.
func Rotate(rad float64) Matrix {
	sin, cos := math.Sincos(rad)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// RotateAround returns the transform rotating by rad counterclockwise
// about (cx, cy).
func RotateAround(rad, cx, cy float64) Matrix {
	sin, cos := math.Sincos(rad)
	return Matrix{
		cos, sin, -sin, cos,
		cx - cos*cx + sin*cy,
		cy - sin*cx - cos*cy,
	}
}

// Multiply returns the transform applying m first and n second.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Transform applies m to p.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}
