// Package geo holds the geometry primitives shared by the container formats
// and the GE2D shape sub-format referenced by animation shape tags.
package geo

import "fmt"

// Point is a 2D coordinate. Shape outlines and texture coordinates store
// these as raw float pairs; animation records store them in assorted
// fixed-point encodings that are scaled on read.
type Point struct {
	X float64
	Y float64
}

func (p Point) String() string {
	return fmt.Sprintf("x: %g, y: %g", p.X, p.Y)
}

// Color is an RGBA color with channels normalized to 0.0-1.0.
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

func (c Color) String() string {
	return fmt.Sprintf("r: %g, g: %g, b: %g, a: %g", c.R, c.G, c.B, c.A)
}

// Matrix is the 2x2-plus-translation affine transform attached to placed
// animation objects.
type Matrix struct {
	A  float64
	B  float64
	C  float64
	D  float64
	TX float64
	TY float64
}

// Identity returns the no-op transform.
func Identity() Matrix {
	return Matrix{A: 1.0, D: 1.0}
}

func (m Matrix) String() string {
	return fmt.Sprintf("a: %g, b: %g, c: %g, d: %g, tx: %g, ty: %g",
		m.A, m.B, m.C, m.D, m.TX, m.TY)
}

// Rectangle is an axis-aligned bounding box.
type Rectangle struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// Width returns the horizontal extent.
func (r Rectangle) Width() float64 {
	return r.Right - r.Left
}

// Height returns the vertical extent.
func (r Rectangle) Height() float64 {
	return r.Bottom - r.Top
}

func (r Rectangle) String() string {
	return fmt.Sprintf("left: %g, right: %g, top: %g, bottom: %g",
		r.Left, r.Right, r.Top, r.Bottom)
}
