// Package geom provides the half-space, polytope, and bounding volume
// algebra used by the picking intersector.
package geom

import (
	"fmt"

	"github.com/taigrr/skewer/pkg/math3d"
)

// Plane represents a half-space boundary using the equation
// Ax + By + Cz + D = 0, where (A, B, C) is the normal and D is the
// offset from the origin. Points with a non-negative signed distance
// are on the inside. Planes are value types and never mutated.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// NewPlane creates a plane from the four coefficients.
func NewPlane(a, b, c, d float64) Plane {
	return Plane{Normal: math3d.V3(a, b, c), D: d}
}

// PlaneFromVec4 creates a plane from a coefficient row (a, b, c, d).
func PlaneFromVec4(v math3d.Vec4) Plane {
	return Plane{Normal: v.Vec3(), D: v.W}
}

// Vec4 returns the plane coefficients as a row (a, b, c, d).
func (p Plane) Vec4() math3d.Vec4 {
	return math3d.V4FromV3(p.Normal, p.D)
}

// SignedDistance returns the signed distance from the plane to a point.
// Positive = inside (same side as the normal), negative = outside.
func (p Plane) SignedDistance(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Normalized returns the plane scaled so its normal has unit length.
// A degenerate zero normal is returned unchanged.
func (p Plane) Normalized() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Scale(1.0 / l), D: p.D / l}
}

// Transform re-expresses the plane under the matrix m by
// right-multiplying the coefficient row: result = (a, b, c, d) * m.
// This is the direct product, NOT the inverse-transpose: given m that
// maps local points to the plane's current space, the result is the
// same half-space expressed in local coordinates. Callers own the
// transform direction.
func (p Plane) Transform(m math3d.Mat4) Plane {
	return PlaneFromVec4(m.MulRowVec4(p.Vec4()))
}

// String formats the plane coefficients for diagnostics.
func (p Plane) String() string {
	return fmt.Sprintf("plane(%g, %g, %g, %g)", p.Normal.X, p.Normal.Y, p.Normal.Z, p.D)
}
