package geom

import (
	"math"

	"github.com/taigrr/skewer/pkg/math3d"
)

// Sphere is a bounding sphere. The zero value is a valid point-sphere
// at the origin; an explicitly empty sphere has a negative radius.
type Sphere struct {
	Center math3d.Vec3
	Radius float64
}

// NewSphere creates a bounding sphere.
func NewSphere(center math3d.Vec3, radius float64) Sphere {
	return Sphere{Center: center, Radius: radius}
}

// EmptySphere returns an invalid sphere that bounds nothing.
func EmptySphere() Sphere {
	return Sphere{Radius: -1}
}

// Valid reports whether the sphere bounds anything.
func (s Sphere) Valid() bool {
	return s.Radius >= 0
}

// ExpandBySphere returns the smallest sphere enclosing both s and
// other. Merging with an invalid sphere returns the other operand.
func (s Sphere) ExpandBySphere(other Sphere) Sphere {
	if !other.Valid() {
		return s
	}
	if !s.Valid() {
		return other
	}

	d := other.Center.Sub(s.Center)
	dist := d.Len()

	// One sphere already contains the other.
	if dist+other.Radius <= s.Radius {
		return s
	}
	if dist+s.Radius <= other.Radius {
		return other
	}

	radius := (dist + s.Radius + other.Radius) / 2
	t := (radius - s.Radius) / dist
	return Sphere{Center: s.Center.Add(d.Scale(t)), Radius: radius}
}

// Transform maps the sphere through m. The radius is scaled by the
// longest basis vector so the result always encloses the transformed
// source sphere.
func (s Sphere) Transform(m math3d.Mat4) Sphere {
	if !s.Valid() {
		return s
	}
	sx := m.MulVec3Dir(math3d.V3(1, 0, 0)).Len()
	sy := m.MulVec3Dir(math3d.V3(0, 1, 0)).Len()
	sz := m.MulVec3Dir(math3d.V3(0, 0, 1)).Len()
	return Sphere{
		Center: m.MulVec3(s.Center),
		Radius: s.Radius * math.Max(sx, math.Max(sy, sz)),
	}
}

// SphereAroundPoints returns a bounding sphere for a point set, built
// around the bounding box center and tightened to the farthest point.
// Returns an empty sphere for no points.
func SphereAroundPoints(points []math3d.Vec3) Sphere {
	if len(points) == 0 {
		return EmptySphere()
	}
	box := AABBAroundPoints(points)
	center := box.Center()
	var r2 float64
	for _, p := range points {
		if d := p.Sub(center).LenSq(); d > r2 {
			r2 = d
		}
	}
	return Sphere{Center: center, Radius: math.Sqrt(r2)}
}
