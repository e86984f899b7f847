package pick

import (
	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
)

// triangleIntersector tests triangles of one vertex array against a
// line segment using the Moller-Trumbore algorithm. The test is
// two-sided: front-facing and back-facing triangles both hit, with the
// determinant sign selecting the comparison branch.
type triangleIntersector struct {
	intersector *PolytopeIntersector

	start    math3d.Vec3
	dir      math3d.Vec3 // normalized direction
	length   float64
	invLen   float64
	vertices []math3d.Vec3

	instanceIndex uint32
}

func newTriangleIntersector(pi *PolytopeIntersector, seg geom.Segment, vertices []math3d.Vec3) *triangleIntersector {
	d := seg.End.Sub(seg.Start)
	length := d.Len()
	invLen := 0.0
	if length != 0 {
		invLen = 1.0 / length
	}
	return &triangleIntersector{
		intersector: pi,
		start:       seg.Start,
		dir:         d.Scale(invLen),
		length:      length,
		invLen:      invLen,
		vertices:    vertices,
	}
}

// intersect tests one triangle and records a hit on the intersector.
// Reports whether a hit was recorded.
func (ti *triangleIntersector) intersect(i0, i1, i2 uint32) bool {
	v0 := ti.vertices[i0]
	v1 := ti.vertices[i1]
	v2 := ti.vertices[i2]

	T := ti.start.Sub(v0)
	E2 := v2.Sub(v0)
	E1 := v1.Sub(v0)

	P := ti.dir.Cross(E2)
	det := P.Dot(E1)

	var r, r0, r1, r2 float64

	switch {
	case det > geom.Tolerance:
		u := P.Dot(T)
		if u < 0.0 || u > det {
			return false
		}

		Q := T.Cross(E1)
		v := Q.Dot(ti.dir)
		if v < 0.0 || v > det {
			return false
		}
		if (u + v) > det {
			return false
		}

		invDet := 1.0 / det
		t := Q.Dot(E2) * invDet
		if t < 0.0 || t > ti.length {
			return false
		}

		u *= invDet
		v *= invDet

		r0 = 1.0 - u - v
		r1 = u
		r2 = v
		r = t * ti.invLen

	case det < -geom.Tolerance:
		u := P.Dot(T)
		if u > 0.0 || u < det {
			return false
		}

		Q := T.Cross(E1)
		v := Q.Dot(ti.dir)
		if v > 0.0 || v < det {
			return false
		}
		if (u + v) < det {
			return false
		}

		invDet := 1.0 / det
		t := Q.Dot(E2) * invDet
		if t < 0.0 || t > ti.length {
			return false
		}

		u *= invDet
		v *= invDet

		r0 = 1.0 - u - v
		r1 = u
		r2 = v
		r = t * ti.invLen

	default:
		// Segment parallel to (or in) the triangle plane.
		return false
	}

	intersection := v0.Scale(r0).Add(v1.Scale(r1)).Add(v2.Scale(r2))
	ti.intersector.add(intersection, r, []IndexRatio{{i0, r0}, {i1, r1}, {i2, r2}}, ti.instanceIndex)

	return true
}
