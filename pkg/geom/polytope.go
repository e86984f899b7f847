package geom

import (
	"strings"

	"github.com/taigrr/skewer/pkg/math3d"
)

// Tolerance is the dead zone used for inside/outside classification and
// near-parallel rejection throughout the intersection math.
const Tolerance = 1e-10

// Polytope is a convex region defined as the intersection of
// half-spaces. Plane order is preserved by every operation; duplicate
// planes are harmless. A polytope is never mutated in place: moving it
// to another coordinate space always builds a fresh plane list.
type Polytope []Plane

// Transform re-expresses every plane of the polytope under m,
// producing a new polytope of the same cardinality and order.
func (p Polytope) Transform(m math3d.Mat4) Polytope {
	out := make(Polytope, len(p))
	for i, pl := range p {
		out[i] = pl.Transform(m)
	}
	return out
}

// ContainsPoint reports whether the point satisfies every half-space
// test within tolerance.
func (p Polytope) ContainsPoint(point math3d.Vec3) bool {
	for _, pl := range p {
		if pl.SignedDistance(point) < -Tolerance {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the sphere can overlap the
// polytope. A sphere entirely on the negative side of any one plane is
// rejected; everything else is conservatively accepted.
func (p Polytope) IntersectsSphere(s Sphere) bool {
	if !s.Valid() {
		return false
	}
	for _, pl := range p {
		if pl.SignedDistance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// ClipTriangle clips the triangle (v0, v1, v2) against every
// half-space of the polytope (Sutherland–Hodgman). The returned
// polygon is empty when the triangle lies entirely outside; otherwise
// it is the convex region of the triangle inside the polytope.
func (p Polytope) ClipTriangle(v0, v1, v2 math3d.Vec3) []math3d.Vec3 {
	poly := []math3d.Vec3{v0, v1, v2}
	for _, pl := range p {
		poly = clipPolygon(poly, pl)
		if len(poly) == 0 {
			return nil
		}
	}
	return poly
}

func clipPolygon(poly []math3d.Vec3, pl Plane) []math3d.Vec3 {
	out := make([]math3d.Vec3, 0, len(poly)+1)
	for i := range poly {
		cur := poly[i]
		next := poly[(i+1)%len(poly)]
		dc := pl.SignedDistance(cur)
		dn := pl.SignedDistance(next)

		if dc >= -Tolerance {
			out = append(out, cur)
		}
		// Edge crosses the plane: emit the crossing point.
		if (dc < 0) != (dn < 0) {
			t := dc / (dc - dn)
			out = append(out, cur.Lerp(next, t))
		}
	}
	return out
}

// PolytopeFromViewProjection extracts the six frustum planes from a
// combined view-projection matrix using the Gribb/Hartmann method.
// Plane order is left, right, bottom, top, near, far, with normals
// pointing inward, all normalized.
func PolytopeFromViewProjection(m math3d.Mat4) Polytope {
	// For column-major m, row i element j is at m[i + j*4].
	rows := [4]math3d.Vec4{
		{X: m[0], Y: m[4], Z: m[8], W: m[12]},
		{X: m[1], Y: m[5], Z: m[9], W: m[13]},
		{X: m[2], Y: m[6], Z: m[10], W: m[14]},
		{X: m[3], Y: m[7], Z: m[11], W: m[15]},
	}

	add := func(a, b math3d.Vec4) Plane {
		return PlaneFromVec4(math3d.V4(a.X+b.X, a.Y+b.Y, a.Z+b.Z, a.W+b.W)).Normalized()
	}
	sub := func(a, b math3d.Vec4) Plane {
		return PlaneFromVec4(math3d.V4(a.X-b.X, a.Y-b.Y, a.Z-b.Z, a.W-b.W)).Normalized()
	}

	return Polytope{
		add(rows[3], rows[0]), // left
		sub(rows[3], rows[0]), // right
		add(rows[3], rows[1]), // bottom
		sub(rows[3], rows[1]), // top
		add(rows[3], rows[2]), // near
		sub(rows[3], rows[2]), // far
	}
}

// String formats the polytope plane list for diagnostics.
func (p Polytope) String() string {
	var b strings.Builder
	b.WriteString("polytope{")
	for i, pl := range p {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pl.String())
	}
	b.WriteString("}")
	return b.String()
}
