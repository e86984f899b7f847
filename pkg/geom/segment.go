package geom

import "github.com/taigrr/skewer/pkg/math3d"

// Segment is a directed line segment from Start to End.
type Segment struct {
	Start math3d.Vec3
	End   math3d.Vec3
}

// Transform maps both endpoints through m.
func (s Segment) Transform(m math3d.Mat4) Segment {
	return Segment{Start: m.MulVec3(s.Start), End: m.MulVec3(s.End)}
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.End.Sub(s.Start).Len()
}

// PointAt returns the point at parameter t (0 = Start, 1 = End).
func (s Segment) PointAt(t float64) math3d.Vec3 {
	return s.Start.Lerp(s.End, t)
}

// ClosestParam returns the parameter of the point on the segment's
// carrier line closest to p, clamped to [0, 1]. A zero-length segment
// reports 0.
func (s Segment) ClosestParam(p math3d.Vec3) float64 {
	d := s.End.Sub(s.Start)
	l2 := d.LenSq()
	if l2 == 0 {
		return 0
	}
	t := p.Sub(s.Start).Dot(d) / l2
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
