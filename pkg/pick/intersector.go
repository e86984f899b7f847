// Package pick implements polytope and segment picking over triangle
// scenes. A PolytopeIntersector walks a scene graph as a
// scene.Visitor, maintaining per-transform frames of the pick volume,
// and collects an Intersection record for every triangle the volume
// touches.
package pick

import (
	"errors"
	"math"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/scene"
)

var (
	// ErrSingularTransform reports a transform node whose accumulated
	// matrix cannot be inverted.
	ErrSingularTransform = errors.New("pick: singular transform matrix")

	// ErrStackUnderflow reports a PopTransform with no matching push.
	ErrStackUnderflow = errors.New("pick: transform stack underflow")
)

// frame is the per-transform state of a traversal: the accumulated
// matrices plus the pick volume re-expressed in the current local
// coordinate frame. Frames are pushed and popped as a unit so the
// stacks can never fall out of step.
type frame struct {
	localToWorld math3d.Mat4
	worldToLocal math3d.Mat4
	polytope     geom.Polytope
	segment      geom.Segment
}

// PolytopeIntersector collects triangle hits inside a convex volume of
// half-spaces, or along a line segment when the volume degenerates to
// one. It implements scene.Visitor; run it with node.Accept.
//
// The zero value is not usable; construct with New, NewFromCamera, or
// NewFromSegment. A single intersector must not be shared between
// concurrent traversals.
type PolytopeIntersector struct {
	// Intersections is the append-only hit list, in discovery order.
	Intersections []*Intersection

	frames   []frame
	nodePath []scene.Node
	geometry *scene.Geometry

	// segmentMode selects pure segment-vs-triangle testing; hasSegment
	// reports whether a reference segment exists for hit ordering.
	segmentMode bool
	hasSegment  bool
}

// New creates an intersector for a polytope already expressed in world
// coordinates. Hits report Ratio 0: a bare polytope has no natural
// near-to-far direction.
func New(polytope geom.Polytope) *PolytopeIntersector {
	return &PolytopeIntersector{
		frames: []frame{{
			localToWorld: math3d.Identity(),
			worldToLocal: math3d.Identity(),
			polytope:     polytope,
		}},
	}
}

// NewFromSegment creates an intersector that tests triangles against
// the world-space line segment from start to end. Ratio is the hit's
// parameter along the segment.
func NewFromSegment(start, end math3d.Vec3) *PolytopeIntersector {
	return &PolytopeIntersector{
		frames: []frame{{
			localToWorld: math3d.Identity(),
			worldToLocal: math3d.Identity(),
			segment:      geom.Segment{Start: start, End: end},
		}},
		segmentMode: true,
		hasSegment:  true,
	}
}

// NewFromCamera creates an intersector for the window-space rectangle
// (xMin, yMin)..(xMax, yMax) seen through the camera. The rectangle is
// converted to normalized device coordinates via the camera viewport
// (passed through unchanged when the viewport has no size), extruded
// through the viewport depth range, and carried back through the
// projection and view matrices into a world-space polytope.
//
// A rectangle collapsed to a point degenerates to a line pick: the
// point is unprojected at the near and far depths and triangles are
// tested against that segment alone.
func NewFromCamera(camera *scene.Camera, xMin, yMin, xMax, yMax float64) *PolytopeIntersector {
	vp := camera.Viewport

	ndcXMin, ndcXMax := xMin, xMax
	if vp.Width > 0 {
		ndcXMin = 2.0*(xMin-vp.X)/vp.Width - 1.0
		ndcXMax = 2.0*(xMax-vp.X)/vp.Width - 1.0
	}

	// Window y grows downward, NDC y grows upward, so the bounds swap.
	ndcYMin, ndcYMax := yMin, yMax
	if vp.Height > 0 {
		ndcYMin = 1.0 - 2.0*(yMax-vp.Y)/vp.Height
		ndcYMax = 1.0 - 2.0*(yMin-vp.Y)/vp.Height
	}

	proj := camera.ProjectionMatrix()
	view := camera.ViewMatrix()
	reverseDepth := proj.Get(2, 2) > 0

	log.Debug("picking rectangle",
		"ndcXMin", ndcXMin, "ndcXMax", ndcXMax,
		"ndcYMin", ndcYMin, "ndcYMax", ndcYMax,
		"reverseDepth", reverseDepth)

	pi := &PolytopeIntersector{}

	// Reference segment: the rectangle center unprojected at the near
	// and far depths, used to order hits by Ratio.
	if inv, ok := proj.Mul(view).InverseOK(); ok {
		cx := (ndcXMin + ndcXMax) / 2.0
		cy := (ndcYMin + ndcYMax) / 2.0
		pi.hasSegment = true
		pi.frames = []frame{{
			localToWorld: math3d.Identity(),
			worldToLocal: math3d.Identity(),
			segment: geom.Segment{
				Start: inv.MulVec4(math3d.V4(cx, cy, vp.MinDepth, 1)).PerspectiveDivide(),
				End:   inv.MulVec4(math3d.V4(cx, cy, vp.MaxDepth, 1)).PerspectiveDivide(),
			},
		}}
	} else {
		pi.frames = []frame{{
			localToWorld: math3d.Identity(),
			worldToLocal: math3d.Identity(),
		}}
	}

	if xMin == xMax && yMin == yMax && pi.hasSegment {
		// Zero-area rectangle: the polytope is the segment itself.
		pi.segmentMode = true
		return pi
	}

	clipspace := geom.Polytope{
		geom.NewPlane(1.0, 0.0, 0.0, -ndcXMin),
		geom.NewPlane(-1.0, 0.0, 0.0, ndcXMax),
		geom.NewPlane(0.0, 1.0, 0.0, -ndcYMin),
		geom.NewPlane(0.0, -1.0, 0.0, ndcYMax),
	}
	if reverseDepth {
		clipspace = append(clipspace,
			geom.NewPlane(0.0, 0.0, 1.0, -vp.MaxDepth),
			geom.NewPlane(0.0, 0.0, -1.0, vp.MinDepth))
	} else {
		clipspace = append(clipspace,
			geom.NewPlane(0.0, 0.0, -1.0, vp.MaxDepth),
			geom.NewPlane(0.0, 0.0, 1.0, -vp.MinDepth))
	}

	// Plane rows right-multiply by the matrix that maps the target
	// space into the planes' space: clip planes through the projection
	// give eye-space planes, and those through the view matrix give
	// world-space planes.
	eyespace := clipspace.Transform(proj)
	worldspace := eyespace.Transform(view)

	log.Debug("clip space", "polytope", clipspace)
	log.Debug("eye space", "polytope", eyespace)
	log.Debug("world space", "polytope", worldspace)

	pi.frames[0].polytope = worldspace
	return pi
}

// Depth returns how many transforms are currently pushed.
func (pi *PolytopeIntersector) Depth() int {
	return len(pi.frames) - 1
}

// PushNode records a node on the current traversal path.
func (pi *PolytopeIntersector) PushNode(n scene.Node) {
	pi.nodePath = append(pi.nodePath, n)
}

// PopNode removes the most recently pushed node.
func (pi *PolytopeIntersector) PopNode() {
	pi.nodePath = pi.nodePath[:len(pi.nodePath)-1]
}

// PushTransform enters the coordinate frame of a transform node. The
// local pick volume is always re-derived from the world-space volume
// of the base frame, not from the parent frame, so repeated pushes do
// not accumulate error.
func (pi *PolytopeIntersector) PushTransform(m math3d.Mat4) error {
	top := &pi.frames[len(pi.frames)-1]
	localToWorld := top.localToWorld.Mul(m)
	worldToLocal, ok := localToWorld.InverseOK()
	if !ok {
		return ErrSingularTransform
	}

	log.Debug("push transform", "depth", len(pi.frames))

	base := &pi.frames[0]
	f := frame{
		localToWorld: localToWorld,
		worldToLocal: worldToLocal,
	}
	if base.polytope != nil {
		f.polytope = base.polytope.Transform(localToWorld)
	}
	if pi.hasSegment {
		f.segment = base.segment.Transform(worldToLocal)
	}
	pi.frames = append(pi.frames, f)
	return nil
}

// PopTransform leaves the current coordinate frame.
func (pi *PolytopeIntersector) PopTransform() error {
	if len(pi.frames) <= 1 {
		return ErrStackUnderflow
	}
	log.Debug("pop transform", "depth", len(pi.frames)-1)
	pi.frames = pi.frames[:len(pi.frames)-1]
	return nil
}

// Intersects reports whether the pick volume can touch the bounding
// sphere, expressed in the current local frame. Invalid spheres never
// intersect.
func (pi *PolytopeIntersector) Intersects(bound geom.Sphere) bool {
	if !bound.Valid() {
		return false
	}

	f := &pi.frames[len(pi.frames)-1]
	if !pi.segmentMode {
		return f.polytope.IntersectsSphere(bound)
	}

	// Quadratic segment-vs-sphere rejection.
	sm := f.segment.Start.Sub(bound.Center)
	c := sm.LenSq() - bound.Radius*bound.Radius
	if c < 0.0 {
		return true
	}

	se := f.segment.End.Sub(f.segment.Start)
	a := se.LenSq()
	if a == 0.0 {
		return false
	}
	b := sm.Dot(se) * 2.0
	d := b*b - 4.0*a*c
	if d < 0.0 {
		return false
	}

	d = math.Sqrt(d)
	div := 1.0 / (2.0 * a)
	r1 := (-b - d) * div
	r2 := (-b + d) * div

	if r1 <= 0.0 && r2 <= 0.0 {
		return false
	}
	if r1 >= 1.0 && r2 >= 1.0 {
		return false
	}
	return true
}

// Apply binds a geometry leaf and runs the draw-call test matching its
// indexed or non-indexed form.
func (pi *PolytopeIntersector) Apply(g *scene.Geometry) {
	pi.geometry = g
	if g.Indexed() {
		pi.IntersectDrawIndexed(g.FirstIndex, g.IndexCount, g.FirstInstance, g.InstanceCount)
	} else {
		pi.IntersectDraw(g.FirstVertex, g.VertexCount, g.FirstInstance, g.InstanceCount)
	}
}

// IntersectDraw tests a non-indexed triangle-list draw range of the
// bound geometry, reporting whether any hit was recorded. Vertices are
// consumed in threes with any remainder ignored. An instance count of
// zero or one still tests exactly one instance.
func (pi *PolytopeIntersector) IntersectDraw(firstVertex, vertexCount, firstInstance, instanceCount uint32) bool {
	previous := len(pi.Intersections)

	g := pi.geometry
	if g == nil || g.Topology != scene.TriangleList || vertexCount < 3 {
		return false
	}

	lastInstance := firstInstance + 1
	if instanceCount > 1 {
		lastInstance = firstInstance + instanceCount
	}
	endVertex := (firstVertex + vertexCount) / 3 * 3

	for instance := firstInstance; instance < lastInstance; instance++ {
		vertices := g.VertexArray(instance)
		if vertices == nil {
			return false
		}
		pi.testTriangles(vertices, instance, func(test func(i0, i1, i2 uint32)) {
			for i := firstVertex; i < endVertex; i += 3 {
				test(i, i+1, i+2)
			}
		})
	}

	return len(pi.Intersections) != previous
}

// IntersectDrawIndexed tests an indexed triangle-list draw range of
// the bound geometry, reporting whether any hit was recorded. Indices
// are consumed in threes with any remainder ignored; both 16-bit and
// 32-bit index arrays are supported.
func (pi *PolytopeIntersector) IntersectDrawIndexed(firstIndex, indexCount, firstInstance, instanceCount uint32) bool {
	previous := len(pi.Intersections)

	g := pi.geometry
	if g == nil || g.Topology != scene.TriangleList || indexCount < 3 {
		return false
	}

	lastInstance := firstInstance + 1
	if instanceCount > 1 {
		lastInstance = firstInstance + instanceCount
	}
	endIndex := (firstIndex + indexCount) / 3 * 3

	for instance := firstInstance; instance < lastInstance; instance++ {
		vertices := g.VertexArray(instance)
		if vertices == nil {
			continue
		}
		pi.testTriangles(vertices, instance, func(test func(i0, i1, i2 uint32)) {
			if g.Indices16 != nil {
				for i := firstIndex; i < endIndex; i += 3 {
					test(uint32(g.Indices16[i]), uint32(g.Indices16[i+1]), uint32(g.Indices16[i+2]))
				}
			} else if g.Indices32 != nil {
				for i := firstIndex; i < endIndex; i += 3 {
					test(g.Indices32[i], g.Indices32[i+1], g.Indices32[i+2])
				}
			}
		})
	}

	return len(pi.Intersections) != previous
}

// testTriangles runs the mode-appropriate triangle test over every
// index triple the iterate callback produces.
func (pi *PolytopeIntersector) testTriangles(vertices []math3d.Vec3, instance uint32, iterate func(test func(i0, i1, i2 uint32))) {
	f := &pi.frames[len(pi.frames)-1]

	if pi.segmentMode {
		ti := newTriangleIntersector(pi, f.segment, vertices)
		ti.instanceIndex = instance
		iterate(func(i0, i1, i2 uint32) {
			ti.intersect(i0, i1, i2)
		})
		return
	}

	iterate(func(i0, i1, i2 uint32) {
		pi.clipTriangle(f, vertices, i0, i1, i2, instance)
	})
}

// clipTriangle clips one triangle against the local polytope. A
// non-empty clip region is a hit, recorded at the region's centroid
// with barycentric coordinates recovered against the original
// triangle.
func (pi *PolytopeIntersector) clipTriangle(f *frame, vertices []math3d.Vec3, i0, i1, i2, instance uint32) bool {
	v0 := vertices[i0]
	v1 := vertices[i1]
	v2 := vertices[i2]

	region := f.polytope.ClipTriangle(v0, v1, v2)
	if len(region) == 0 {
		return false
	}

	centroid := math3d.Zero3()
	for _, p := range region {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1.0 / float64(len(region)))

	r0, r1, r2 := barycentric(v0, v1, v2, centroid)

	ratio := 0.0
	if pi.hasSegment {
		ratio = f.segment.ClosestParam(centroid)
	}

	pi.add(centroid, ratio, []IndexRatio{{i0, r0}, {i1, r1}, {i2, r2}}, instance)
	return true
}

// barycentric returns the weights of p with respect to the triangle
// (v0, v1, v2). A degenerate triangle collapses to the first vertex.
func barycentric(v0, v1, v2, p math3d.Vec3) (r0, r1, r2 float64) {
	e0 := v1.Sub(v0)
	e1 := v2.Sub(v0)
	ep := p.Sub(v0)

	d00 := e0.Dot(e0)
	d01 := e0.Dot(e1)
	d11 := e1.Dot(e1)
	d20 := ep.Dot(e0)
	d21 := ep.Dot(e1)

	denom := d00*d11 - d01*d01
	if math.Abs(denom) < geom.Tolerance {
		return 1.0, 0.0, 0.0
	}

	r1 = (d11*d20 - d01*d21) / denom
	r2 = (d00*d21 - d01*d20) / denom
	r0 = 1.0 - r1 - r2
	return r0, r1, r2
}

// add appends one hit record at a local-frame coordinate, snapshotting
// the node path, bound arrays, and accumulated transform.
func (pi *PolytopeIntersector) add(coord math3d.Vec3, ratio float64, indexRatios []IndexRatio, instanceIndex uint32) *Intersection {
	f := &pi.frames[len(pi.frames)-1]

	in := &Intersection{
		LocalIntersection: coord,
		WorldIntersection: f.localToWorld.MulVec3(coord),
		Ratio:             ratio,
		LocalToWorld:      f.localToWorld,
		NodePath:          slices.Clone(pi.nodePath),
		IndexRatios:       indexRatios,
		InstanceIndex:     instanceIndex,
	}
	if pi.geometry != nil {
		in.Arrays = pi.geometry.Arrays()
	}

	pi.Intersections = append(pi.Intersections, in)
	return in
}
