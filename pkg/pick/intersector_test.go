package pick

import (
	"errors"
	"math"
	"testing"

	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/scene"
)

func sphere(center math3d.Vec3, radius float64) geom.Sphere {
	return geom.NewSphere(center, radius)
}

// unitBox is the polytope bounding [-1,1]^3.
func unitBox() geom.Polytope {
	return geom.Polytope{
		geom.NewPlane(1, 0, 0, 1),
		geom.NewPlane(-1, 0, 0, 1),
		geom.NewPlane(0, 1, 0, 1),
		geom.NewPlane(0, -1, 0, 1),
		geom.NewPlane(0, 0, 1, 1),
		geom.NewPlane(0, 0, -1, 1),
	}
}

func smallTriangle(name string) *scene.Geometry {
	return scene.NewTriangleGeometry(name, []math3d.Vec3{
		math3d.V3(-0.5, -0.5, 0),
		math3d.V3(0.5, -0.5, 0),
		math3d.V3(0, 0.5, 0),
	})
}

func TestPolytopeHitInsideBox(t *testing.T) {
	tri := smallTriangle("tri")

	pi := New(unitBox())
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}
	in := pi.Intersections[0]

	if in.Ratio != 0 {
		t.Errorf("ratio = %v, want 0 for a bare polytope", in.Ratio)
	}
	if in.WorldIntersection != in.LocalIntersection {
		t.Errorf("world %v != local %v under identity", in.WorldIntersection, in.LocalIntersection)
	}

	sum := 0.0
	for _, ir := range in.IndexRatios {
		if ir.Ratio < -1e-9 || ir.Ratio > 1+1e-9 {
			t.Errorf("barycentric weight %v out of [0,1]", ir.Ratio)
		}
		sum += ir.Ratio
	}
	if !near(sum, 1) {
		t.Errorf("barycentric weights sum to %v, want 1", sum)
	}

	if len(in.NodePath) != 1 {
		t.Fatalf("node path length = %d, want 1", len(in.NodePath))
	}
	if in.NodePath[0] != scene.Node(tri) {
		t.Error("node path does not end at the hit geometry")
	}
	if len(in.Arrays) == 0 || in.Arrays[0].Name != "position" {
		t.Errorf("arrays = %v, want position first", in.Arrays)
	}
}

func TestPolytopeMissOutsideBox(t *testing.T) {
	tri := scene.NewTriangleGeometry("tri", []math3d.Vec3{
		math3d.V3(5, 5, 5),
		math3d.V3(6, 5, 5),
		math3d.V3(5, 6, 5),
	})

	pi := New(unitBox())
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 0 {
		t.Errorf("hit count = %d, want 0", len(pi.Intersections))
	}
}

func TestPolytopeHitThroughTransform(t *testing.T) {
	// The triangle sits at local origin; the transform carries it to
	// x=10. A polytope around x=10 must hit it, and the record must
	// report local vs world coordinates through the transform.
	tri := smallTriangle("tri")
	mt := scene.NewMatrixTransform("mt", math3d.Translate(math3d.V3(10, 0, 0)), tri)

	box := unitBox().Transform(math3d.Translate(math3d.V3(-10, 0, 0)))
	pi := New(box)
	if err := mt.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}
	in := pi.Intersections[0]

	if math.Abs(in.WorldIntersection.X-in.LocalIntersection.X-10) > 1e-9 {
		t.Errorf("world %v is not local %v translated by +10 in x", in.WorldIntersection, in.LocalIntersection)
	}
	if got := in.LocalToWorld.MulVec3(in.LocalIntersection); got.Sub(in.WorldIntersection).Len() > 1e-9 {
		t.Errorf("LocalToWorld does not map local to world: %v vs %v", got, in.WorldIntersection)
	}
	if len(in.NodePath) != 2 {
		t.Errorf("node path length = %d, want 2 (transform, geometry)", len(in.NodePath))
	}

	if pi.Depth() != 0 {
		t.Errorf("transform depth after traversal = %d, want 0", pi.Depth())
	}

	// The base-frame polytope is never altered by pushes: a second
	// traversal behaves identically.
	if err := mt.Accept(pi); err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if len(pi.Intersections) != 2 {
		t.Errorf("hit count after second traversal = %d, want 2", len(pi.Intersections))
	}
}

func TestNestedTransforms(t *testing.T) {
	tri := smallTriangle("tri")
	inner := scene.NewMatrixTransform("inner", math3d.Translate(math3d.V3(0, 2, 0)), tri)
	outer := scene.NewMatrixTransform("outer", math3d.Translate(math3d.V3(3, 0, 0)), inner)

	box := unitBox().Transform(math3d.Translate(math3d.V3(-3, -2, 0)))
	pi := New(box)
	if err := outer.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}
	in := pi.Intersections[0]
	want := in.LocalIntersection.Add(math3d.V3(3, 2, 0))
	if in.WorldIntersection.Sub(want).Len() > 1e-9 {
		t.Errorf("world intersection = %v, want %v", in.WorldIntersection, want)
	}
	if len(in.NodePath) != 3 {
		t.Errorf("node path length = %d, want 3", len(in.NodePath))
	}
}

func TestSingularTransform(t *testing.T) {
	tri := smallTriangle("tri")
	mt := scene.NewMatrixTransform("flat", math3d.Scale(math3d.V3(1, 1, 0)), tri)

	pi := New(unitBox())
	err := mt.Accept(pi)
	if !errors.Is(err, ErrSingularTransform) {
		t.Fatalf("Accept error = %v, want ErrSingularTransform", err)
	}
	if pi.Depth() != 0 {
		t.Errorf("transform depth after failed push = %d, want 0", pi.Depth())
	}
}

func TestPopTransformUnderflow(t *testing.T) {
	pi := New(unitBox())
	if err := pi.PopTransform(); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("PopTransform error = %v, want ErrStackUnderflow", err)
	}

	if err := pi.PushTransform(math3d.Translate(math3d.V3(1, 0, 0))); err != nil {
		t.Fatalf("PushTransform: %v", err)
	}
	if err := pi.PopTransform(); err != nil {
		t.Fatalf("balanced PopTransform: %v", err)
	}
	if err := pi.PopTransform(); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("PopTransform past base = %v, want ErrStackUnderflow", err)
	}
}

func TestInstanceCountRules(t *testing.T) {
	tests := []struct {
		name          string
		instanceCount uint32
		expectedHits  int
	}{
		{"zero still draws one", 0, 1},
		{"one draws one", 1, 1},
		{"two draws two", 2, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tri := smallTriangle("tri")
			tri.InstanceCount = tc.instanceCount

			pi := New(unitBox())
			if err := tri.Accept(pi); err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if len(pi.Intersections) != tc.expectedHits {
				t.Errorf("hit count = %d, want %d", len(pi.Intersections), tc.expectedHits)
			}
		})
	}
}

func TestPerInstanceVertexArrays(t *testing.T) {
	tri := smallTriangle("tri")
	tri.InstanceCount = 2
	tri.InstancePositions = [][]math3d.Vec3{
		nil, // instance 0 uses the shared positions
		{math3d.V3(-0.5, -0.5, 0.5), math3d.V3(0.5, -0.5, 0.5), math3d.V3(0, 0.5, 0.5)},
	}

	pi := New(unitBox())
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 2 {
		t.Fatalf("hit count = %d, want 2", len(pi.Intersections))
	}

	byInstance := map[uint32]*Intersection{}
	for _, in := range pi.Intersections {
		byInstance[in.InstanceIndex] = in
	}
	if byInstance[0] == nil || byInstance[1] == nil {
		t.Fatalf("expected hits on instances 0 and 1, got %v", byInstance)
	}
	if !near(byInstance[0].LocalIntersection.Z, 0) {
		t.Errorf("instance 0 hit z = %v, want 0", byInstance[0].LocalIntersection.Z)
	}
	if !near(byInstance[1].LocalIntersection.Z, 0.5) {
		t.Errorf("instance 1 hit z = %v, want 0.5", byInstance[1].LocalIntersection.Z)
	}
}

func TestIndexedDraws(t *testing.T) {
	positions := []math3d.Vec3{
		math3d.V3(-0.5, -0.5, 0),
		math3d.V3(0.5, -0.5, 0),
		math3d.V3(0, 0.5, 0),
		// A second triangle entirely outside the box.
		math3d.V3(5, 5, 5),
		math3d.V3(6, 5, 5),
		math3d.V3(5, 6, 5),
	}

	tests := []struct {
		name string
		geom *scene.Geometry
		hits int
	}{
		{
			"uint16 indices",
			&scene.Geometry{
				Positions: positions,
				Indices16:  []uint16{0, 1, 2, 3, 4, 5},
				Topology:   scene.TriangleList,
				IndexCount: 6,
			},
			1,
		},
		{
			"uint32 indices",
			&scene.Geometry{
				Positions: positions,
				Indices32:  []uint32{0, 1, 2},
				Topology:   scene.TriangleList,
				IndexCount: 3,
			},
			1,
		},
		{
			"remainder truncated",
			&scene.Geometry{
				Positions: positions,
				Indices16:  []uint16{0, 1, 2, 3, 4},
				Topology:   scene.TriangleList,
				IndexCount: 5,
			},
			1,
		},
		{
			"too few indices",
			&scene.Geometry{
				Positions: positions,
				Indices16:  []uint16{0, 1},
				Topology:   scene.TriangleList,
				IndexCount: 2,
			},
			0,
		},
		{
			"non-triangle topology",
			&scene.Geometry{
				Positions: positions,
				Indices16:  []uint16{0, 1, 2},
				Topology:   scene.LineList,
				IndexCount: 3,
			},
			0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pi := New(unitBox())
			if err := tc.geom.Accept(pi); err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if len(pi.Intersections) != tc.hits {
				t.Errorf("hit count = %d, want %d", len(pi.Intersections), tc.hits)
			}
		})
	}
}

func TestIntersectDrawReportsGrowth(t *testing.T) {
	tri := smallTriangle("tri")
	pi := New(unitBox())
	pi.geometry = tri

	if !pi.IntersectDraw(0, 3, 0, 1) {
		t.Error("IntersectDraw should report a recorded hit")
	}
	if pi.IntersectDraw(0, 2, 0, 1) {
		t.Error("IntersectDraw with vertexCount < 3 should report no hit")
	}
}

func TestPolytopeSpherePruning(t *testing.T) {
	pi := New(unitBox())

	if !pi.Intersects(sphere(math3d.V3(0, 0, 0), 0.5)) {
		t.Error("sphere inside the box should intersect")
	}
	if pi.Intersects(sphere(math3d.V3(10, 0, 0), 0.5)) {
		t.Error("sphere far outside the box should not intersect")
	}
	if pi.Intersects(geom.EmptySphere()) {
		t.Error("invalid sphere should not intersect")
	}
}

func TestNewFromCameraFullViewport(t *testing.T) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	cam.SetViewport(0, 0, 100, 100)

	tri := smallTriangle("tri")

	pi := NewFromCamera(cam, 0, 0, 100, 100)
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}

	in := pi.Intersections[0]
	if in.Ratio <= 0 || in.Ratio >= 1 {
		t.Errorf("ratio = %v, want within (0, 1)", in.Ratio)
	}
}

func TestNewFromCameraSubRectangle(t *testing.T) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	cam.SetViewport(0, 0, 100, 100)

	tri := smallTriangle("tri")

	// A rectangle in the far corner of the screen misses a triangle at
	// the center.
	pi := NewFromCamera(cam, 0, 0, 10, 10)
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 0 {
		t.Errorf("corner rectangle hit count = %d, want 0", len(pi.Intersections))
	}

	// A rectangle around the screen center hits it.
	pi = NewFromCamera(cam, 40, 40, 60, 60)
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 1 {
		t.Errorf("center rectangle hit count = %d, want 1", len(pi.Intersections))
	}
}

func TestNewFromCameraPointPick(t *testing.T) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	cam.SetViewport(0, 0, 100, 100)

	tri := smallTriangle("tri")

	// A zero-area rectangle degenerates to a segment through the
	// scene; a click at the screen center hits the triangle.
	pi := NewFromCamera(cam, 50, 50, 50, 50)
	if !pi.segmentMode {
		t.Fatal("zero-area rectangle should select segment mode")
	}
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}

	in := pi.Intersections[0]
	if in.WorldIntersection.Sub(math3d.V3(0, 0, 0)).Len() > 1e-6 {
		t.Errorf("center click hit %v, want the origin", in.WorldIntersection)
	}
}

func TestNewFromCameraZeroViewportPassthrough(t *testing.T) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	// Viewport left at zero size: rectangle coordinates are taken as
	// NDC directly.

	tri := smallTriangle("tri")

	pi := NewFromCamera(cam, -1, -1, 1, 1)
	if err := tri.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 1 {
		t.Errorf("hit count = %d, want 1", len(pi.Intersections))
	}
}

func BenchmarkPolytopePick(b *testing.B) {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	cam.SetViewport(0, 0, 100, 100)

	// A grid of triangles, roughly half inside the pick rectangle.
	root := &scene.Group{Name: "root"}
	for i := range 32 {
		x := float64(i%8)*0.5 - 2
		y := float64(i/8)*0.5 - 1
		root.Add(scene.NewTriangleGeometry("tri", []math3d.Vec3{
			math3d.V3(x, y, 0),
			math3d.V3(x+0.4, y, 0),
			math3d.V3(x, y+0.4, 0),
		}))
	}

	for b.Loop() {
		pi := NewFromCamera(cam, 25, 25, 75, 75)
		if err := root.Accept(pi); err != nil {
			b.Fatal(err)
		}
	}
}
