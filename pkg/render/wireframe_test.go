package render

import (
	"testing"

	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/pick"
	"github.com/taigrr/skewer/pkg/scene"
)

func testScene() (*scene.Group, *scene.Geometry) {
	tri := scene.NewTriangleGeometry("tri", []math3d.Vec3{
		math3d.V3(-1, -1, 0),
		math3d.V3(1, -1, 0),
		math3d.V3(0, 1, 0),
	})
	root := &scene.Group{Name: "root"}
	root.Add(tri)
	return root, tri
}

func testCamera() *scene.Camera {
	cam := scene.NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 5))
	cam.SetAspectRatio(1)
	return cam
}

func countNonBlack(fb *Framebuffer) int {
	n := 0
	for _, p := range fb.Pixels {
		if p != (Color{}) {
			n++
		}
	}
	return n
}

func TestDrawSceneRendersEdges(t *testing.T) {
	root, _ := testScene()
	fb := NewFramebuffer(80, 48)
	w := NewWireframe(testCamera(), fb)

	if err := w.DrawScene(root, ColorWire, nil); err != nil {
		t.Fatalf("DrawScene: %v", err)
	}
	if countNonBlack(fb) == 0 {
		t.Error("wireframe left the framebuffer empty")
	}
}

func TestDrawSceneCullsOffscreenGeometry(t *testing.T) {
	tri := scene.NewTriangleGeometry("far", []math3d.Vec3{
		math3d.V3(1000, 1000, 0),
		math3d.V3(1001, 1000, 0),
		math3d.V3(1000, 1001, 0),
	})
	fb := NewFramebuffer(80, 48)
	w := NewWireframe(testCamera(), fb)

	if err := w.DrawScene(tri, ColorWire, nil); err != nil {
		t.Fatalf("DrawScene: %v", err)
	}
	if countNonBlack(fb) != 0 {
		t.Error("offscreen geometry drew pixels")
	}
}

func TestHighlightsFromIntersections(t *testing.T) {
	root, tri := testScene()

	pi := pick.NewFromSegment(math3d.V3(0, 0, 5), math3d.V3(0, 0, -5))
	if err := root.Accept(pi); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(pi.Intersections) != 1 {
		t.Fatalf("hit count = %d, want 1", len(pi.Intersections))
	}

	h := HighlightsFromIntersections(pi.Intersections)
	if len(h) != 1 {
		t.Fatalf("highlight geometry count = %d, want 1", len(h))
	}
	if !h[tri][TriangleKey{0, 1, 2}] {
		t.Errorf("triangle (0,1,2) not highlighted: %v", h[tri])
	}
}

func TestDrawRectOutlineNormalizesNegativeExtents(t *testing.T) {
	a := NewFramebuffer(20, 20)
	b := NewFramebuffer(20, 20)

	a.DrawRectOutline(5, 5, 10, 8, ColorMarquee)
	b.DrawRectOutline(15, 13, -10, -8, ColorMarquee)

	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("pixel %d differs between forward and backward drag", i)
		}
	}
}
