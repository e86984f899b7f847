package render

import (
	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/pick"
	"github.com/taigrr/skewer/pkg/scene"
)

// TriangleKey identifies one triangle of a geometry by its three
// vertex indices.
type TriangleKey [3]uint32

// Highlights names the triangles a pick run touched, keyed by the
// geometry they belong to.
type Highlights map[*scene.Geometry]map[TriangleKey]bool

// HighlightsFromIntersections builds a highlight set from pick
// records. Records whose node path does not end at a geometry are
// skipped.
func HighlightsFromIntersections(hits []*pick.Intersection) Highlights {
	h := Highlights{}
	for _, in := range hits {
		if len(in.NodePath) == 0 || len(in.IndexRatios) != 3 {
			continue
		}
		g, ok := in.NodePath[len(in.NodePath)-1].(*scene.Geometry)
		if !ok {
			continue
		}
		key := TriangleKey{in.IndexRatios[0].Index, in.IndexRatios[1].Index, in.IndexRatios[2].Index}
		if h[g] == nil {
			h[g] = map[TriangleKey]bool{}
		}
		h[g][key] = true
	}
	return h
}

// Wireframe renders scene graphs as 3D wireframes.
type Wireframe struct {
	camera *scene.Camera
	fb     *Framebuffer
}

// NewWireframe creates a new wireframe renderer.
func NewWireframe(camera *scene.Camera, fb *Framebuffer) *Wireframe {
	return &Wireframe{
		camera: camera,
		fb:     fb,
	}
}

// DrawLine3D draws a line in 3D space.
func (w *Wireframe) DrawLine3D(p1, p2 math3d.Vec3, color Color) {
	// Project both endpoints
	x1, y1, _, vis1 := w.camera.WorldToScreen(p1, w.fb.Width, w.fb.Height)
	x2, y2, _, vis2 := w.camera.WorldToScreen(p2, w.fb.Width, w.fb.Height)

	// Simple clipping: only draw if at least one point is visible
	// (proper line clipping would be more complex)
	if !vis1 && !vis2 {
		return
	}

	// Draw the line
	w.fb.DrawLine(int(x1), int(y1), int(x2), int(y2), color)
}

// DrawScene walks the graph and draws every triangle geometry as
// edges, accumulating transforms along the way. Triangles named by the
// highlight set are drawn in the highlight color over the base color.
// Subtrees whose bound falls outside the view frustum are skipped.
func (w *Wireframe) DrawScene(root scene.Node, base Color, highlights Highlights) error {
	v := &wireVisitor{
		w:        w,
		frustum:  geom.PolytopeFromViewProjection(w.camera.ViewProjectionMatrix()),
		matrices: []math3d.Mat4{math3d.Identity()},

		base:       base,
		highlight:  ColorHighlight,
		highlights: highlights,
	}
	return root.Accept(v)
}

// wireVisitor is the scene.Visitor that does the drawing.
type wireVisitor struct {
	w        *Wireframe
	frustum  geom.Polytope
	matrices []math3d.Mat4

	base       Color
	highlight  Color
	highlights Highlights
}

func (v *wireVisitor) PushNode(n scene.Node) {}
func (v *wireVisitor) PopNode()              {}

func (v *wireVisitor) Intersects(bound geom.Sphere) bool {
	world := bound.Transform(v.matrices[len(v.matrices)-1])
	return v.frustum.IntersectsSphere(world)
}

func (v *wireVisitor) PushTransform(m math3d.Mat4) error {
	top := v.matrices[len(v.matrices)-1]
	v.matrices = append(v.matrices, top.Mul(m))
	return nil
}

func (v *wireVisitor) PopTransform() error {
	if len(v.matrices) <= 1 {
		return nil
	}
	v.matrices = v.matrices[:len(v.matrices)-1]
	return nil
}

func (v *wireVisitor) Apply(g *scene.Geometry) {
	if g.Topology != scene.TriangleList {
		return
	}
	localToWorld := v.matrices[len(v.matrices)-1]
	marked := v.highlights[g]

	lastInstance := g.FirstInstance + 1
	if g.InstanceCount > 1 {
		lastInstance = g.FirstInstance + g.InstanceCount
	}

	for instance := g.FirstInstance; instance < lastInstance; instance++ {
		vertices := g.VertexArray(instance)
		if vertices == nil {
			continue
		}
		v.drawTriangles(g, vertices, localToWorld, marked)
	}
}

func (v *wireVisitor) drawTriangles(g *scene.Geometry, vertices []math3d.Vec3, localToWorld math3d.Mat4, marked map[TriangleKey]bool) {
	draw := func(i0, i1, i2 uint32) {
		color := v.base
		if marked[TriangleKey{i0, i1, i2}] {
			color = v.highlight
		}
		p0 := localToWorld.MulVec3(vertices[i0])
		p1 := localToWorld.MulVec3(vertices[i1])
		p2 := localToWorld.MulVec3(vertices[i2])
		v.w.DrawLine3D(p0, p1, color)
		v.w.DrawLine3D(p1, p2, color)
		v.w.DrawLine3D(p2, p0, color)
	}

	switch {
	case g.Indices16 != nil:
		end := (g.FirstIndex + g.IndexCount) / 3 * 3
		for i := g.FirstIndex; i < end; i += 3 {
			draw(uint32(g.Indices16[i]), uint32(g.Indices16[i+1]), uint32(g.Indices16[i+2]))
		}
	case g.Indices32 != nil:
		end := (g.FirstIndex + g.IndexCount) / 3 * 3
		for i := g.FirstIndex; i < end; i += 3 {
			draw(g.Indices32[i], g.Indices32[i+1], g.Indices32[i+2])
		}
	default:
		end := (g.FirstVertex + g.VertexCount) / 3 * 3
		for i := g.FirstVertex; i < end; i += 3 {
			draw(i, i+1, i+2)
		}
	}
}

// DrawAxes draws the coordinate axes at the origin.
func (w *Wireframe) DrawAxes(length float64) {
	origin := math3d.Zero3()
	w.DrawLine3D(origin, math3d.V3(length, 0, 0), ColorRed)   // X axis
	w.DrawLine3D(origin, math3d.V3(0, length, 0), ColorGreen) // Y axis
	w.DrawLine3D(origin, math3d.V3(0, 0, length), ColorBlue)  // Z axis
}

// DrawGrid draws a grid on the XZ plane at y=0.
func (w *Wireframe) DrawGrid(size, step float64, color Color) {
	half := size / 2
	for x := -half; x <= half; x += step {
		w.DrawLine3D(math3d.V3(x, 0, -half), math3d.V3(x, 0, half), color)
	}
	for z := -half; z <= half; z += step {
		w.DrawLine3D(math3d.V3(-half, 0, z), math3d.V3(half, 0, z), color)
	}
}

// DrawPoint draws a point as a small cross, used to mark hit
// coordinates.
func (w *Wireframe) DrawPoint(pos math3d.Vec3, size float64, color Color) {
	halfSize := size / 2
	w.DrawLine3D(
		math3d.V3(pos.X-halfSize, pos.Y, pos.Z),
		math3d.V3(pos.X+halfSize, pos.Y, pos.Z),
		color,
	)
	w.DrawLine3D(
		math3d.V3(pos.X, pos.Y-halfSize, pos.Z),
		math3d.V3(pos.X, pos.Y+halfSize, pos.Z),
		color,
	)
	w.DrawLine3D(
		math3d.V3(pos.X, pos.Y, pos.Z-halfSize),
		math3d.V3(pos.X, pos.Y, pos.Z+halfSize),
		color,
	)
}
