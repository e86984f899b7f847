package scene

import (
	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
)

// Topology describes how a draw call assembles primitives from its
// vertex or index range.
type Topology int

const (
	TriangleList Topology = iota
	LineList
	PointList
)

// Array is one vertex attribute bound to a draw call: a name and the
// backing slice ([]math3d.Vec3 or []math3d.Vec2). Array values are
// slice headers; the backing data is shared with the geometry.
type Array struct {
	Name string
	Data any
}

// Geometry is a leaf node holding one draw call's worth of vertex and
// index data. Either Indices16 or Indices32 may be set (not both);
// with neither set the draw is non-indexed.
type Geometry struct {
	Name string

	Positions []math3d.Vec3
	Normals   []math3d.Vec3
	UVs       []math3d.Vec2

	Indices16 []uint16
	Indices32 []uint32

	Topology Topology

	// Draw range. Non-indexed draws use FirstVertex/VertexCount,
	// indexed draws use FirstIndex/IndexCount.
	FirstVertex uint32
	VertexCount uint32
	FirstIndex  uint32
	IndexCount  uint32

	// Instance range. InstanceCount <= 1 still draws one instance.
	FirstInstance uint32
	InstanceCount uint32

	// InstancePositions optionally overrides the position array per
	// instance index; nil entries and out-of-range instances fall back
	// to Positions.
	InstancePositions [][]math3d.Vec3

	bound    geom.Sphere
	boundSet bool
}

// NewTriangleGeometry creates a non-indexed triangle-list geometry
// over the whole position array, drawn once.
func NewTriangleGeometry(name string, positions []math3d.Vec3) *Geometry {
	return &Geometry{
		Name:          name,
		Positions:     positions,
		Topology:      TriangleList,
		VertexCount:   uint32(len(positions)),
		InstanceCount: 1,
	}
}

// Indexed reports whether the geometry carries an index array.
func (g *Geometry) Indexed() bool {
	return len(g.Indices16) > 0 || len(g.Indices32) > 0
}

// VertexArray returns the position array for one instance. The default
// is the shared Positions array; instanced geometry may provide
// per-instance arrays.
func (g *Geometry) VertexArray(instance uint32) []math3d.Vec3 {
	if int(instance) < len(g.InstancePositions) {
		if arr := g.InstancePositions[instance]; arr != nil {
			return arr
		}
	}
	return g.Positions
}

// Arrays returns the attribute arrays active for this draw call, for
// capture in intersection records.
func (g *Geometry) Arrays() []Array {
	arrays := make([]Array, 0, 3)
	if g.Positions != nil {
		arrays = append(arrays, Array{Name: "position", Data: g.Positions})
	}
	if g.Normals != nil {
		arrays = append(arrays, Array{Name: "normal", Data: g.Normals})
	}
	if g.UVs != nil {
		arrays = append(arrays, Array{Name: "uv", Data: g.UVs})
	}
	return arrays
}

// Bound returns the bounding sphere of the base position array,
// computed once and cached.
func (g *Geometry) Bound() geom.Sphere {
	if !g.boundSet {
		g.bound = geom.SphereAroundPoints(g.Positions)
		g.boundSet = true
	}
	return g.bound
}

// InvalidateBound drops the cached bound after position edits.
func (g *Geometry) InvalidateBound() {
	g.boundSet = false
}

// Accept delivers the geometry to the visitor if its bound passes.
func (g *Geometry) Accept(v Visitor) error {
	v.PushNode(g)
	defer v.PopNode()

	if b := g.Bound(); b.Valid() && !v.Intersects(b) {
		return nil
	}
	v.Apply(g)
	return nil
}

// TriangleCount returns the number of whole triangles in the draw
// range (remainder truncated). Zero for non-triangle topologies.
func (g *Geometry) TriangleCount() uint32 {
	if g.Topology != TriangleList {
		return 0
	}
	if g.Indexed() {
		return g.IndexCount / 3
	}
	return g.VertexCount / 3
}
