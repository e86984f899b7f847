// Package scene provides the minimal retained scene graph that
// intersection traversals walk: groups, matrix transforms, and triangle
// geometry leaves, plus the camera and glTF loading.
package scene

import (
	"github.com/taigrr/skewer/pkg/geom"
	"github.com/taigrr/skewer/pkg/math3d"
)

// Visitor receives traversal callbacks as a scene is descended.
// PushNode/PopNode bracket every node; PushTransform/PopTransform
// bracket the children of transform nodes; Intersects lets the visitor
// prune subtrees by bounding sphere; Apply delivers geometry leaves.
type Visitor interface {
	PushNode(n Node)
	PopNode()
	Intersects(bound geom.Sphere) bool
	PushTransform(m math3d.Mat4) error
	PopTransform() error
	Apply(g *Geometry)
}

// Node is one element of the scene hierarchy. Bound returns the node's
// bounding sphere in the node's own coordinate frame; an invalid
// sphere means "unbounded, always descend".
type Node interface {
	Accept(v Visitor) error
	Bound() geom.Sphere
}

// Group is an interior node holding an ordered list of children.
type Group struct {
	Name     string
	Children []Node
}

// Add appends children to the group.
func (g *Group) Add(children ...Node) {
	g.Children = append(g.Children, children...)
}

// Bound returns the merged bound of all children.
func (g *Group) Bound() geom.Sphere {
	bound := geom.EmptySphere()
	for _, c := range g.Children {
		bound = bound.ExpandBySphere(c.Bound())
	}
	return bound
}

// Accept visits the group and, if the visitor accepts its bound,
// every child in order.
func (g *Group) Accept(v Visitor) error {
	v.PushNode(g)
	defer v.PopNode()

	if b := g.Bound(); b.Valid() && !v.Intersects(b) {
		return nil
	}
	for _, c := range g.Children {
		if err := c.Accept(v); err != nil {
			return err
		}
	}
	return nil
}

// MatrixTransform places its children in a new coordinate frame.
type MatrixTransform struct {
	Name     string
	Matrix   math3d.Mat4
	Children []Node
}

// NewMatrixTransform creates a transform node.
func NewMatrixTransform(name string, m math3d.Mat4, children ...Node) *MatrixTransform {
	return &MatrixTransform{Name: name, Matrix: m, Children: children}
}

// Add appends children to the transform.
func (t *MatrixTransform) Add(children ...Node) {
	t.Children = append(t.Children, children...)
}

// Bound returns the merged child bound mapped into the parent frame.
func (t *MatrixTransform) Bound() geom.Sphere {
	bound := geom.EmptySphere()
	for _, c := range t.Children {
		bound = bound.ExpandBySphere(c.Bound())
	}
	return bound.Transform(t.Matrix)
}

// Accept visits the transform, bracketing the children between
// PushTransform and PopTransform. A PushTransform failure (singular
// matrix) skips the subtree and propagates the error.
func (t *MatrixTransform) Accept(v Visitor) error {
	v.PushNode(t)
	defer v.PopNode()

	if b := t.Bound(); b.Valid() && !v.Intersects(b) {
		return nil
	}
	if err := v.PushTransform(t.Matrix); err != nil {
		return err
	}
	for _, c := range t.Children {
		if err := c.Accept(v); err != nil {
			// Keep the visitor's stacks balanced on the way out.
			_ = v.PopTransform()
			return err
		}
	}
	return v.PopTransform()
}
