package pick

import (
	"fmt"
	"strings"

	"github.com/taigrr/skewer/pkg/math3d"
	"github.com/taigrr/skewer/pkg/scene"
)

// IndexRatio pairs one vertex index of a hit triangle with its
// barycentric weight. Every hit carries three entries whose ratios
// sum to one.
type IndexRatio struct {
	Index uint32
	Ratio float64
}

// Intersection is one triangle hit produced during a traversal.
// Records are immutable snapshots: NodePath, Arrays, and IndexRatios
// are freshly allocated per record, though the attribute data the
// Arrays entries point at is shared with the scene and must not be
// mutated mid-traversal.
type Intersection struct {
	// LocalIntersection is the hit point in the geometry's own frame;
	// WorldIntersection is the same point through LocalToWorld.
	LocalIntersection math3d.Vec3
	WorldIntersection math3d.Vec3

	// Ratio orders hits along the pick direction: 0 at the near end of
	// the reference segment, 1 at the far end. Zero when the
	// intersector carries no reference segment.
	Ratio float64

	// LocalToWorld is the accumulated transform at the moment the hit
	// was recorded.
	LocalToWorld math3d.Mat4

	// NodePath is the chain of scene nodes from the root down to the
	// geometry that produced the hit.
	NodePath []scene.Node

	// Arrays are the attribute arrays bound to the hit draw call.
	Arrays []scene.Array

	// IndexRatios holds the triangle's vertex indices with their
	// barycentric weights at the hit point.
	IndexRatios []IndexRatio

	// InstanceIndex identifies which instance of an instanced draw was
	// hit.
	InstanceIndex uint32
}

// String formats the record for diagnostics and the CLI hit listing.
func (in *Intersection) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hit world=(%.4f, %.4f, %.4f) local=(%.4f, %.4f, %.4f) ratio=%.4f instance=%d",
		in.WorldIntersection.X, in.WorldIntersection.Y, in.WorldIntersection.Z,
		in.LocalIntersection.X, in.LocalIntersection.Y, in.LocalIntersection.Z,
		in.Ratio, in.InstanceIndex)
	if len(in.IndexRatios) > 0 {
		b.WriteString(" indices=[")
		for i, ir := range in.IndexRatios {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%d:%.3f", ir.Index, ir.Ratio)
		}
		b.WriteString("]")
	}
	return b.String()
}
