package scene

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/skewer/pkg/math3d"
)

// ErrUnsupportedFormat reports glTF content the loader cannot
// represent, such as external buffers or unknown accessor layouts.
var ErrUnsupportedFormat = errors.New("scene: unsupported gltf format")

// LoadGLTF loads a glTF or GLB file into a scene graph. glTF scene
// nodes become Groups or MatrixTransforms and each mesh primitive
// becomes one Geometry leaf, preserving indexed vs non-indexed form.
// Non-triangle primitives are skipped.
func LoadGLTF(path string) (*Group, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	// One group of Geometry leaves per document mesh, shared by every
	// scene node that references the mesh.
	meshes := make([]*Group, len(doc.Meshes))
	for i, m := range doc.Meshes {
		mg, err := loadMesh(doc, m)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		meshes[i] = mg
	}

	root := &Group{Name: filepath.Base(path)}

	if len(doc.Scenes) == 0 {
		// No scene description: flat list of meshes.
		for _, mg := range meshes {
			root.Add(mg)
		}
		return root, nil
	}

	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
		n, err := loadNode(doc, meshes, nodeIdx)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

func loadNode(doc *gltf.Document, meshes []*Group, idx int) (Node, error) {
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	src := doc.Nodes[idx]

	var children []Node
	if src.Mesh != nil {
		if *src.Mesh < 0 || *src.Mesh >= len(meshes) {
			return nil, fmt.Errorf("node %q: mesh index %d out of range", src.Name, *src.Mesh)
		}
		children = append(children, meshes[*src.Mesh])
	}
	for _, ci := range src.Children {
		c, err := loadNode(doc, meshes, ci)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	m := nodeMatrix(src)
	if m == math3d.Identity() {
		return &Group{Name: src.Name, Children: children}, nil
	}
	return &MatrixTransform{Name: src.Name, Matrix: m, Children: children}, nil
}

// nodeMatrix returns the node's local transform: the explicit matrix
// when present, otherwise composed translation * rotation * scale.
// glTF matrices are column-major, matching math3d.Mat4 directly.
func nodeMatrix(n *gltf.Node) math3d.Mat4 {
	var m math3d.Mat4
	copy(m[:], n.Matrix[:])
	if m != (math3d.Mat4{}) && m != math3d.Identity() {
		return m
	}

	t := math3d.Translate(math3d.V3(n.Translation[0], n.Translation[1], n.Translation[2]))
	r := math3d.FromQuat(n.Rotation[0], n.Rotation[1], n.Rotation[2], n.Rotation[3])
	s := math3d.Scale(math3d.V3(n.Scale[0], n.Scale[1], n.Scale[2]))
	return t.Mul(r).Mul(s)
}

func loadMesh(doc *gltf.Document, m *gltf.Mesh) (*Group, error) {
	mg := &Group{Name: m.Name}

	for pi, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc).
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := readVec3Accessor(doc, posIdx)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}

		g := &Geometry{
			Name:          fmt.Sprintf("%s/%d", m.Name, pi),
			Positions:     positions,
			Topology:      TriangleList,
			InstanceCount: 1,
		}

		if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
			g.Normals, err = readVec3Accessor(doc, normIdx)
			if err != nil {
				return nil, fmt.Errorf("read normals: %w", err)
			}
		}
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			g.UVs, err = readVec2Accessor(doc, uvIdx)
			if err != nil {
				return nil, fmt.Errorf("read uvs: %w", err)
			}
		}

		if prim.Indices != nil {
			idx16, idx32, err := readIndices(doc, *prim.Indices)
			if err != nil {
				return nil, fmt.Errorf("read indices: %w", err)
			}
			g.Indices16 = idx16
			g.Indices32 = idx32
			g.IndexCount = uint32(len(idx16) + len(idx32))
		} else {
			g.VertexCount = uint32(len(positions))
		}

		mg.Add(g)
	}

	return mg, nil
}

// readVec3Accessor reads Vec3 data from a glTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("%w: expected VEC3, got %v", ErrUnsupportedFormat, accessor.Type)
	}

	data, stride, err := accessorBytes(doc, accessor, 12)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec3, accessor.Count)
	for i := range accessor.Count {
		offset := i * stride
		result[i] = math3d.V3(
			float64(readFloat32(data[offset:])),
			float64(readFloat32(data[offset+4:])),
			float64(readFloat32(data[offset+8:])),
		)
	}
	return result, nil
}

// readVec2Accessor reads Vec2 data from a glTF accessor.
func readVec2Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec2, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("%w: expected VEC2, got %v", ErrUnsupportedFormat, accessor.Type)
	}

	data, stride, err := accessorBytes(doc, accessor, 8)
	if err != nil {
		return nil, err
	}

	result := make([]math3d.Vec2, accessor.Count)
	for i := range accessor.Count {
		offset := i * stride
		result[i] = math3d.V2(
			float64(readFloat32(data[offset:])),
			float64(readFloat32(data[offset+4:])),
		)
	}
	return result, nil
}

// readIndices reads an index accessor, preserving the 16-bit vs 32-bit
// distinction (8-bit indices are widened to 16).
func readIndices(doc *gltf.Document, accessorIdx int) ([]uint16, []uint32, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorScalar {
		return nil, nil, fmt.Errorf("%w: expected SCALAR indices, got %v", ErrUnsupportedFormat, accessor.Type)
	}

	var componentSize int
	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		componentSize = 1
	case gltf.ComponentUshort:
		componentSize = 2
	case gltf.ComponentUint:
		componentSize = 4
	default:
		return nil, nil, fmt.Errorf("%w: index component type %v", ErrUnsupportedFormat, accessor.ComponentType)
	}

	data, stride, err := accessorBytes(doc, accessor, componentSize)
	if err != nil {
		return nil, nil, err
	}

	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		out := make([]uint16, accessor.Count)
		for i := range accessor.Count {
			out[i] = uint16(data[i*stride])
		}
		return out, nil, nil
	case gltf.ComponentUshort:
		out := make([]uint16, accessor.Count)
		for i := range accessor.Count {
			offset := i * stride
			out[i] = uint16(data[offset]) | uint16(data[offset+1])<<8
		}
		return out, nil, nil
	default:
		out := make([]uint32, accessor.Count)
		for i := range accessor.Count {
			offset := i * stride
			out[i] = uint32(data[offset]) |
				uint32(data[offset+1])<<8 |
				uint32(data[offset+2])<<16 |
				uint32(data[offset+3])<<24
		}
		return nil, out, nil
	}
}

// accessorBytes resolves an accessor to its backing bytes and element
// stride. Only embedded (GLB) buffers are supported.
func accessorBytes(doc *gltf.Document, accessor *gltf.Accessor, defaultStride int) ([]byte, int, error) {
	if accessor.BufferView == nil {
		return nil, 0, fmt.Errorf("accessor has no buffer view")
	}

	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	if buffer.URI != "" {
		return nil, 0, fmt.Errorf("%w: external buffers", ErrUnsupportedFormat)
	}
	if buffer.Data == nil {
		return nil, 0, fmt.Errorf("buffer has no data")
	}

	stride := bufferView.ByteStride
	if stride == 0 {
		stride = defaultStride
	}

	start := bufferView.ByteOffset + accessor.ByteOffset
	end := start + (accessor.Count-1)*stride + defaultStride
	if start < 0 || end > len(buffer.Data) {
		return nil, 0, fmt.Errorf("accessor range [%d:%d] exceeds buffer of %d bytes", start, end, len(buffer.Data))
	}
	return buffer.Data[start:end], stride, nil
}

// readFloat32 reads a little-endian float32.
func readFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
