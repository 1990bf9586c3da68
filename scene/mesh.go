package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"city-viewer/core"
)

// DrawMode controls the primitive type used when rendering a mesh.
type DrawMode int

const (
	DrawTriangles DrawMode = iota // default
	DrawPoints
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that any Extend call will replace.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Valid reports whether the box contains at least one point.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Extend grows the box to include p.
func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	if !o.Valid() {
		return b
	}
	if !b.Valid() {
		return o
	}
	return b.Extend(o.Min).Extend(o.Max)
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Expand grows the box by d on every side.
func (b AABB) Expand(d float32) AABB {
	e := mgl32.Vec3{d, d, d}
	return AABB{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Mesh holds CPU-side geometry. Positions are in world space; loaders bake
// any node transform in before handing the mesh to the scene.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Color     core.Color
	DrawMode  DrawMode

	// Cached bounds (computed by NewMesh).
	Bounds AABB
}

// NewMesh builds a Mesh and pre-computes its bounds. Flat normals are
// generated for indexed triangle meshes that come without normals.
func NewMesh(positions []mgl32.Vec3, indices []uint32, color core.Color) *Mesh {
	m := &Mesh{
		Positions: positions,
		Indices:   indices,
		Color:     color,
		Bounds:    computeBounds(positions),
	}
	if len(indices) >= 3 {
		m.Normals = computeNormals(positions, indices)
	}
	return m
}

// TriangleCount returns the number of indexed triangles.
func (m *Mesh) TriangleCount() int {
	if m.DrawMode != DrawTriangles {
		return 0
	}
	return len(m.Indices) / 3
}

func computeBounds(positions []mgl32.Vec3) AABB {
	b := EmptyAABB()
	for _, p := range positions {
		b = b.Extend(p)
	}
	return b
}

// computeNormals accumulates face normals per vertex.
func computeNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(positions) || int(i1) >= len(positions) || int(i2) >= len(positions) {
			continue
		}
		v0, v1, v2 := positions[i0], positions[i1], positions[i2]
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		} else {
			normals[i] = mgl32.Vec3{0, 1, 0}
		}
	}
	return normals
}

// CreateBox returns a closed box mesh between min and max.
func CreateBox(min, max mgl32.Vec3, color core.Color) *Mesh {
	x0, y0, z0 := min[0], min[1], min[2]
	x1, y1, z1 := max[0], max[1], max[2]
	positions := []mgl32.Vec3{
		{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
		{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // back
		4, 5, 6, 4, 6, 7, // front
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
		3, 7, 6, 3, 6, 2, // top
		0, 1, 5, 0, 5, 4, // bottom
	}
	return NewMesh(positions, indices, color)
}
