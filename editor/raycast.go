package editor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"city-viewer/core"
	"city-viewer/scene"
)

// Ray represents a ray in 3D space
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// HitResult stores the result of a ray intersection test
type HitResult struct {
	Hit      bool
	Distance float32
	Point    mgl32.Vec3
	Node     *scene.Node
	Index    int // triangle index for meshes, vertex index for points
}

// ScreenToRay converts a pointer position in viewport pixels (origin top
// left) to a world-space ray from the near plane towards the far plane.
func ScreenToRay(x, y float32, size core.Size, camera *scene.Camera) (Ray, bool) {
	if size.Empty() {
		return Ray{}, false
	}
	// UnProject expects window coordinates with the origin bottom left.
	winY := float32(size.Height) - y
	view := camera.ViewMatrix()
	proj := camera.ProjectionMatrix()

	near, err := mgl32.UnProject(mgl32.Vec3{x, winY, 0}, view, proj, 0, 0, size.Width, size.Height)
	if err != nil {
		return Ray{}, false
	}
	far, err := mgl32.UnProject(mgl32.Vec3{x, winY, 1}, view, proj, 0, 0, size.Width, size.Height)
	if err != nil {
		return Ray{}, false
	}
	dir := far.Sub(near)
	if dir.Len() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: near, Direction: dir.Normalize()}, true
}

// RaycastScene tests a ray against every Mesh and Points node and returns
// the closest hit. Lights are never hit. pointsThreshold is the largest
// ray-to-vertex distance that still counts as hitting a point.
func RaycastScene(ray Ray, s *scene.Scene, pointsThreshold float32) HitResult {
	closest := HitResult{Distance: float32(math.MaxFloat32)}

	for _, node := range s.Renderables() {
		mesh := node.Mesh
		if mesh == nil || len(mesh.Positions) == 0 {
			continue
		}

		box := mesh.Bounds
		if node.Kind == scene.KindPoints {
			box = box.Expand(pointsThreshold)
		}
		// Broad phase: AABB test
		t, hit := rayAABBIntersect(ray, box)
		if !hit || t > closest.Distance {
			continue
		}

		var result HitResult
		switch node.Kind {
		case scene.KindMesh:
			result = rayMeshIntersect(ray, node)
		case scene.KindPoints:
			result = rayPointsIntersect(ray, node, pointsThreshold)
		}
		if result.Hit && result.Distance < closest.Distance {
			closest = result
		}
	}

	return closest
}

// rayAABBIntersect tests ray-AABB intersection (slab method)
func rayAABBIntersect(ray Ray, box scene.AABB) (float32, bool) {
	tmin := float32(math.Inf(-1))
	tmax := float32(math.Inf(1))

	for i := 0; i < 3; i++ {
		o, d := ray.Origin[i], ray.Direction[i]
		if d == 0 {
			if o < box.Min[i] || o > box.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d
		t1 := (box.Min[i] - o) * inv
		t2 := (box.Max[i] - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < 0 || tmin > tmax {
		return 0, false
	}
	return max(tmin, 0), true
}

// rayMeshIntersect performs per-triangle intersection using Möller–Trumbore algorithm
func rayMeshIntersect(ray Ray, node *scene.Node) HitResult {
	mesh := node.Mesh
	closest := HitResult{Distance: float32(math.MaxFloat32)}
	n := uint32(len(mesh.Positions))

	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		i0, i1, i2 := mesh.Indices[i], mesh.Indices[i+1], mesh.Indices[i+2]
		if i0 >= n || i1 >= n || i2 >= n {
			continue
		}

		t, hit := mollerTrumbore(ray, mesh.Positions[i0], mesh.Positions[i1], mesh.Positions[i2])
		if hit && t < closest.Distance {
			closest.Hit = true
			closest.Distance = t
			closest.Point = ray.At(t)
			closest.Node = node
			closest.Index = i / 3
		}
	}

	return closest
}

// rayPointsIntersect picks the vertex nearest the ray origin among those
// within threshold of the ray.
func rayPointsIntersect(ray Ray, node *scene.Node, threshold float32) HitResult {
	closest := HitResult{Distance: float32(math.MaxFloat32)}
	limit := threshold * threshold

	for i, p := range node.Mesh.Positions {
		v := p.Sub(ray.Origin)
		t := v.Dot(ray.Direction)
		if t < 0 {
			continue
		}
		perp := v.Sub(ray.Direction.Mul(t))
		if perp.Dot(perp) > limit {
			continue
		}
		if t < closest.Distance {
			closest.Hit = true
			closest.Distance = t
			closest.Point = p
			closest.Node = node
			closest.Index = i
		}
	}

	return closest
}

// mollerTrumbore implements the Möller–Trumbore ray-triangle intersection algorithm
func mollerTrumbore(ray Ray, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	const epsilon = 0.0000001

	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)

	if a > -epsilon && a < epsilon {
		return 0, false // parallel
	}

	f := 1.0 / a
	s := ray.Origin.Sub(v0)
	u := f * s.Dot(h)

	if u < 0.0 || u > 1.0 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)

	if v < 0.0 || u+v > 1.0 {
		return 0, false
	}

	t := f * edge2.Dot(q)
	return t, t > epsilon
}
