package scene

import "github.com/go-gl/mathgl/mgl32"

// Plane is the half-space Normal·p + D >= 0. The normal points into the
// frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// DistanceTo returns the signed distance from pt to the plane, positive on
// the inside.
func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum holds the six clip planes of a view frustum.
type Frustum struct {
	Planes [6]Plane // left, right, bottom, top, near, far
}

// FrustumFromViewProj extracts the normalized planes of vp (Gribb/Hartmann).
func FrustumFromViewProj(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)

	var f Frustum
	f.Planes[0] = plane(r3.Add(r0))
	f.Planes[1] = plane(r3.Sub(r0))
	f.Planes[2] = plane(r3.Add(r1))
	f.Planes[3] = plane(r3.Sub(r1))
	f.Planes[4] = plane(r3.Add(r2))
	f.Planes[5] = plane(r3.Sub(r2))
	return f
}

func plane(v mgl32.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v[3] / l}
}

// IntersectsFrustum reports false only when the box lies entirely outside
// one of the planes. For each plane it tests the corner furthest along
// the normal.
func (b AABB) IntersectsFrustum(f *Frustum) bool {
	if !b.Valid() {
		return false
	}
	for _, p := range f.Planes {
		var corner mgl32.Vec3
		for i := 0; i < 3; i++ {
			if p.Normal[i] < 0 {
				corner[i] = b.Min[i]
			} else {
				corner[i] = b.Max[i]
			}
		}
		if p.DistanceTo(corner) < 0 {
			return false
		}
	}
	return true
}
