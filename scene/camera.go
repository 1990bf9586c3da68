package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera. Matrices are recomputed explicitly by
// UpdateViewMatrix and UpdateProjectionMatrix, mirroring how the viewport
// drives it on resize.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	FOV         float32 // vertical, radians
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	c := &Camera{
		Position:    mgl32.Vec3{0, 0, 5},
		Up:          mgl32.Vec3{0, 1, 0},
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
	}
	c.UpdateViewMatrix()
	c.UpdateProjectionMatrix()
	return c
}

// SetAspect sets width/height. Ignored for a zero height.
func (c *Camera) SetAspect(width, height float32) {
	if height > 0 {
		c.AspectRatio = width / height
	}
}

func (c *Camera) UpdateProjectionMatrix() {
	c.projectionMatrix = mgl32.Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) UpdateViewMatrix() {
	c.viewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return c.viewMatrix
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return c.projectionMatrix
}

func (c *Camera) ViewProjectionMatrix() mgl32.Mat4 {
	return c.projectionMatrix.Mul4(c.viewMatrix)
}

// OrbitControls orbits a camera around a target point.
type OrbitControls struct {
	Camera   *Camera
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32

	MinDistance float32
	MaxDistance float32
}

func NewOrbitControls(camera *Camera, target mgl32.Vec3, distance float32) *OrbitControls {
	c := &OrbitControls{
		Camera:      camera,
		Target:      target,
		Distance:    distance,
		Pitch:       0.5,
		MinDistance: 0.1,
		MaxDistance: 1e6,
	}
	c.Update()
	return c
}

// Update places the camera on its orbit and refreshes its view matrix.
func (c *OrbitControls) Update() {
	if c.Pitch > 1.5 {
		c.Pitch = 1.5
	}
	if c.Pitch < -1.5 {
		c.Pitch = -1.5
	}
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.MaxDistance > 0 && c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}

	cosPitch := float32(math.Cos(float64(c.Pitch)))
	sinPitch := float32(math.Sin(float64(c.Pitch)))
	cosYaw := float32(math.Cos(float64(c.Yaw)))
	sinYaw := float32(math.Sin(float64(c.Yaw)))

	offset := mgl32.Vec3{
		c.Distance * cosPitch * sinYaw,
		c.Distance * sinPitch,
		c.Distance * cosPitch * cosYaw,
	}

	c.Camera.Target = c.Target
	c.Camera.Position = c.Target.Add(offset)
	c.Camera.UpdateViewMatrix()
}

func (c *OrbitControls) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
}

// Zoom scales the orbit distance; factor < 1 moves closer.
func (c *OrbitControls) Zoom(factor float32) {
	if factor > 0 {
		c.Distance *= factor
	}
}

// Pan slides the target in the camera's view plane.
func (c *OrbitControls) Pan(dx, dy float32) {
	forward := c.Camera.Target.Sub(c.Camera.Position).Normalize()
	right := forward.Cross(c.Camera.Up).Normalize()
	up := right.Cross(forward)
	scale := c.Distance * 0.002
	c.Target = c.Target.Add(right.Mul(-dx * scale)).Add(up.Mul(dy * scale))
}

// Frame moves the target to the centre of b and backs off far enough for
// the whole box to fit the vertical field of view. The far plane follows
// so large city models are not clipped.
func (c *OrbitControls) Frame(b AABB) {
	if !b.Valid() {
		return
	}
	c.Target = b.Center()
	radius := b.Size().Len() / 2
	if radius <= 0 {
		radius = 1
	}
	half := c.Camera.FOV / 2
	if half <= 0 {
		half = mgl32.DegToRad(30)
	}
	c.Distance = radius / float32(math.Sin(float64(half)))
	c.MaxDistance = c.Distance * 10

	c.Camera.NearPlane = c.Distance / 1000
	c.Camera.FarPlane = c.Distance + radius*10
	c.Camera.UpdateProjectionMatrix()
	c.Update()
}
