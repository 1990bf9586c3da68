package scene

import (
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"

	"city-viewer/core"
)

// Light types
const (
	LightTypeAmbient = iota
	LightTypeDirectional
	LightTypeSpot
)

// Light represents a light source
type Light struct {
	Type       int
	Position   mgl32.Vec3
	Target     mgl32.Vec3
	Color      core.Color
	Intensity  float32
	CastShadow bool
}

// Direction returns the normalized vector from Position to Target.
func (l *Light) Direction() mgl32.Vec3 {
	d := l.Target.Sub(l.Position)
	if d.Len() == 0 {
		return mgl32.Vec3{0, -1, 0}
	}
	return d.Normalize()
}

// DefaultEnvironment returns the soft ambient fill and the shadow-casting
// spot light every viewport starts with.
func DefaultEnvironment() []*Node {
	grey := float32(0x66) / 255
	spot := float32(0xdd) / 255
	return []*Node{
		NewLightNode("ambient", &Light{
			Type:      LightTypeAmbient,
			Color:     core.Color{R: grey, G: grey, B: grey, A: 1},
			Intensity: 0.7,
		}),
		NewLightNode("spot", &Light{
			Type:       LightTypeSpot,
			Position:   mgl32.Vec3{200, 400, 200},
			Color:      core.Color{R: spot, G: spot, B: spot, A: 1},
			Intensity:  0.4,
			CastShadow: true,
		}),
	}
}

// ShadowViewProj returns an orthographic light view-projection that covers
// b, looking along the light direction. It reports false for lights that
// cast no shadow or an empty box.
func (l *Light) ShadowViewProj(b AABB) (mgl32.Mat4, bool) {
	if !l.CastShadow || l.Type == LightTypeAmbient || !b.Valid() {
		return mgl32.Ident4(), false
	}
	dir := l.Direction()
	radius := b.Size().Len() / 2
	if radius <= 0 {
		radius = 1
	}
	center := b.Center()
	eye := center.Sub(dir.Mul(radius * 2))

	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, center, up)
	proj := mgl32.Ortho(-radius, radius, -radius, radius, radius*0.5, radius*3.5)
	return proj.Mul4(view), true
}

// ShadowTexelsPerUnit is the shadow resolution aimed for across a scene, in
// texels per world unit (metres for city models).
const ShadowTexelsPerUnit = 8

// ShadowMapSize returns the power-of-two shadow map resolution that covers
// b at ShadowTexelsPerUnit, clamped to [minSize, maxSize].
func ShadowMapSize(b AABB, minSize, maxSize int) int {
	want := minSize
	if b.Valid() {
		want = nextPow2(int(b.Size().Len() * ShadowTexelsPerUnit))
	}
	return max(minSize, min(want, maxSize))
}

func nextPow2(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
