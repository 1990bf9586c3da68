package editor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-viewer/core"
	"city-viewer/scene"
)

var viewport = core.Size{Width: 100, Height: 100}

func testCamera() *scene.Camera {
	cam := scene.NewCamera(mgl32.DegToRad(60), 1, 0.1, 100)
	cam.Position = mgl32.Vec3{0, 0, 10}
	cam.UpdateViewMatrix()
	return cam
}

func box(minZ, maxZ float32) *scene.Mesh {
	return scene.CreateBox(mgl32.Vec3{-1, -1, minZ}, mgl32.Vec3{1, 1, maxZ}, core.ColorWhite)
}

func TestScreenToRayCentre(t *testing.T) {
	ray, ok := ScreenToRay(50, 50, viewport, testCamera())
	require.True(t, ok)
	assert.InDelta(t, 0, ray.Direction.X(), 1e-4)
	assert.InDelta(t, 0, ray.Direction.Y(), 1e-4)
	assert.InDelta(t, -1, ray.Direction.Z(), 1e-4)
	assert.InDelta(t, 9.9, ray.Origin.Z(), 1e-3)
}

func TestScreenToRayFlipsY(t *testing.T) {
	ray, ok := ScreenToRay(50, 10, viewport, testCamera())
	require.True(t, ok)
	assert.Greater(t, ray.Direction.Y(), float32(0), "top of the viewport looks up")
}

func TestScreenToRayEmptyViewport(t *testing.T) {
	_, ok := ScreenToRay(0, 0, core.Size{}, testCamera())
	assert.False(t, ok)
}

func TestRaycastNearestWins(t *testing.T) {
	s := scene.NewScene()
	require.NoError(t, s.Add(scene.NewMeshNode("far", box(-1, 1))))
	require.NoError(t, s.Add(scene.NewMeshNode("near", box(3, 4))))

	ray, ok := ScreenToRay(50, 50, viewport, testCamera())
	require.True(t, ok)

	hit := RaycastScene(ray, s, DefaultPointsThreshold)
	require.True(t, hit.Hit)
	assert.Equal(t, "near", hit.Node.UID)
	assert.InDelta(t, 4, hit.Point.Z(), 1e-3)
}

func TestRaycastIgnoresLights(t *testing.T) {
	s := scene.NewScene()
	for _, l := range scene.DefaultEnvironment() {
		require.NoError(t, s.Add(l))
	}
	ray, _ := ScreenToRay(50, 50, viewport, testCamera())
	assert.False(t, RaycastScene(ray, s, DefaultPointsThreshold).Hit)
}

func TestRaycastPoints(t *testing.T) {
	s := scene.NewScene()
	pts := scene.NewMesh([]mgl32.Vec3{{0.5, 0, 0}, {5, 5, 0}}, nil, core.ColorWhite)
	require.NoError(t, s.Add(scene.NewPointsNode("cloud", pts)))

	ray, _ := ScreenToRay(50, 50, viewport, testCamera())

	hit := RaycastScene(ray, s, 1)
	require.True(t, hit.Hit)
	assert.Equal(t, "cloud", hit.Node.UID)
	assert.Equal(t, 0, hit.Index)

	assert.False(t, RaycastScene(ray, s, 0.1).Hit)
}

func TestPickerSelectAndMiss(t *testing.T) {
	s := scene.NewScene()
	require.NoError(t, s.Add(scene.NewMeshNode("b", box(-1, 1))))
	cam := testCamera()
	p := NewPicker(0)

	hit := p.Pick(core.PointerEvent{X: 50, Y: 50}, viewport, cam, s)
	require.True(t, hit.Hit)
	assert.Equal(t, "b", p.Selection.UID)
	assert.True(t, p.Selection.ActionsVisible)

	p.Pick(core.PointerEvent{X: 1, Y: 1}, viewport, cam, s)
	assert.False(t, p.Selection.HasSelection())
	assert.True(t, p.Selection.ActionsVisible)
}

func TestSelectionDrop(t *testing.T) {
	sel := NewSelection()
	sel.Select("a")
	assert.False(t, sel.Drop("b", "c"))
	assert.True(t, sel.Drop("b", "a"))
	assert.False(t, sel.HasSelection())
}
