package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city-viewer/core"
	"city-viewer/scene"
)

func TestLoopStartIsIdempotent(t *testing.T) {
	d := NewManualDriver()
	draws, updates := 0, 0
	l := NewLoop(d, func() { draws++ }, func() { updates++ })

	l.Start()
	l.Start()
	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, 1, updates, "start refreshes the controls once")

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, d.Step())
	}
	assert.Equal(t, 3, draws)
	assert.Equal(t, 4, updates)
	assert.Equal(t, uint64(3), l.Frames())
	assert.Equal(t, 1, d.Pending(), "each frame schedules exactly one successor")
}

func TestLoopStop(t *testing.T) {
	d := NewManualDriver()
	draws := 0
	l := NewLoop(d, func() { draws++ }, nil)

	l.Stop()
	l.Start()
	d.Step()
	l.Stop()
	l.Stop()

	assert.False(t, l.Running())
	assert.Zero(t, d.Pending())
	assert.Zero(t, d.Step())
	assert.Equal(t, 1, draws)

	l.Start()
	assert.True(t, l.Running(), "a stopped loop can be restarted")
	d.Step()
	assert.Equal(t, 2, draws)
}

func TestLoopStopDuringDraw(t *testing.T) {
	d := NewManualDriver()
	var l *Loop
	l = NewLoop(d, func() { l.Stop() }, nil)

	l.Start()
	d.Step()
	assert.Zero(t, d.Pending())
	assert.False(t, l.Running())
}

func TestLoopRestartDuringDraw(t *testing.T) {
	d := NewManualDriver()
	var l *Loop
	restarted := false
	l = NewLoop(d, func() {
		if !restarted {
			restarted = true
			l.Stop()
			l.Start()
		}
	}, nil)

	l.Start()
	d.Step()
	assert.Equal(t, 1, d.Pending(), "only the new run keeps a frame scheduled")

	d.Step()
	assert.Equal(t, 1, d.Pending())

	l.Stop()
	assert.Zero(t, d.Pending())
	assert.Zero(t, d.Step())
}

func TestCollectStats(t *testing.T) {
	s := scene.NewScene()
	require.NoError(t, s.Add(scene.NewMeshNode("a", scene.CreateBox(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, core.ColorWhite))))
	require.NoError(t, s.Add(scene.NewPointsNode("p", scene.NewMesh([]mgl32.Vec3{{0, 0, 0}, {1, 1, 1}}, nil, core.ColorWhite))))
	require.NoError(t, s.Add(scene.NewMeshNode("empty", nil)))

	st := Collect(s)
	assert.Equal(t, Stats{Objects: 2, Triangles: 12, Points: 2}, st)
}
