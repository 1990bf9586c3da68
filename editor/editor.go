package editor

import (
	"city-viewer/core"
	"city-viewer/scene"
)

// DefaultPointsThreshold is the pick radius around point-cloud vertices,
// in world units.
const DefaultPointsThreshold = 1.0

// Picker resolves pointer clicks to scene nodes and keeps the selection.
type Picker struct {
	PointsThreshold float32
	Selection       *Selection
}

// NewPicker creates a picker with an empty selection. A non-positive
// threshold falls back to DefaultPointsThreshold.
func NewPicker(pointsThreshold float32) *Picker {
	if pointsThreshold <= 0 {
		pointsThreshold = DefaultPointsThreshold
	}
	return &Picker{
		PointsThreshold: pointsThreshold,
		Selection:       NewSelection(),
	}
}

// Pick casts a ray through the event position and selects the nearest node
// it hits. A miss clears the selection. The caller is responsible for
// filtering out events that should not pick at all.
func (p *Picker) Pick(evt core.PointerEvent, size core.Size, camera *scene.Camera, s *scene.Scene) HitResult {
	ray, ok := ScreenToRay(evt.X, evt.Y, size, camera)
	if !ok {
		p.Selection.Clear()
		return HitResult{}
	}

	hit := RaycastScene(ray, s, p.PointsThreshold)
	if hit.Hit && hit.Node != nil {
		p.Selection.Select(hit.Node.UID)
	} else {
		p.Selection.Clear()
	}
	return hit
}
