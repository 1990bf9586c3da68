package renderer

import (
	"city-viewer/core"
	"city-viewer/scene"
)

// Renderer draws a scene through a camera onto an output surface. Backends
// own whatever GPU state they attach to scene.Node.GeometryRef.
type Renderer interface {
	// Render draws one frame.
	Render(s *scene.Scene, camera *scene.Camera)
	// SetSize resizes the output surface in pixels.
	SetSize(size core.Size)
	// Release frees the output surface and every GPU resource.
	Release()
}

// Stats counts what the last frame drew.
type Stats struct {
	Objects   int
	Triangles int
	Points    int
	// Culled is set by backends that skip objects outside the view.
	Culled int
}

// Collect walks the renderables the way a backend would and counts them.
func Collect(s *scene.Scene) Stats {
	var st Stats
	for _, n := range s.Renderables() {
		if n.Mesh == nil {
			continue
		}
		st.Objects++
		switch n.Kind {
		case scene.KindMesh:
			st.Triangles += n.Mesh.TriangleCount()
		case scene.KindPoints:
			st.Points += len(n.Mesh.Positions)
		}
	}
	return st
}
