package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"city-viewer/scene"
)

// GPUMesh holds the OpenGL buffer objects for an uploaded node. It is
// stored in scene.Node.GeometryRef.
type GPUMesh struct {
	VAO         uint32
	VBO         uint32
	EBO         uint32
	Mode        uint32
	Count       int32
	HasIndices  bool
	CastsShadow bool

	mesh      *scene.Mesh
	lastFrame uint64
}

// positions and normals interleaved, 6 floats per vertex
const stride = 6 * 4

func upload(mesh *scene.Mesh) *GPUMesh {
	if mesh == nil || len(mesh.Positions) == 0 {
		return nil
	}

	data := make([]float32, 0, len(mesh.Positions)*6)
	for i, p := range mesh.Positions {
		n := [3]float32{0, 1, 0}
		if i < len(mesh.Normals) {
			n = mesh.Normals[i]
		}
		data = append(data, p[0], p[1], p[2], n[0], n[1], n[2])
	}

	gpu := &GPUMesh{mesh: mesh}
	if mesh.DrawMode == scene.DrawPoints {
		gpu.Mode = gl.POINTS
		gpu.Count = int32(len(mesh.Positions))
	} else {
		gpu.Mode = gl.TRIANGLES
		gpu.CastsShadow = true
		gpu.HasIndices = len(mesh.Indices) > 0
		if gpu.HasIndices {
			gpu.Count = int32(len(mesh.Indices))
		} else {
			gpu.Count = int32(len(mesh.Positions))
		}
	}

	gl.GenVertexArrays(1, &gpu.VAO)
	gl.GenBuffers(1, &gpu.VBO)
	gl.BindVertexArray(gpu.VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, gpu.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)

	// location 0: Position (vec3)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	// location 1: Normal (vec3)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(3*4))

	if gpu.HasIndices {
		gl.GenBuffers(1, &gpu.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gpu.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(mesh.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
	return gpu
}

func (g *GPUMesh) draw() {
	gl.BindVertexArray(g.VAO)
	if g.HasIndices {
		gl.DrawElements(g.Mode, g.Count, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(g.Mode, 0, g.Count)
	}
	gl.BindVertexArray(0)
}

func (g *GPUMesh) release() {
	gl.DeleteVertexArrays(1, &g.VAO)
	gl.DeleteBuffers(1, &g.VBO)
	if g.HasIndices {
		gl.DeleteBuffers(1, &g.EBO)
	}
	g.VAO, g.VBO, g.EBO = 0, 0, 0
}
