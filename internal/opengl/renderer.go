// Package opengl is the OpenGL 4.1 core backend of renderer.Renderer.
// Every call must happen on the thread that owns the GL context.
package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"city-viewer/core"
	"city-viewer/renderer"
	"city-viewer/scene"
)

const DefaultShadowMapSize = 2048

type Options struct {
	ClearColor    core.Color
	ShadowMapSize int // largest shadow map side; 0 disables shadows
	Logger        *zap.Logger
}

// Renderer draws the scene graph. GPU buffers are created the first time a
// node is drawn and freed on the first frame it is no longer in the scene.
type Renderer struct {
	log   *zap.Logger
	clear core.Color

	program    uint32
	shadowProg uint32

	viewProjLoc      int32
	lightViewProjLoc int32
	baseColorLoc     int32
	ambientColorLoc  int32
	lightDirLoc      int32
	lightColorLoc    int32
	unlitLoc         int32
	shadowMapLoc     int32
	hasShadowsLoc    int32
	depthLightVPLoc  int32

	shadowMap *ShadowMap

	viewportW int32
	viewportH int32

	frame  uint64
	meshes map[*scene.Node]*GPUMesh
	stats  renderer.Stats
}

var _ renderer.Renderer = (*Renderer)(nil)

// New initialises OpenGL. The window's context must be current.
func New(opts Options) (*Renderer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger = logger.Named("opengl")
	logger.Info("context ready", zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))))

	prog, err := newProgram(vertSrc, fragSrc)
	if err != nil {
		return nil, fmt.Errorf("main shader compile: %w", err)
	}
	shadowProg, err := newProgram(depthVertSrc, depthFragSrc)
	if err != nil {
		gl.DeleteProgram(prog)
		return nil, fmt.Errorf("depth shader compile: %w", err)
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.PROGRAM_POINT_SIZE)

	r := &Renderer{
		log:        logger,
		clear:      opts.ClearColor,
		program:    prog,
		shadowProg: shadowProg,

		viewProjLoc:      uniform(prog, "viewProj"),
		lightViewProjLoc: uniform(prog, "lightViewProj"),
		baseColorLoc:     uniform(prog, "baseColor"),
		ambientColorLoc:  uniform(prog, "ambientColor"),
		lightDirLoc:      uniform(prog, "lightDir"),
		lightColorLoc:    uniform(prog, "lightColor"),
		unlitLoc:         uniform(prog, "unlit"),
		shadowMapLoc:     uniform(prog, "shadowMap"),
		hasShadowsLoc:    uniform(prog, "hasShadows"),
		depthLightVPLoc:  uniform(shadowProg, "lightViewProj"),

		meshes: make(map[*scene.Node]*GPUMesh),
	}

	if opts.ShadowMapSize > 0 {
		sm, err := newShadowMap(opts.ShadowMapSize)
		if err != nil {
			logger.Warn("shadows disabled", zap.Error(err))
		} else {
			r.shadowMap = sm
		}
	}

	gl.UseProgram(prog)
	gl.Uniform1i(r.shadowMapLoc, 1)
	ident := mgl32.Ident4()
	gl.UniformMatrix4fv(r.lightViewProjLoc, 1, false, &ident[0])
	return r, nil
}

func (r *Renderer) SetSize(size core.Size) {
	r.viewportW = int32(size.Width)
	r.viewportH = int32(size.Height)
	gl.Viewport(0, 0, r.viewportW, r.viewportH)
}

// Stats returns what the last frame drew.
func (r *Renderer) Stats() renderer.Stats {
	return r.stats
}

func (r *Renderer) Render(s *scene.Scene, camera *scene.Camera) {
	r.frame++
	nodes := s.Renderables()

	var draws []*GPUMesh
	var colors []core.Color
	for _, n := range nodes {
		gpu := r.ensureUploaded(n)
		if gpu == nil {
			continue
		}
		gpu.lastFrame = r.frame
		draws = append(draws, gpu)
		colors = append(colors, n.Mesh.Color)
	}

	ambient, key := lighting(s.Lights())
	lightVP, shadows := mgl32.Ident4(), false
	if key != nil && r.shadowMap != nil {
		bounds := s.Bounds()
		lightVP, shadows = key.ShadowViewProj(bounds)
		if shadows {
			if err := r.shadowMap.fit(bounds); err != nil {
				r.log.Warn("shadow map resize failed", zap.Error(err))
				shadows = false
			}
		}
	}
	if shadows {
		r.shadowPass(draws, lightVP)
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, r.viewportW, r.viewportH)
	gl.ClearColor(r.clear.R, r.clear.G, r.clear.B, r.clear.A)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.UseProgram(r.program)
	vp := camera.ViewProjectionMatrix()
	gl.UniformMatrix4fv(r.viewProjLoc, 1, false, &vp[0])
	gl.UniformMatrix4fv(r.lightViewProjLoc, 1, false, &lightVP[0])
	gl.Uniform3f(r.ambientColorLoc, ambient.R, ambient.G, ambient.B)
	if key != nil {
		d := key.Direction()
		c := key.Color
		gl.Uniform3f(r.lightDirLoc, d[0], d[1], d[2])
		gl.Uniform3f(r.lightColorLoc, c.R*key.Intensity, c.G*key.Intensity, c.B*key.Intensity)
	} else {
		gl.Uniform3f(r.lightColorLoc, 0, 0, 0)
	}
	gl.Uniform1i(r.hasShadowsLoc, boolToInt32(shadows))
	if shadows {
		gl.ActiveTexture(gl.TEXTURE1)
		gl.BindTexture(gl.TEXTURE_2D, r.shadowMap.DepthTex)
	}

	frustum := scene.FrustumFromViewProj(vp)
	culled := 0
	for i, gpu := range draws {
		if !gpu.mesh.Bounds.IntersectsFrustum(&frustum) {
			culled++
			continue
		}
		c := colors[i]
		gl.Uniform4f(r.baseColorLoc, c.R, c.G, c.B, c.A)
		gl.Uniform1i(r.unlitLoc, boolToInt32(gpu.Mode == gl.POINTS))
		gpu.draw()
	}

	r.sweep()
	r.stats = renderer.Collect(s)
	r.stats.Culled = culled
}

func (r *Renderer) shadowPass(draws []*GPUMesh, lightVP mgl32.Mat4) {
	r.shadowMap.bind()
	gl.UseProgram(r.shadowProg)
	gl.UniformMatrix4fv(r.depthLightVPLoc, 1, false, &lightVP[0])
	for _, gpu := range draws {
		if gpu.CastsShadow {
			gpu.draw()
		}
	}
}

// ensureUploaded returns the node's GPU buffers, uploading on first use and
// again when the node's mesh was replaced.
func (r *Renderer) ensureUploaded(n *scene.Node) *GPUMesh {
	if gpu, ok := r.meshes[n]; ok {
		if gpu.mesh == n.Mesh {
			return gpu
		}
		gpu.release()
		delete(r.meshes, n)
		n.GeometryRef = nil
	}
	gpu := upload(n.Mesh)
	if gpu == nil {
		return nil
	}
	r.meshes[n] = gpu
	n.GeometryRef = gpu
	return gpu
}

// sweep frees the buffers of nodes that were not drawn this frame.
func (r *Renderer) sweep() {
	freed := 0
	for n, gpu := range r.meshes {
		if gpu.lastFrame == r.frame {
			continue
		}
		gpu.release()
		delete(r.meshes, n)
		n.GeometryRef = nil
		freed++
	}
	if freed > 0 {
		r.log.Debug("freed node buffers", zap.Int("count", freed))
	}
}

// Release frees every GPU resource.
func (r *Renderer) Release() {
	for n, gpu := range r.meshes {
		gpu.release()
		n.GeometryRef = nil
	}
	r.meshes = make(map[*scene.Node]*GPUMesh)
	if r.shadowMap != nil {
		r.shadowMap.destroy()
		r.shadowMap = nil
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
		r.program = 0
	}
	if r.shadowProg != 0 {
		gl.DeleteProgram(r.shadowProg)
		r.shadowProg = 0
	}
}

// lighting sums the ambient lights and picks the first directional or spot
// light as the key light.
func lighting(lights []*scene.Node) (core.Color, *scene.Light) {
	var ambient core.Color
	var key *scene.Light
	for _, n := range lights {
		l := n.Light
		if l == nil {
			continue
		}
		if l.Type == scene.LightTypeAmbient {
			ambient.R += l.Color.R * l.Intensity
			ambient.G += l.Color.G * l.Intensity
			ambient.B += l.Color.B * l.Intensity
			continue
		}
		if key == nil {
			key = l
		}
	}
	return ambient, key
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
