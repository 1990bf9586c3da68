package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"city-viewer/scene"
)

const minShadowSize = 512

// ShadowMap is a depth-only framebuffer for the shadow-casting light. Its
// texture is reallocated when the scene needs a different resolution.
type ShadowMap struct {
	FBO      uint32
	DepthTex uint32
	Size     int32
	maxSize  int32
}

// newShadowMap creates the framebuffer with a maxSize-capped depth texture.
// The cap is also limited by what the driver supports.
func newShadowMap(maxSize int) (*ShadowMap, error) {
	var limit int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &limit)
	sm := &ShadowMap{maxSize: int32(maxSize)}
	if limit > 0 && limit < sm.maxSize {
		sm.maxSize = limit
	}
	gl.GenFramebuffers(1, &sm.FBO)
	if err := sm.allocate(minShadowSize); err != nil {
		sm.destroy()
		return nil, err
	}
	return sm, nil
}

// fit reallocates the depth texture when b needs another resolution.
func (sm *ShadowMap) fit(b scene.AABB) error {
	want := int32(scene.ShadowMapSize(b, minShadowSize, int(sm.maxSize)))
	if want == sm.Size {
		return nil
	}
	return sm.allocate(want)
}

func (sm *ShadowMap) allocate(size int32) error {
	if sm.DepthTex != 0 {
		gl.DeleteTextures(1, &sm.DepthTex)
		sm.DepthTex = 0
	}
	gl.GenTextures(1, &sm.DepthTex)
	gl.BindTexture(gl.TEXTURE_2D, sm.DepthTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F, size, size, 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	for _, p := range [][2]int32{
		{gl.TEXTURE_MIN_FILTER, gl.LINEAR},
		{gl.TEXTURE_MAG_FILTER, gl.LINEAR},
		{gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER},
		{gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER},
		{gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE},
		{gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL},
	} {
		gl.TexParameteri(gl.TEXTURE_2D, uint32(p[0]), p[1])
	}
	// outside the map counts as lit
	lit := [4]float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &lit[0])

	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, sm.DepthTex, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("shadow map %dx%d incomplete: status=0x%X", size, size, status)
	}
	sm.Size = size
	return nil
}

// bind makes the map the render target and clears it.
func (sm *ShadowMap) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.Viewport(0, 0, sm.Size, sm.Size)
	gl.Clear(gl.DEPTH_BUFFER_BIT)
}

func (sm *ShadowMap) destroy() {
	if sm.FBO != 0 {
		gl.DeleteFramebuffers(1, &sm.FBO)
		sm.FBO = 0
	}
	if sm.DepthTex != 0 {
		gl.DeleteTextures(1, &sm.DepthTex)
		sm.DepthTex = 0
	}
}
