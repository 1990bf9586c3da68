package engine

import (
	"context"

	"go.uber.org/zap"

	"city-viewer/bus"
	"city-viewer/core"
	"city-viewer/editor"
)

// NotifyResize reports a new viewport size. Bursts are collapsed by the
// resize debouncer.
func (e *Engine) NotifyResize(size core.Size) {
	e.mu.Lock()
	mounted := e.state.Mounted
	e.mu.Unlock()

	if mounted {
		e.resize.Trigger(size)
	}
}

func (e *Engine) onResize(size core.Size) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Mounted {
		return
	}
	e.applyResize(size)
}

// applyResize updates the camera aspect, projection, controls and output
// surface together. An empty size is re-read from the surface. Callers
// hold mu.
func (e *Engine) applyResize(size core.Size) {
	if size.Empty() && e.surface != nil {
		size = e.surface.Size()
	}
	if size.Empty() {
		return
	}
	e.state.ViewportSize = size
	e.camera.SetAspect(float32(size.Width), float32(size.Height))
	e.camera.UpdateProjectionMatrix()
	e.controls.Update()
	if e.rend != nil {
		e.rend.SetSize(size)
	}
	e.log.Debug("viewport resized", zap.Stringer("size", size))
}

// HandleClick picks the object under a primary click. It does nothing when
// no model is loaded, for other buttons, or for a nil event. Only a hit is
// published; a miss just clears the selection.
func (e *Engine) HandleClick(evt *core.PointerEvent) editor.HitResult {
	if evt == nil || !evt.Primary() {
		return editor.HitResult{}
	}

	e.mu.Lock()
	if !e.state.Mounted || !e.state.ModelLoaded {
		e.mu.Unlock()
		return editor.HitResult{}
	}
	hit := e.picker.Pick(*evt, e.state.ViewportSize, e.camera, e.store)
	uid := e.picker.Selection.UID
	ctx := e.ctx
	e.mu.Unlock()

	if hit.Hit && uid != "" {
		e.bus.Publish(ctx, bus.ObjectSelected{UID: uid})
	}
	return hit
}

// Orbit rotates the camera around its target, in radians.
func (e *Engine) Orbit(deltaYaw, deltaPitch float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Mounted {
		e.controls.Orbit(deltaYaw, deltaPitch)
	}
}

// Zoom scales the camera distance; factor < 1 moves closer.
func (e *Engine) Zoom(factor float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Mounted {
		e.controls.Zoom(factor)
	}
}

// Pan slides the camera target by a pointer delta in pixels.
func (e *Engine) Pan(dx, dy float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Mounted {
		e.controls.Pan(dx, dy)
	}
}

func (e *Engine) publish(ctx context.Context, events ...bus.Event) {
	for _, ev := range events {
		e.bus.Publish(ctx, ev)
	}
}
