package desktop

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"city-viewer/core"
)

const (
	orbitSpeed = 0.005 // radians per pixel
	zoomStep   = 0.9   // distance factor per scroll notch
	// A press and release closer than this many pixels is a click.
	clickSlop = 4
)

type dragState struct {
	button         glfw.MouseButton
	active         bool
	moved          float64
	startX, startY float64
	lastX, lastY   float64
}

// Bind routes window input to in. Left drag orbits, right drag pans, the
// wheel zooms and a left click picks.
func (w *Window) Bind(in Input) {
	w.handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		size := core.Size{Width: width, Height: height}
		w.mu.Lock()
		w.size = size
		w.mu.Unlock()
		in.NotifyResize(size)
	})

	w.handle.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		x, y := win.GetCursorPos()
		switch action {
		case glfw.Press:
			if w.drag.active {
				return
			}
			w.drag = dragState{button: button, active: true, startX: x, startY: y, lastX: x, lastY: y}
		case glfw.Release:
			if !w.drag.active || w.drag.button != button {
				return
			}
			clicked := w.drag.moved < clickSlop
			w.drag.active = false
			if !clicked {
				return
			}
			evt := w.pointerEvent(x, y, button)
			hit := in.HandleClick(&evt)
			if hit.Hit && hit.Node != nil {
				w.log.Debug("picked", zap.String("uid", hit.Node.UID), zap.Float32("distance", hit.Distance))
			}
		}
	})

	w.handle.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if !w.drag.active {
			return
		}
		dx, dy := x-w.drag.lastX, y-w.drag.lastY
		w.drag.lastX, w.drag.lastY = x, y
		w.drag.moved = max(w.drag.moved, abs(x-w.drag.startX)+abs(y-w.drag.startY))
		if w.drag.moved < clickSlop {
			return
		}
		switch w.drag.button {
		case glfw.MouseButtonLeft:
			in.Orbit(float32(-dx)*orbitSpeed, float32(dy)*orbitSpeed)
		case glfw.MouseButtonRight:
			in.Pan(float32(dx), float32(dy))
		}
	})

	w.handle.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		switch {
		case yoff > 0:
			in.Zoom(zoomStep)
		case yoff < 0:
			in.Zoom(1 / zoomStep)
		}
	})
}

// pointerEvent converts a cursor position in screen coordinates to
// framebuffer pixels, which differ on high-DPI displays.
func (w *Window) pointerEvent(x, y float64, button glfw.MouseButton) core.PointerEvent {
	ww, wh := w.handle.GetSize()
	fb := w.Size()
	if ww > 0 && wh > 0 {
		x *= float64(fb.Width) / float64(ww)
		y *= float64(fb.Height) / float64(wh)
	}
	return core.PointerEvent{X: float32(x), Y: float32(y), Button: mouseButton(button)}
}

// mouseButton maps GLFW button numbers to DOM numbering.
func mouseButton(b glfw.MouseButton) core.MouseButton {
	switch b {
	case glfw.MouseButtonLeft:
		return core.MouseLeft
	case glfw.MouseButtonRight:
		return core.MouseRight
	case glfw.MouseButtonMiddle:
		return core.MouseMiddle
	}
	return core.MouseButton(b)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
