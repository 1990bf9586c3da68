// Package desktop hosts the engine in a GLFW window with an OpenGL 4.1 core
// context. The window is the engine's surface and frame driver, and turns
// mouse input into picks and camera moves.
package desktop

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"city-viewer/core"
	"city-viewer/editor"
	"city-viewer/renderer"
)

func init() {
	// GLFW and the GL context must stay on the main thread.
	runtime.LockOSThread()
}

// Input is the part of the engine the window drives.
type Input interface {
	NotifyResize(size core.Size)
	HandleClick(evt *core.PointerEvent) editor.HitResult
	Orbit(deltaYaw, deltaPitch float32)
	Zoom(factor float32)
	Pan(dx, dy float32)
}

// Window owns the GLFW window. Only Run, Bind and Destroy must be called
// from the main thread; the rest is safe from any goroutine.
type Window struct {
	handle *glfw.Window
	log    *zap.Logger

	mu     sync.Mutex
	size   core.Size
	nextID renderer.FrameID
	frames map[renderer.FrameID]func()
	posted []func()

	drag dragState
}

var _ renderer.FrameDriver = (*Window)(nil)

func NewWindow(cfg core.WindowConfig, logger *zap.Logger) (*Window, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, boolToInt(cfg.Resizable))

	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	handle.MakeContextCurrent()
	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	w := &Window{
		handle: handle,
		log:    logger.Named("window"),
		frames: make(map[renderer.FrameID]func()),
	}
	fw, fh := handle.GetFramebufferSize()
	w.size = core.Size{Width: fw, Height: fh}
	w.log.Debug("window created", zap.Stringer("framebuffer", w.size))
	return w, nil
}

// Size returns the framebuffer size in pixels.
func (w *Window) Size() core.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *Window) RequestFrame(cb func()) renderer.FrameID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	w.frames[w.nextID] = cb
	glfw.PostEmptyEvent()
	return w.nextID
}

func (w *Window) CancelFrame(id renderer.FrameID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.frames, id)
}

// Post queues f to run on the main thread before the next frame.
func (w *Window) Post(f func()) {
	w.mu.Lock()
	w.posted = append(w.posted, f)
	w.mu.Unlock()
	glfw.PostEmptyEvent()
}

// AfterFunc is a core.AfterFunc whose callbacks run on the main thread.
func (w *Window) AfterFunc(d time.Duration, f func()) core.Timer {
	return time.AfterFunc(d, func() { w.Post(f) })
}

// Run processes events and frames until the window is closed or ctx is
// done. Frames are not delivered while the window is iconified.
func (w *Window) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, glfw.PostEmptyEvent)
	defer stop()

	for !w.handle.ShouldClose() && ctx.Err() == nil {
		w.runPosted()

		if w.handle.GetAttrib(glfw.Iconified) == glfw.True {
			glfw.WaitEvents()
			continue
		}

		if n := w.runFrames(); n > 0 {
			w.handle.SwapBuffers()
			glfw.PollEvents()
			continue
		}
		glfw.WaitEvents()
	}
}

func (w *Window) runPosted() {
	w.mu.Lock()
	batch := w.posted
	w.posted = nil
	w.mu.Unlock()

	for _, f := range batch {
		f()
	}
}

// runFrames runs the callbacks requested before the call, like one display
// refresh. Callbacks requested while running wait for the next refresh.
func (w *Window) runFrames() int {
	w.mu.Lock()
	batch := w.frames
	w.frames = make(map[renderer.FrameID]func())
	w.mu.Unlock()

	for _, cb := range batch {
		cb()
	}
	return len(batch)
}

// Close asks Run to return.
func (w *Window) Close() {
	w.handle.SetShouldClose(true)
	glfw.PostEmptyEvent()
}

func (w *Window) Destroy() {
	w.handle.Destroy()
	glfw.Terminate()
}

func boolToInt(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
