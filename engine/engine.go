// Package engine binds the scene store, camera, picking, render loop and
// event bus to one mounted viewport.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"city-viewer/bus"
	"city-viewer/core"
	"city-viewer/editor"
	"city-viewer/renderer"
	"city-viewer/scene"
)

var (
	ErrNotAttached     = errors.New("engine: not attached")
	ErrAlreadyAttached = errors.New("engine: already attached")
	ErrSinkClosed      = errors.New("engine: node sink closed")
)

// NodeSink is the narrow handle a loader gets to populate the scene. It is
// only valid for the duration of the LoadCityModel call.
type NodeSink interface {
	Add(node *scene.Node) error
}

// Loader populates the scene with the nodes of one city model.
type Loader interface {
	LoadCityModel(ctx context.Context, sink NodeSink, modelID string) error
}

// Uploader sends a city model to the server. It returns the server's
// success message.
type Uploader interface {
	UploadCityModel(ctx context.Context, content []byte, modelID string) (string, error)
}

// Surface is the host viewport.
type Surface interface {
	Size() core.Size
}

type Config struct {
	Renderer renderer.Renderer
	Frames   renderer.FrameDriver
	Loader   Loader
	Uploader Uploader
	Bus      *bus.Bus
	Logger   *zap.Logger

	ResizeDelay     time.Duration
	AfterFunc       core.AfterFunc
	PointsThreshold float32

	// Invoke runs f on the thread that owns the renderer. Nil runs f
	// directly.
	Invoke func(f func())
}

// Engine owns the scene of one viewport. Every operation takes the state
// mutex; loader and network calls run without it.
type Engine struct {
	rend     renderer.Renderer
	loader   Loader
	uploader Uploader
	bus      *bus.Bus
	log      *zap.Logger
	invoke   func(func())

	loop   *renderer.Loop
	resize *core.Debouncer[core.Size]

	// loadMu serializes Load so two populations never interleave.
	loadMu sync.Mutex

	mu       sync.Mutex
	store    *scene.Scene
	camera   *scene.Camera
	controls *scene.OrbitControls
	picker   *editor.Picker
	surface  Surface
	state    State
	busy     int
	unsubs   []func()
	ctx      context.Context
	cancel   context.CancelFunc
	detached bool
}

// New builds an unattached engine with the environment lights in place.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := cfg.Bus
	if b == nil {
		b = bus.New()
	}
	invoke := cfg.Invoke
	if invoke == nil {
		invoke = func(f func()) { f() }
	}
	frames := cfg.Frames
	if frames == nil {
		frames = renderer.NewManualDriver()
	}

	e := &Engine{
		rend:     cfg.Renderer,
		loader:   cfg.Loader,
		uploader: cfg.Uploader,
		bus:      b,
		log:      logger.Named("engine"),
		invoke:   invoke,
		store:    scene.NewScene(),
		camera:   scene.NewCamera(mgl32.DegToRad(45), 1, 0.1, 10000),
		picker:   editor.NewPicker(cfg.PointsThreshold),
	}
	e.controls = scene.NewOrbitControls(e.camera, mgl32.Vec3{}, 100)
	for _, n := range scene.DefaultEnvironment() {
		// Lights never collide.
		_ = e.store.Add(n)
	}
	e.loop = renderer.NewLoop(frames, e.frame, e.updateControls)
	e.resize = core.NewDebouncer(cfg.ResizeDelay, cfg.AfterFunc, e.onResize)
	return e
}

// Bus returns the bus the engine is subscribed to.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Attach binds the engine to a surface and subscribes it to the inbound
// bus events. Nothing is drawn until Initialize.
func (e *Engine) Attach(surface Surface) error {
	if surface == nil {
		return errors.New("engine: nil surface")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Mounted || e.detached {
		return ErrAlreadyAttached
	}
	e.surface = surface
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.state.Mounted = true
	e.state.Phase = PhaseIdle

	e.unsubs = append(e.unsubs,
		e.bus.Subscribe(bus.KindUploadFile, func(ctx context.Context, ev bus.Event) {
			u := ev.(bus.UploadFile)
			_ = e.Upload(ctx, u.Content, u.ModelID)
		}),
		e.bus.Subscribe(bus.KindLoadScene, func(ctx context.Context, ev bus.Event) {
			_ = e.Load(ctx, ev.(bus.LoadScene).ModelID)
		}),
		e.bus.Subscribe(bus.KindReloadScene, func(context.Context, bus.Event) {
			e.Reload()
		}),
		e.bus.Subscribe(bus.KindDeleteObject, func(_ context.Context, ev bus.Event) {
			e.Delete(ev.(bus.DeleteObject).UID)
		}),
	)
	e.log.Debug("attached", zap.Stringer("size", surface.Size()))
	return nil
}

// Initialize sizes the camera and renderer to the surface and starts the
// render loop.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	if !e.state.Mounted {
		e.mu.Unlock()
		return ErrNotAttached
	}
	e.applyResize(e.surface.Size())
	e.mu.Unlock()

	e.loop.Start()
	return nil
}

// Unmount stops the loop, cancels the pending resize, drops the bus
// subscriptions and releases the renderer. Every later call is a no-op.
func (e *Engine) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Mounted {
		return
	}
	e.state.Mounted = false
	e.detached = true

	e.loop.Stop()
	e.resize.Cancel()
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	e.cancel()
	if e.rend != nil {
		e.rend.Release()
	}
	e.log.Debug("unmounted", zap.Uint64("frames", e.loop.Frames()))
}

// State returns a snapshot of the viewport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	st.IsLoading = e.busy > 0
	st.Selected = e.picker.Selection.UID
	st.ActionsVisible = e.picker.Selection.ActionsVisible
	return st
}

// Stats counts what the scene currently holds.
func (e *Engine) Stats() renderer.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return renderer.Collect(e.store)
}

// UIDs lists the uids of the loaded objects in load order.
func (e *Engine) UIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.UIDs()
}

// Frames returns the number of frames the loop has drawn.
func (e *Engine) Frames() uint64 {
	return e.loop.Frames()
}

func (e *Engine) frame() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Mounted {
		return
	}
	e.render()
}

// render draws one frame. Callers hold mu.
func (e *Engine) render() {
	if e.rend != nil {
		e.rend.Render(e.store, e.camera)
	}
}

func (e *Engine) updateControls() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Mounted {
		e.controls.Update()
	}
}
