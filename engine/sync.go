package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"city-viewer/bus"
	"city-viewer/scene"
)

var (
	errNoLoader      = errors.New("engine: no loader configured")
	errNotRenderable = errors.New("engine: loader may only add mesh or points nodes")
)

const (
	msgNowLoading    = "Now loading it into the scene."
	msgUploadFailed  = "The server did not accept the city model. Loading it anyway."
	msgLoadFailed    = "The city model could not be loaded."
	uploadedFallback = "City model uploaded."
)

// beginBusy marks an operation in flight. Callers hold mu.
func (e *Engine) beginBusy(phase Phase) {
	e.busy++
	e.state.Phase = phase
}

func (e *Engine) endBusy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy--
}

// bind derives a context that is also cancelled by Unmount.
func (e *Engine) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Upload sends the model to the server and loads it. An upload failure is
// reported through an info message and the model is loaded regardless.
func (e *Engine) Upload(ctx context.Context, content []byte, modelID string) error {
	e.mu.Lock()
	if !e.state.Mounted {
		e.mu.Unlock()
		return nil
	}
	e.beginBusy(PhaseUploading)
	ctx, cancel := e.bind(ctx)
	e.mu.Unlock()
	defer cancel()
	defer e.endBusy()

	var events []bus.Event
	if e.uploader == nil {
		e.log.Warn("no uploader configured, loading locally", zap.String("model", modelID))
		events = append(events, bus.Info{Message: msgUploadFailed})
	} else if msg, err := e.uploader.UploadCityModel(ctx, content, modelID); err != nil {
		e.log.Warn("upload failed, loading anyway", zap.String("model", modelID), zap.Error(err))
		events = append(events, bus.Info{Message: msgUploadFailed})
	} else {
		if msg == "" {
			msg = uploadedFallback
		}
		e.log.Info("city model uploaded", zap.String("model", modelID), zap.Int("bytes", len(content)))
		events = append(events, bus.Success{Message: msg}, bus.Info{Message: msgNowLoading})
	}

	if !e.mounted() {
		return nil
	}
	e.publish(ctx, events...)
	return e.Load(ctx, modelID)
}

// Load clears the scene and populates it with modelID through the loader.
// Loads are serialized. On loader failure the partial scene is kept, the
// model is not marked loaded and no cityModelLoaded event is published.
func (e *Engine) Load(ctx context.Context, modelID string) error {
	events, err := e.load(ctx, modelID)
	// Published outside loadMu so handlers may start another load.
	e.publish(ctx, events...)
	return err
}

func (e *Engine) load(ctx context.Context, modelID string) ([]bus.Event, error) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	if !e.state.Mounted {
		e.mu.Unlock()
		return nil, nil
	}
	removed := e.store.Clear()
	e.picker.Selection.Clear()
	e.state.ModelLoaded = false
	e.state.ModelID = modelID
	e.beginBusy(PhaseLoading)
	ctx, cancel := e.bind(ctx)
	e.mu.Unlock()
	defer cancel()
	defer e.endBusy()

	e.log.Debug("loading city model", zap.String("model", modelID), zap.Int("cleared", removed))

	var err error
	if e.loader == nil {
		err = errNoLoader
	} else {
		err = e.populate(ctx, modelID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Mounted {
		return nil, nil
	}
	objects := e.store.Len()
	if err != nil {
		e.state.Phase = PhaseIdle
		e.log.Error("city model load failed", zap.String("model", modelID), zap.Int("objects", objects), zap.Error(err))
		return []bus.Event{bus.Info{Message: msgLoadFailed}}, fmt.Errorf("load %q: %w", modelID, err)
	}

	e.controls.Frame(e.store.Bounds())
	e.state.ModelLoaded = true
	e.state.Phase = PhaseReady
	e.log.Info("city model loaded", zap.String("model", modelID), zap.Int("objects", objects))
	return []bus.Event{bus.CityModelLoaded{ModelID: modelID}}, nil
}

func (e *Engine) populate(ctx context.Context, modelID string) error {
	sink := &nodeSink{e: e}
	defer sink.close()
	return e.loader.LoadCityModel(ctx, sink, modelID)
}

// Reload flips ReloadToggle. The scene is left untouched.
func (e *Engine) Reload() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Mounted {
		e.state.ReloadToggle = !e.state.ReloadToggle
	}
}

// Delete removes uid and its recorded descendants, then draws one frame.
// IsLoading stays set until that frame is drawn. An unknown uid is a no-op
// that leaves the state alone. Returns whether anything was removed.
func (e *Engine) Delete(uid string) bool {
	if !e.delete(uid) {
		return false
	}
	e.invoke(func() {
		defer e.endBusy()
		e.frame()
	})
	return true
}

// delete removes the hierarchy and, on success, leaves the engine busy for
// the caller to end.
func (e *Engine) delete(uid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Mounted {
		return false
	}
	node, ok := e.store.Get(uid)
	if !ok {
		e.log.Debug("delete of unknown object", zap.String("uid", uid))
		return false
	}
	e.beginBusy(PhaseIdle)
	doomed := append([]string{uid}, node.ChildrenMeshes...)
	e.store.DeleteHierarchy(uid)
	e.picker.Selection.Drop(doomed...)

	e.log.Info("object deleted", zap.String("uid", uid), zap.Int("descendants", len(doomed)-1))
	return true
}

func (e *Engine) mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Mounted
}

// nodeSink adds loader nodes to the engine's store until closed.
type nodeSink struct {
	e      *Engine
	closed bool // guarded by e.mu
}

func (s *nodeSink) Add(node *scene.Node) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()

	if s.closed || !s.e.state.Mounted {
		return ErrSinkClosed
	}
	if node == nil || !node.Kind.Renderable() {
		return errNotRenderable
	}
	return s.e.store.Add(node)
}

func (s *nodeSink) close() {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	s.closed = true
}
