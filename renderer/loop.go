package renderer

import "sync"

// FrameID identifies a scheduled frame callback. Zero means none.
type FrameID uint64

// FrameDriver is the host's per-frame callback primitive. RequestFrame
// schedules cb to run once, at the host's next display refresh. Hosts stop
// delivering frames while the viewport is not visible.
type FrameDriver interface {
	RequestFrame(cb func()) FrameID
	CancelFrame(id FrameID)
}

// Loop is a self-rescheduling render loop: each frame draws, asks the
// driver for the next frame, then updates the camera controls.
type Loop struct {
	driver FrameDriver
	draw   func()
	update func()

	mu      sync.Mutex
	frame   FrameID
	running bool
	gen     uint64 // bumped by Start; a tick from an older run never reschedules
	frames  uint64
}

// NewLoop creates a stopped loop. update may be nil.
func NewLoop(driver FrameDriver, draw, update func()) *Loop {
	if update == nil {
		update = func() {}
	}
	return &Loop{driver: driver, draw: draw, update: update}
}

// Start schedules the first frame. Calling Start on a running loop does
// nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.gen++
	l.frame = l.driver.RequestFrame(l.tickFunc(l.gen))
	l.mu.Unlock()

	l.update()
}

// Stop cancels the pending frame. Safe to call on a stopped loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	l.running = false
	if l.frame != 0 {
		l.driver.CancelFrame(l.frame)
		l.frame = 0
	}
}

// Running reports whether a frame is scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Frames returns the number of frames drawn since creation.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

func (l *Loop) tickFunc(gen uint64) func() {
	return func() { l.tick(gen) }
}

func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	if !l.running || l.gen != gen {
		l.mu.Unlock()
		return
	}
	l.frame = 0
	l.mu.Unlock()

	l.draw()

	l.mu.Lock()
	l.frames++
	// Stop, or Stop then Start, may have run while drawing.
	if !l.running || l.gen != gen {
		l.mu.Unlock()
		return
	}
	l.frame = l.driver.RequestFrame(l.tickFunc(gen))
	l.mu.Unlock()

	l.update()
}
