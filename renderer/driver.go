package renderer

import "sync"

// ManualDriver is a FrameDriver whose frames run only when Step is called.
// Headless hosts and tests use it in place of a display.
type ManualDriver struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func()
}

func NewManualDriver() *ManualDriver {
	return &ManualDriver{pending: make(map[FrameID]func())}
}

func (d *ManualDriver) RequestFrame(cb func()) FrameID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.pending[d.next] = cb
	return d.next
}

func (d *ManualDriver) CancelFrame(id FrameID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
}

// Pending returns the number of scheduled callbacks.
func (d *ManualDriver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Step runs every callback scheduled before the call, as one display
// refresh would. Callbacks scheduled while stepping wait for the next Step.
// Returns the number of callbacks run.
func (d *ManualDriver) Step() int {
	d.mu.Lock()
	batch := d.pending
	d.pending = make(map[FrameID]func())
	d.mu.Unlock()

	for _, cb := range batch {
		cb()
	}
	return len(batch)
}
