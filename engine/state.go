package engine

import "city-viewer/core"

// Phase is the model synchronization state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State is a snapshot of the viewport state shown to the UI.
type State struct {
	ViewportSize core.Size

	// ModelLoaded gates picking.
	ModelLoaded bool
	// IsLoading is true while any upload, load or delete is in flight.
	IsLoading bool
	Mounted   bool
	// ReloadToggle flips on every reload request so dependents re-render.
	ReloadToggle bool

	Selected       string
	ActionsVisible bool

	ModelID string
	Phase   Phase
}
