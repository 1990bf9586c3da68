package editor

// Selection tracks the picked object and whether the selection-dependent
// actions (inspect, delete) are shown.
type Selection struct {
	UID string

	// ActionsVisible is raised by the first valid primary click and stays
	// raised; the object actions are revealed once, not toggled per hit.
	ActionsVisible bool
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{}
}

// Clear drops the selected object.
func (s *Selection) Clear() {
	s.UID = ""
}

// Select selects a single object, replacing the previous selection.
func (s *Selection) Select(uid string) {
	s.UID = uid
	s.ActionsVisible = true
}

// HasSelection returns true if an object is selected
func (s *Selection) HasSelection() bool {
	return s.UID != ""
}

// Drop clears the selection if its object is among uids. Returns whether it
// was.
func (s *Selection) Drop(uids ...string) bool {
	for _, uid := range uids {
		if s.UID != "" && s.UID == uid {
			s.UID = ""
			return true
		}
	}
	return false
}
