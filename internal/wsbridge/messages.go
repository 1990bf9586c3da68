package wsbridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"city-viewer/bus"
	"city-viewer/core"
)

// Additional inbound message types that drive the viewport directly.
const (
	typeClick  = "click"
	typeResize = "resize"
)

// inbound is the union of every field a UI message may carry.
type inbound struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	ModelID string          `json:"modelId"`
	UID     string          `json:"uid"`

	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Button int     `json:"button"`

	Width  int `json:"width"`
	Height int `json:"height"`
}

var errUnknownType = errors.New("unknown message type")

// decode turns one UI message into either a bus event or a viewport input.
// Exactly one of the results is non-nil on success.
func decode(data []byte) (bus.Event, any, error) {
	var m inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("decode message: %w", err)
	}

	switch m.Type {
	case string(bus.KindUploadFile):
		return bus.UploadFile{Content: []byte(m.Content), ModelID: m.ModelID}, nil, nil
	case string(bus.KindReloadScene):
		return bus.ReloadScene{}, nil, nil
	case string(bus.KindLoadScene):
		return bus.LoadScene{ModelID: m.ModelID}, nil, nil
	case string(bus.KindDeleteObject):
		return bus.DeleteObject{UID: m.UID}, nil, nil
	case typeClick:
		return nil, core.PointerEvent{X: m.X, Y: m.Y, Button: core.MouseButton(m.Button)}, nil
	case typeResize:
		return nil, core.Size{Width: m.Width, Height: m.Height}, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", errUnknownType, m.Type)
	}
}

// encode renders an outbound event as {"type": kind, ...fields}.
func encode(ev bus.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = string(ev.Kind())
	return json.Marshal(fields)
}
