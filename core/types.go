package core

import "fmt"

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
	ColorGrey  = Color{0.6, 0.6, 0.6, 1}
	ColorRed   = Color{1, 0, 0, 1}
)

// RGB returns the colour as a 3-float array, alpha dropped.
func (c Color) RGB() [3]float32 {
	return [3]float32{c.R, c.G, c.B}
}

// Size is a viewport size in pixels.
type Size struct {
	Width  int
	Height int
}

// Aspect returns width/height, or 1 when the height is zero.
func (s Size) Aspect() float32 {
	if s.Height <= 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// MouseButton identifies a pointer button. Values follow the DOM
// MouseEvent.button numbering so remote UIs can forward them unchanged.
type MouseButton int

const (
	MouseLeft   MouseButton = 0
	MouseMiddle MouseButton = 1
	MouseRight  MouseButton = 2
)

// PointerEvent is a click in viewport pixel coordinates, origin top-left.
type PointerEvent struct {
	X, Y   float32
	Button MouseButton
}

// Primary reports whether the event came from the primary (left) button.
func (e PointerEvent) Primary() bool {
	return e.Button == MouseLeft
}
