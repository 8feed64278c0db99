// services/ir/dispatch/effect.go
package dispatch

import (
	"image/color"
	"strconv"
)

// Effect is an action bound to a code. The set of effects is closed.
type Effect interface {
	effect()
	String() string
}

// Key is an opaque HID keycode.
type Key uint16

type SetPixelColor struct {
	Index int
	RGB   color.RGBA
}

type FillPixels struct {
	RGB color.RGBA
}

// PressKey presses Keys together, then releases everything.
type PressKey struct {
	Keys []Key
}

type TypeText struct {
	Text string
}

// MoveServo sets Channel to Angle degrees; Angle is clamped to [0, 180].
type MoveServo struct {
	Channel int
	Angle   int
}

type NoOp struct{}

func (SetPixelColor) effect() {}
func (FillPixels) effect()    {}
func (PressKey) effect()      {}
func (TypeText) effect()      {}
func (MoveServo) effect()     {}
func (NoOp) effect()          {}

func (e SetPixelColor) String() string {
	return "set_pixel(" + strconv.Itoa(e.Index) + "," + rgb(e.RGB) + ")"
}
func (e FillPixels) String() string { return "fill_pixels(" + rgb(e.RGB) + ")" }
func (e PressKey) String() string {
	s := "press_key("
	for i, k := range e.Keys {
		if i > 0 {
			s += ","
		}
		s += "0x" + strconv.FormatUint(uint64(k), 16)
	}
	return s + ")"
}
func (e TypeText) String() string  { return "type_text(" + strconv.Quote(e.Text) + ")" }
func (e MoveServo) String() string { return "move_servo(" + strconv.Itoa(e.Channel) + "," + strconv.Itoa(e.Angle) + ")" }
func (NoOp) String() string        { return "noop" }

func rgb(c color.RGBA) string {
	return strconv.Itoa(int(c.R)) + "/" + strconv.Itoa(int(c.G)) + "/" + strconv.Itoa(int(c.B))
}

// RGB is a convenience constructor for opaque colours.
func RGB(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xFF} }
