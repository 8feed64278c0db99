// services/ir/dispatch/sinks.go
package dispatch

import (
	"image/color"

	"irremote-go/errcode"
	"irremote-go/x/mathx"
)

// PixelSink is an addressable LED string. Changes become visible on Show.
type PixelSink interface {
	SetPixel(index int, c color.RGBA) error
	Fill(c color.RGBA) error
	Show() error
}

// HIDSink is a USB keyboard endpoint.
type HIDSink interface {
	Press(keys ...Key) error
	ReleaseAll() error
	TypeString(s string) error
}

// ServoSink drives hobby servos by channel.
type ServoSink interface {
	SetAngle(channel int, degrees uint8) error
}

// Sinks gathers the effect targets. A nil sink makes effects for it fail
// with errcode.Unsupported.
type Sinks struct {
	Pixels PixelSink
	HID    HIDSink
	Servo  ServoSink
}

const maxAngle = 180

// Apply performs e synchronously against s.
func (s Sinks) Apply(e Effect) error {
	switch e := e.(type) {
	case SetPixelColor:
		if s.Pixels == nil {
			return errcode.Unsupported
		}
		if err := s.Pixels.SetPixel(e.Index, e.RGB); err != nil {
			return err
		}
		return s.Pixels.Show()
	case FillPixels:
		if s.Pixels == nil {
			return errcode.Unsupported
		}
		if err := s.Pixels.Fill(e.RGB); err != nil {
			return err
		}
		return s.Pixels.Show()
	case PressKey:
		if s.HID == nil {
			return errcode.Unsupported
		}
		if err := s.HID.Press(e.Keys...); err != nil {
			_ = s.HID.ReleaseAll()
			return err
		}
		return s.HID.ReleaseAll()
	case TypeText:
		if s.HID == nil {
			return errcode.Unsupported
		}
		return s.HID.TypeString(e.Text)
	case MoveServo:
		if s.Servo == nil {
			return errcode.Unsupported
		}
		return s.Servo.SetAngle(e.Channel, uint8(mathx.Clamp(e.Angle, 0, maxAngle)))
	case NoOp:
		return nil
	case nil:
		return errcode.InvalidParams
	}
	return errcode.Unsupported
}
