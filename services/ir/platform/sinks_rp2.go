//go:build rp2040 || rp2350

package platform

import (
	"image/color"
	"machine"
	"machine/usb/hid/keyboard"

	"tinygo.org/x/drivers/servo"
	"tinygo.org/x/drivers/ws2812"

	"irremote-go/errcode"
	"irremote-go/services/ir/dispatch"
)

// Strip is a ws2812 pixel string.
type Strip struct {
	dev ws2812.Device
	buf []color.RGBA
}

func NewStrip(pin machine.Pin, n int) *Strip {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &Strip{dev: ws2812.New(pin), buf: make([]color.RGBA, n)}
}

func (s *Strip) SetPixel(i int, c color.RGBA) error {
	if i < 0 || i >= len(s.buf) {
		return errcode.InvalidParams
	}
	s.buf[i] = c
	return nil
}

func (s *Strip) Fill(c color.RGBA) error {
	for i := range s.buf {
		s.buf[i] = c
	}
	return nil
}

func (s *Strip) Show() error { return s.dev.WriteColors(s.buf) }

// Servos drives hobby servos, one per channel, at 50 Hz.
type Servos struct{ ch []servo.Servo }

// NewServos configures a servo on each pin. Pins sharing a PWM slice share
// its 20ms period.
func NewServos(pins ...machine.Pin) (*Servos, error) {
	s := &Servos{}
	for _, p := range pins {
		sv, err := servo.New(pwmFor(p), p)
		if err != nil {
			return nil, errcode.Wrap(errcode.UnknownPin, "servo", err)
		}
		s.ch = append(s.ch, sv)
	}
	return s, nil
}

func (s *Servos) SetAngle(ch int, deg uint8) error {
	if ch < 0 || ch >= len(s.ch) {
		return errcode.InvalidParams
	}
	s.ch[ch].SetMicroseconds(int16(AngleToMicros(deg)))
	return nil
}

// pwmFor returns the PWM slice that drives pin.
func pwmFor(p machine.Pin) servo.PWM {
	switch (uint8(p) >> 1) & 7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	}
	return machine.PWM7
}

type hidPort interface {
	Down(c keyboard.Keycode) error
	Release() error
	Write(b []byte) (int, error)
}

// Keyboard is the USB HID keyboard endpoint.
type Keyboard struct{ kb hidPort }

func NewKeyboard() *Keyboard { return &Keyboard{kb: keyboard.Port()} }

func (k *Keyboard) Press(keys ...dispatch.Key) error {
	for _, c := range keys {
		if err := k.kb.Down(keyboard.Keycode(c)); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) ReleaseAll() error { return k.kb.Release() }

func (k *Keyboard) TypeString(s string) error {
	_, err := k.kb.Write([]byte(s))
	return err
}
