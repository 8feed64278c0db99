//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"irremote-go/services/ir/capture"
)

// Pin wraps a machine.Pin for capture and status output.
type Pin struct{ p machine.Pin }

// NewInputPin configures n as an input. IR receiver modules drive their
// output, so pull is only needed for bare photodiodes or buttons.
func NewInputPin(n machine.Pin, pullUp bool) *Pin {
	mode := machine.PinInput
	if pullUp {
		mode = machine.PinInputPullup
	}
	n.Configure(machine.PinConfig{Mode: mode})
	return &Pin{p: n}
}

func NewOutputPin(n machine.Pin, initial bool) *Pin {
	n.Configure(machine.PinConfig{Mode: machine.PinOutput})
	n.Set(initial)
	return &Pin{p: n}
}

func (r *Pin) Get() bool  { return r.p.Get() }
func (r *Pin) Set(b bool) { r.p.Set(b) }

func (r *Pin) SetIRQ(edge capture.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e capture.Edge) machine.PinChange {
	switch e {
	case capture.EdgeRising:
		return machine.PinRising
	case capture.EdgeFalling:
		return machine.PinFalling
	case capture.EdgeBoth:
		return machine.PinToggle
	}
	var zero machine.PinChange
	return zero
}
