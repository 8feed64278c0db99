//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"time"

	"github.com/sparques/pwm"

	"irremote-go/services/ir/nec"
	"irremote-go/x/mathx"
)

// Transmitter keys a 38 kHz carrier on an IR LED pin.
type Transmitter struct {
	group pwm.Group
	ch    uint8
	duty  uint32
}

func NewTransmitter(pin machine.Pin) (*Transmitter, error) {
	pin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	g := pwm.Get(pin)
	if err := g.Configure(machine.PWMConfig{Period: uint64(1e9) / nec.Carrier}); err != nil {
		return nil, err
	}
	ch, err := g.Channel(pin)
	if err != nil {
		return nil, err
	}
	g.Set(ch, 0)
	return &Transmitter{group: g, ch: ch, duty: mathx.RoundDiv(g.Top(), 2)}, nil
}

func (tx *Transmitter) send(pairs []nec.TimePair) {
	for _, p := range pairs {
		tx.group.Set(tx.ch, tx.duty)
		time.Sleep(p[0])
		tx.group.Set(tx.ch, 0)
		time.Sleep(p[1])
	}
}

// Send transmits one full frame for c and returns when the carrier is off.
func (tx *Transmitter) Send(c nec.Code) { tx.send(nec.Pairs(c)) }

// SendRepeat transmits a repeat frame.
func (tx *Transmitter) SendRepeat() { tx.send(nec.RepeatPairs()) }
