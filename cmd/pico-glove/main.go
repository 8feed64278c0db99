//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/services/ir/nec"
	"irremote-go/services/ir/platform"
)

const (
	pinIRLED = machine.GP14
	address  = 0x00
	scanTick = 10 * time.Millisecond
)

// Buttons are active low; each sends its own command byte.
var buttons = []struct {
	pin machine.Pin
	cmd byte
}{
	{machine.GP2, 0x01},
	{machine.GP3, 0x02},
	{machine.GP4, 0x03},
	{machine.GP5, 0x04},
}

func main() {
	out := platform.LogUART(115200, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	log := zerolog.New(out).With().Timestamp().Logger()

	tx, err := platform.NewTransmitter(pinIRLED)
	if err != nil {
		log.Fatal().Err(err).Msg("carrier init failed")
	}

	pins := make([]*platform.Pin, len(buttons))
	for i, b := range buttons {
		pins[i] = platform.NewInputPin(b.pin, true)
	}

	held := -1
	var last time.Time
	for {
		pressed := -1
		for i, p := range pins {
			if !p.Get() {
				pressed = i
				break
			}
		}

		switch {
		case pressed < 0:
			if held >= 0 {
				log.Debug().Int("button", held).Msg("released")
			}
			held = -1
		case pressed != held:
			code := nec.Standard(address, buttons[pressed].cmd)
			tx.Send(code)
			held, last = pressed, time.Now()
			log.Info().Int("button", pressed).Str("code", code.String()).Msg("sent")
		case time.Since(last) >= nec.FramePeriod:
			tx.SendRepeat()
			last = last.Add(nec.FramePeriod)
		}
		time.Sleep(scanTick)
	}
}
