//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/services/config"
	"irremote-go/services/indicator"
	"irremote-go/services/ir"
	"irremote-go/services/ir/capture"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/platform"
	"irremote-go/x/timex"
)

const (
	pinIR     = machine.GP15
	pinPixels = machine.GP16
	pinServo  = machine.GP17
	pinServo2 = machine.GP18
	pinLED    = machine.GP25
	numPixels = 8
	device    = "pico" // "pico-robot" for the glove-driven arm
)

func main() {
	// Give the USB host time to enumerate the keyboard.
	time.Sleep(2 * time.Second)

	out := platform.LogUART(115200, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	log := zerolog.New(out).With().Timestamp().Logger()
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, device)

	b := bus.NewBus(8)

	config.NewConfigService(log.With().Str("svc", "config").Logger()).
		Start(ctx, b.NewConnection("config"))

	led := platform.NewOutputPin(pinLED, false)
	if err := indicator.New(led, log.With().Str("svc", "indicator").Logger()).
		Start(ctx, b.NewConnection("indicator")); err != nil {
		log.Error().Err(err).Msg("indicator failed to start")
	}

	servos, err := platform.NewServos(pinServo, pinServo2)
	if err != nil {
		log.Error().Err(err).Msg("servo init failed")
	}
	sinks := dispatch.Sinks{
		Pixels: platform.NewStrip(pinPixels, numPixels),
		HID:    platform.NewKeyboard(),
	}
	if servos != nil {
		sinks.Servo = servos
	}

	worker := capture.NewEdgeWorker(platform.NewInputPin(pinIR, true), timex.NowUs, 0)
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("ir receiver init failed")
	}

	svc := ir.New(b.NewConnection("ir"), ir.Options{
		Source: capture.Poll(worker),
		Sinks:  sinks,
		Drops:  worker.Drops,
		Log:    log.With().Str("svc", "ir").Logger(),
	})
	if err := svc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("ir service stopped")
	}
	select {}
}
