//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/services/config"
	"irremote-go/services/ir"
	"irremote-go/services/ir/capture"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/nec"
	"irremote-go/types"
	"irremote-go/x/timex"
)

// selftest plays every binding of km, each followed by one repeat frame,
// through the capture, decode and dispatch loop and checks what fires.
func selftest(ctx context.Context, km *config.Keymap, sinks dispatch.Sinks, log zerolog.Logger) error {
	reg, err := km.Registry()
	if err != nil {
		return err
	}
	bindings := reg.Bindings()

	src := capture.NewSliceSource()
	t := uint64(10_000)
	for _, b := range bindings {
		src.Append(capture.FromPulses(t, nec.Encode(b.Code)[:nec.FramePulses]...)...)
		src.Append(capture.FromPulses(t+uint64(nec.FramePeriod.Microseconds()), nec.EncodeRepeat()[:3]...)...)
		t += 500_000
	}

	b := bus.NewBus(2*len(bindings) + 8)
	conn := b.NewConnection("selftest")
	evSub := conn.Subscribe(ir.TopicEvent)

	dopts := km.DispatchOptions()
	dopts.Clock = timex.NewManual()
	svc := ir.New(conn, ir.Options{
		Source:   src,
		Sinks:    sinks,
		Registry: reg,
		Dispatch: dopts,
		Log:      log,
	})
	if err := svc.Run(ctx); err != nil {
		return err
	}

	for i, want := range bindings {
		for _, kind := range []types.EventKind{types.EventCode, types.EventRepeat} {
			var ev types.IREvent
			select {
			case m := <-evSub.Channel():
				ev, _ = m.Payload.(types.IREvent)
			default:
				return fmt.Errorf("binding %d (%s): no %s event", i, want.Code, kind)
			}
			if ev.Kind != kind || ev.Code != want.Code.String() || ev.Outcome != types.OutcomeFired {
				return fmt.Errorf("binding %d (%s): got %s %s %s, want %s fired", i, want.Code, ev.Kind, ev.Code, ev.Outcome, kind)
			}
		}
		log.Info().Str("code", want.Code.String()).Str("label", want.Label).Str("effect", want.Effect.String()).Msg("selftest ok")
	}
	return nil
}
