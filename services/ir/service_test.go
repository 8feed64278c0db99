package ir

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/services/ir/capture"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/nec"
	"irremote-go/types"
	"irremote-go/x/timex"
)

var volUp = nec.Code{0xFF, 0x02, 0xBF, 0x40}

type countingPixels struct{ fills int }

func (p *countingPixels) SetPixel(int, color.RGBA) error { return nil }
func (p *countingPixels) Fill(color.RGBA) error          { p.fills++; return nil }
func (p *countingPixels) Show() error                    { return nil }

type staticKeymap struct{ reg *dispatch.Registry }

func (k staticKeymap) Registry() (*dispatch.Registry, error) { return k.reg, nil }
func (k staticKeymap) DispatchOptions() dispatch.Options     { return dispatch.Options{} }

// recording is a volume-up press held for one repeat, then a corrupt frame.
func recording() *capture.SliceSource {
	src := capture.NewSliceSource(capture.FromPulses(1_000, nec.Encode(volUp)[:nec.FramePulses]...)...)
	src.Append(capture.FromPulses(109_000, nec.EncodeRepeat()[:3]...)...)
	bad := nec.Encode(volUp)
	bad[0] = 4000
	src.Append(capture.FromPulses(400_000, bad[:nec.FramePulses]...)...)
	return src
}

func nextEvent(t *testing.T, sub *bus.Subscription) types.IREvent {
	t.Helper()
	select {
	case m := <-sub.Channel():
		ev, ok := m.Payload.(types.IREvent)
		if !ok {
			t.Fatalf("payload %T", m.Payload)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ir/event")
	}
	return types.IREvent{}
}

func TestService_DecodesDispatchesAndPublishes(t *testing.T) {
	b := bus.NewBus(32)
	conn := b.NewConnection("ir_test")
	evSub := conn.Subscribe(TopicEvent)

	reg := dispatch.MustRegistry(dispatch.Binding{
		Code: volUp, Label: "vol_up", Effect: dispatch.FillPixels{RGB: dispatch.RGB(0, 0, 255)},
	})
	conn.Publish(conn.NewMessage(TopicKeymap, staticKeymap{reg}, true))

	px := &countingPixels{}
	svc := New(conn, Options{
		Source:   recording(),
		Sinks:    dispatch.Sinks{Pixels: px},
		Dispatch: dispatch.Options{Clock: timex.NewManual()},
		Log:      zerolog.Nop(),
	})
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ev := nextEvent(t, evSub)
	if ev.Kind != types.EventCode || ev.Code != "FF02BF40" || ev.Label != "vol_up" || ev.Outcome != types.OutcomeFired {
		t.Fatalf("first event = %+v", ev)
	}
	if ev.Pulses != nec.FramePulses+1 {
		t.Fatalf("pulses = %d", ev.Pulses)
	}
	ev = nextEvent(t, evSub)
	if ev.Kind != types.EventRepeat || ev.Code != "FF02BF40" || ev.Outcome != types.OutcomeFired {
		t.Fatalf("second event = %+v", ev)
	}
	ev = nextEvent(t, evSub)
	if ev.Kind != types.EventError || ev.Error != "bad_leader" || ev.Outcome != types.OutcomeIgnored {
		t.Fatalf("third event = %+v", ev)
	}
	if px.fills != 2 {
		t.Fatalf("fills = %d, want 2", px.fills)
	}

	stSub := conn.Subscribe(TopicStats)
	select {
	case m := <-stSub.Channel():
		st := m.Payload.(types.IRStats)
		if st.Frames != 3 || st.Codes != 1 || st.Repeats != 1 || st.Errors != 1 || st.Fired != 2 {
			t.Fatalf("stats = %+v", st)
		}
		if st.ByError["bad_leader"] != 1 {
			t.Fatalf("by_error = %v", st.ByError)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained stats")
	}
}

func TestService_StaticRegistryAndDrops(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("ir_test")

	svc := New(conn, Options{
		Source:   capture.NewSliceSource(capture.FromPulses(0, nec.EncodeRepeat()[:3]...)...),
		Registry: dispatch.MustRegistry(),
		Drops:    func() uint32 { return 7 },
		Log:      zerolog.Nop(),
	})
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := svc.Stats()
	if st.Repeats != 1 || st.Fired != 0 || st.Drops != 7 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestService_CancelWhileAwaitingKeymap(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("ir_test")
	stateSub := conn.Subscribe(TopicState)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(conn, Options{Source: capture.NewSliceSource(), Log: zerolog.Nop()}).Run(ctx)
	}()

	select {
	case m := <-stateSub.Channel():
		st := m.Payload.(types.ServiceState)
		if st.Level != "idle" || st.Status != "awaiting_keymap" {
			t.Fatalf("state = %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
