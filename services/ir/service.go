// services/ir/service.go
package ir

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/errcode"
	"irremote-go/services/ir/capture"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/nec"
	"irremote-go/types"
	"irremote-go/x/timex"
)

var (
	TopicEvent  = bus.Topic{"ir", "event"}
	TopicStats  = bus.Topic{"ir", "stats"}
	TopicState  = bus.Topic{"ir", "state"}
	TopicKeymap = bus.Topic{"config", "keymap"}
)

const (
	DefaultIdleUs     = 20_000
	DefaultStatsEvery = 10
)

// Keymap is the payload expected on config/keymap.
type Keymap interface {
	Registry() (*dispatch.Registry, error)
	DispatchOptions() dispatch.Options
}

type Options struct {
	Source    capture.Waiter
	Sinks     dispatch.Sinks
	Registry  *dispatch.Registry // nil: wait for config/keymap
	Dispatch  dispatch.Options
	IdleUs    uint32 // default 20ms
	MaxPulses int    // default capture.Capacity
	// StatsEvery publishes ir/stats after this many events.
	StatsEvery int
	// Drops reports edges lost by the source, if it counts them.
	Drops func() uint32
	Log   zerolog.Logger
}

// Service owns the single capture, decode and dispatch loop.
type Service struct {
	conn   *bus.Connection
	opts   Options
	log    zerolog.Logger
	reader *capture.Reader
	disp   *dispatch.Dispatcher
	stats  types.IRStats
	since  int
}

func New(conn *bus.Connection, opts Options) *Service {
	if opts.IdleUs == 0 {
		opts.IdleUs = DefaultIdleUs
	}
	if opts.MaxPulses == 0 {
		opts.MaxPulses = capture.Capacity
	}
	if opts.StatsEvery <= 0 {
		opts.StatsEvery = DefaultStatsEvery
	}
	return &Service{
		conn:   conn,
		opts:   opts,
		log:    opts.Log,
		reader: capture.NewReader(opts.Source),
		stats:  types.IRStats{ByError: map[string]uint32{}},
	}
}

// Start runs the loop on its own goroutine.
func (s *Service) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("ir service stopped")
		}
	}()
}

// Run blocks until ctx is done, the source runs dry, or capture is
// misconfigured.
func (s *Service) Run(ctx context.Context) error {
	kmSub := s.conn.Subscribe(TopicKeymap)
	defer s.conn.Unsubscribe(kmSub)

	if s.opts.Registry != nil {
		s.disp = dispatch.New(s.opts.Registry, s.opts.Sinks, s.withObserver(s.opts.Dispatch))
	} else {
		s.publishState("idle", "awaiting_keymap", nil)
		if err := s.awaitKeymap(ctx, kmSub); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	s.publishState("up", "capturing", nil)
	s.log.Info().Int("bindings", s.disp.Registry().Len()).Uint32("idle_us", s.opts.IdleUs).Msg("ir service started")
	defer func() {
		s.publishStats()
		s.publishState("stopped", "loop_exit", nil)
		s.log.Info().Msg("ir service stopping")
	}()

	for {
		if s.opts.Registry == nil {
			s.pollKeymap(kmSub)
		}
		seq, err := s.reader.Read(ctx, s.opts.IdleUs, s.opts.MaxPulses)
		switch {
		case err == nil, errors.Is(err, errcode.TooShort):
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		default:
			s.publishState("error", "capture_failed", err)
			return err
		}
		s.handle(seq)
	}
}

// handle decodes one capture, dispatches it and reports the event.
func (s *Service) handle(seq capture.Sequence) {
	r := nec.Decode(seq)
	o := s.disp.Dispatch(r)

	ev := types.IREvent{
		Kind:    types.EventKind(r.Kind.String()),
		Outcome: types.Outcome(o.String()),
		Pulses:  len(seq),
		TS:      timex.NowMs(),
	}
	s.stats.Frames++
	switch r.Kind {
	case nec.KindCode:
		s.stats.Codes++
		ev.Code = r.Code.String()
		if b, ok := s.disp.Registry().Lookup(r.Code); ok {
			ev.Label = b.Label
		}
	case nec.KindRepeat:
		s.stats.Repeats++
		if b, ok := s.disp.LastBinding(); ok {
			ev.Code = b.Code.String()
			ev.Label = b.Label
		}
	default:
		s.stats.Errors++
		s.stats.ByError[string(r.Err)]++
		ev.Error = string(r.Err)
	}
	if o.Invoked() {
		s.stats.Fired++
	}

	l := s.log.Debug()
	if o == dispatch.Failed {
		l = s.log.Warn().Err(s.disp.LastEffectError())
	}
	l.Str("kind", string(ev.Kind)).
		Str("code", ev.Code).
		Str("label", ev.Label).
		Str("error", ev.Error).
		Str("outcome", string(ev.Outcome)).
		Int("pulses", ev.Pulses).
		Msg("ir event")

	s.conn.Publish(s.conn.NewMessage(TopicEvent, ev, false))

	s.since++
	if s.since >= s.opts.StatsEvery {
		s.publishStats()
	}
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() types.IRStats {
	st := s.stats
	st.ByError = make(map[string]uint32, len(s.stats.ByError))
	for k, v := range s.stats.ByError {
		st.ByError[k] = v
	}
	if s.opts.Drops != nil {
		st.Drops = s.opts.Drops()
	}
	st.TS = timex.NowMs()
	return st
}

func (s *Service) publishStats() {
	s.since = 0
	s.conn.Publish(s.conn.NewMessage(TopicStats, s.Stats(), true))
}

// -----------------------------------------------------------------------------
// Keymap
// -----------------------------------------------------------------------------

func (s *Service) awaitKeymap(ctx context.Context, sub *bus.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Channel():
			if !ok {
				return errcode.NotConnected
			}
			if s.applyKeymap(msg.Payload) {
				return nil
			}
		}
	}
}

// pollKeymap picks up a replaced keymap between captures.
func (s *Service) pollKeymap(sub *bus.Subscription) {
	select {
	case msg, ok := <-sub.Channel():
		if ok {
			s.applyKeymap(msg.Payload)
		}
	default:
	}
}

func (s *Service) applyKeymap(p any) bool {
	km, ok := p.(Keymap)
	if !ok {
		s.log.Warn().Msgf("ignoring keymap payload of type %T", p)
		return false
	}
	reg, err := km.Registry()
	if err != nil {
		s.log.Error().Err(err).Msg("keymap rejected")
		s.publishState("error", "keymap_invalid", err)
		return false
	}
	opts := km.DispatchOptions()
	if s.opts.Dispatch.Clock != nil {
		opts.Clock = s.opts.Dispatch.Clock
	}
	s.disp = dispatch.New(reg, s.opts.Sinks, s.withObserver(opts))
	s.log.Info().Int("bindings", reg.Len()).Msg("keymap loaded")
	return true
}

func (s *Service) withObserver(o dispatch.Options) dispatch.Options {
	if o.Observer == nil {
		o.Observer = func(b dispatch.Binding, err error) {
			s.log.Warn().Err(err).Str("code", b.Code.String()).Str("effect", b.Effect.String()).Msg("effect failed")
		}
	}
	return o
}

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
}
