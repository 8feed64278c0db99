package indicator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/errcode"
	"irremote-go/types"
)

var (
	topicConfigIndicator = bus.Topic{"config", "indicator"}
	topicEvent           = bus.Topic{"ir", "event"}
)

const (
	DefaultInterval = 1 * time.Second
	DefaultFlash    = 150 * time.Millisecond
)

// LED is a single status output.
type LED interface{ Set(on bool) }

// Service blinks a heartbeat on the status LED and holds it on for a
// moment after each decode error. Short captures are line noise and do
// not flash.
type Service struct {
	led LED
	log zerolog.Logger

	interval time.Duration
	flash    time.Duration
	on       bool
	flashing bool
}

func New(led LED, log zerolog.Logger) *Service {
	return &Service{led: led, log: log, interval: DefaultInterval, flash: DefaultFlash}
}

func (s *Service) set(on bool) {
	s.on = on
	s.led.Set(on)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigIndicator)
	defer conn.Unsubscribe(cfgSub)
	evSub := conn.Subscribe(topicEvent)
	defer conn.Unsubscribe(evSub)

	var tick *time.Ticker
	var tickC <-chan time.Time
	resetTick := func() {
		if tick != nil {
			tick.Stop()
			tick, tickC = nil, nil
		}
		if s.interval > 0 {
			tick = time.NewTicker(s.interval)
			tickC = tick.C
		}
	}
	resetTick()
	defer func() {
		if tick != nil {
			tick.Stop()
		}
	}()

	flashT := time.NewTimer(time.Hour)
	flashT.Stop()
	defer flashT.Stop()

	s.set(false)
	for {
		select {
		case <-ctx.Done():
			s.set(false)
			s.log.Info().Msg("indicator service stopping")
			return
		case <-tickC:
			if !s.flashing {
				s.set(!s.on)
			}
		case <-flashT.C:
			s.flashing = false
			s.set(false)
		case msg := <-evSub.Channel():
			ev, ok := msg.Payload.(types.IREvent)
			if !ok || ev.Kind != types.EventError || ev.Error == string(errcode.TooShort) {
				continue
			}
			s.flashing = true
			s.set(true)
			flashT.Reset(s.flash)
		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.IndicatorConfig)
			if !ok {
				s.log.Warn().Msgf("ignoring indicator config of type %T", msg.Payload)
				continue
			}
			s.interval = time.Duration(cfg.IntervalMS) * time.Millisecond
			if cfg.FlashMS > 0 {
				s.flash = time.Duration(cfg.FlashMS) * time.Millisecond
			}
			resetTick()
			s.log.Info().Dur("interval", s.interval).Dur("flash", s.flash).Msg("indicator configured")
		}
	}
}

// Start the indicator service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
