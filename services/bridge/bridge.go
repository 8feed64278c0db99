// bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/errcode"
	"irremote-go/types"
	"irremote-go/x/strx"
	"irremote-go/x/timex"
)

var (
	topicConfigBridge = bus.Topic{"config", "bridge"}
	topicState        = bus.Topic{"bridge", "state"}
	topicEvent        = bus.Topic{"ir", "event"}
	topicStats        = bus.Topic{"ir", "stats"}
)

const (
	DefaultPort     = 1883
	DefaultPrefix   = "irremote"
	DefaultClientID = "irremote"
)

// -----------------------------------------------------------------------------
// Transport
// -----------------------------------------------------------------------------

// Publisher is a connected broker session.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Dialer opens a session. onLost is called at most once if the session
// drops after Dial returns.
type Dialer func(ctx context.Context, cfg types.BridgeConfig, onLost func(error)) (Publisher, error)

// Dial is the platform's broker dialler; nil where no network stack exists.
var Dial Dialer

var errNoDial = errors.New("no broker transport on this platform")

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start runs the bridge with the platform dialler. It blocks until ctx is
// cancelled.
func Start(ctx context.Context, conn *bus.Connection, log zerolog.Logger) {
	New(conn, Dial, log).Run(ctx)
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Service forwards IR events and stats from the bus to an MQTT broker under
// the configured topic prefix.
type Service struct {
	conn *bus.Connection
	dial Dialer
	log  zerolog.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores types.BridgeConfig
}

func New(conn *bus.Connection, dial Dialer, log zerolog.Logger) *Service {
	return &Service{conn: conn, dial: dial, log: log}
}

// Run waits for config and supervises a single broker session.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigBridge)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.log.Error().Err(err).Msg("bridge config rejected")
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

// Config returns the config in use, if any.
func (s *Service) Config() (types.BridgeConfig, bool) {
	cfg, ok := s.curCfg.Load().(types.BridgeConfig)
	return cfg, ok
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg types.BridgeConfig) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg types.BridgeConfig) {
	if s.dial == nil {
		s.publishState("error", "transport_init_failed", errNoDial)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		if ctx.Err() != nil {
			return
		}

		lost := make(chan error, 1)
		pub, err := s.dial(ctx, cfg, func(err error) {
			select {
			case lost <- err:
			default:
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := backoff()
			s.log.Warn().Err(err).Dur("retry_in", delay).Str("broker", cfg.Broker).Msg("broker dial failed")
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info().Str("broker", cfg.Broker).Int("port", cfg.Port).Str("prefix", cfg.TopicPrefix).Msg("bridge up")
		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, cfg, pub, lost)
		pub.Close()
		if err == nil {
			return
		}
		delay := backoff()
		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("bridge link lost")
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// handleLink forwards bus traffic until ctx ends (nil) or the session
// fails (non-nil).
func (s *Service) handleLink(ctx context.Context, cfg types.BridgeConfig, pub Publisher, lost <-chan error) error {
	evSub := s.conn.Subscribe(topicEvent)
	defer s.conn.Unsubscribe(evSub)
	stSub := s.conn.Subscribe(topicStats)
	defer s.conn.Unsubscribe(stSub)

	evTopic := cfg.TopicPrefix + "/event"
	stTopic := cfg.TopicPrefix + "/stats"

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-lost:
			if err == nil {
				err = errcode.NotConnected
			}
			return err
		case msg := <-evSub.Channel():
			if err := forward(pub, evTopic, 0, false, msg.Payload); err != nil {
				return err
			}
		case msg := <-stSub.Channel():
			if err := forward(pub, stTopic, 1, true, msg.Payload); err != nil {
				return err
			}
		}
	}
}

func forward(pub Publisher, topic string, qos byte, retained bool, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		// Not the link's fault; drop the message.
		return nil
	}
	return pub.Publish(topic, qos, retained, b)
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (types.BridgeConfig, error) {
	var cfg types.BridgeConfig
	switch v := p.(type) {
	case types.BridgeConfig:
		cfg = v
	case *types.BridgeConfig:
		if v == nil {
			return cfg, errcode.InvalidConfig
		}
		cfg = *v
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, errcode.Wrap(errcode.InvalidConfig, "bridge.config", err)
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, errcode.Wrap(errcode.InvalidConfig, "bridge.config", err)
		}
	default:
		return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "bridge.config", Msg: fmt.Sprintf("unsupported payload type %T", p)}
	}
	if cfg.Broker == "" {
		return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "bridge.config", Msg: "broker required"}
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	cfg.TopicPrefix = strx.Coalesce(cfg.TopicPrefix, DefaultPrefix)
	cfg.ClientID = strx.Coalesce(cfg.ClientID, DefaultClientID)
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
