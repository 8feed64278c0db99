// bridge/bridge_test.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/errcode"
	"irremote-go/types"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu     sync.Mutex
	dials  int
	fail   error
	onLost func(error)
	cfg    types.BridgeConfig
	out    chan published
	closed int
}

func newFakeBroker() *fakeBroker { return &fakeBroker{out: make(chan published, 16)} }

func (f *fakeBroker) dial(_ context.Context, cfg types.BridgeConfig, onLost func(error)) (Publisher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.fail != nil {
		return nil, f.fail
	}
	f.cfg, f.onLost = cfg, onLost
	return f, nil
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.out <- published{topic, qos, retained, payload}
	return nil
}

func (f *fakeBroker) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeBroker) drop(err error) {
	f.mu.Lock()
	lost := f.onLost
	f.mu.Unlock()
	lost(err)
}

func startBridge(t *testing.T, dial Dialer) (*bus.Connection, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go New(conn, dial, zerolog.Nop()).Run(ctx)

	stateSub := conn.Subscribe(topicState)
	t.Cleanup(func() { conn.Unsubscribe(stateSub) })
	assertState(t, nextState(t, stateSub), "idle", "awaiting_config")
	return conn, stateSub
}

func TestBridge_ForwardsEventsAndStats(t *testing.T) {
	fb := newFakeBroker()
	conn, stateSub := startBridge(t, fb.dial)

	conn.Publish(conn.NewMessage(topicConfigBridge, types.BridgeConfig{Broker: "mqtt.local", TopicPrefix: "den"}, false))
	assertState(t, nextState(t, stateSub), "up", "link_established")

	fb.mu.Lock()
	cfg := fb.cfg
	fb.mu.Unlock()
	if cfg.Port != DefaultPort || cfg.ClientID != DefaultClientID {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	// The forwarder subscribes after reporting up; retry until it is listening.
	ev := types.IREvent{Kind: types.EventCode, Code: "00FF45BA", Label: "power", Outcome: types.OutcomeFired}
	var got published
	deadline := time.After(time.Second)
	for got.topic == "" {
		conn.Publish(conn.NewMessage(topicEvent, ev, false))
		select {
		case got = <-fb.out:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("event not forwarded")
		}
	}
	if got.topic != "den/event" || got.retained || got.qos != 0 {
		t.Fatalf("event publish = %+v", got)
	}
	var back types.IREvent
	if err := json.Unmarshal(got.payload, &back); err != nil || back.Code != "00FF45BA" || back.Label != "power" {
		t.Fatalf("payload %s: %v", got.payload, err)
	}
	drain(fb.out)

	conn.Publish(conn.NewMessage(topicStats, types.IRStats{Frames: 4, Codes: 3}, true))
	select {
	case p := <-fb.out:
		if p.topic != "den/stats" || !p.retained || p.qos != 1 {
			t.Fatalf("stats publish = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("stats not forwarded")
	}
}

func TestBridge_RedialsAfterLinkLoss(t *testing.T) {
	fb := newFakeBroker()
	conn, stateSub := startBridge(t, fb.dial)

	conn.Publish(conn.NewMessage(topicConfigBridge, `{"broker":"10.0.0.2","port":1884}`, false))
	assertState(t, nextState(t, stateSub), "up", "link_established")

	fb.drop(errors.New("connection reset"))
	assertState(t, nextState(t, stateSub), "degraded", "link_lost_retrying")
	assertState(t, nextState(t, stateSub), "up", "link_established")

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.dials != 2 || fb.closed != 1 {
		t.Fatalf("dials=%d closed=%d", fb.dials, fb.closed)
	}
}

func TestBridge_DialFailureDegrades(t *testing.T) {
	fb := newFakeBroker()
	fb.fail = errors.New("refused")
	conn, stateSub := startBridge(t, fb.dial)

	conn.Publish(conn.NewMessage(topicConfigBridge, types.BridgeConfig{Broker: "nowhere"}, false))
	st := nextState(t, stateSub)
	assertState(t, st, "degraded", "dial_failed_retrying")
	if st.Error == "" {
		t.Fatal("missing error text")
	}
}

func TestBridge_BadConfigAndNoTransport(t *testing.T) {
	conn, stateSub := startBridge(t, nil)

	conn.Publish(conn.NewMessage(topicConfigBridge, "not json", false))
	assertState(t, nextState(t, stateSub), "error", "config_decode_failed")

	conn.Publish(conn.NewMessage(topicConfigBridge, types.BridgeConfig{Broker: "x"}, false))
	assertState(t, nextState(t, stateSub), "error", "transport_init_failed")
}

func TestDecodeConfig(t *testing.T) {
	if _, err := decodeConfig(types.BridgeConfig{}); !errors.Is(err, errcode.InvalidConfig) {
		t.Fatalf("missing broker err = %v", err)
	}
	if _, err := decodeConfig(42); !errors.Is(err, errcode.InvalidConfig) {
		t.Fatalf("bad type err = %v", err)
	}
	cfg, err := decodeConfig([]byte(`{"broker":"b","topic_prefix":"p","client_id":"c"}`))
	if err != nil || cfg.TopicPrefix != "p" || cfg.ClientID != "c" || cfg.Port != DefaultPort {
		t.Fatalf("cfg = %+v, %v", cfg, err)
	}
}

func TestBackoffSeq(t *testing.T) {
	next := backoffSeq(100*time.Millisecond, 350*time.Millisecond)
	want := []time.Duration{100, 200, 350, 350}
	for i, w := range want {
		if d := next(); d != w*time.Millisecond {
			t.Fatalf("step %d = %v, want %v", i, d, w*time.Millisecond)
		}
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func nextState(t *testing.T, sub *bus.Subscription) types.ServiceState {
	t.Helper()
	select {
	case m := <-sub.Channel():
		st, ok := m.Payload.(types.ServiceState)
		if !ok {
			t.Fatalf("state payload %T", m.Payload)
		}
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bridge/state")
	}
	return types.ServiceState{}
}

func assertState(t *testing.T, st types.ServiceState, level, status string) {
	t.Helper()
	if st.Level != level || st.Status != status {
		t.Fatalf("state = %s/%s (%s), want %s/%s", st.Level, st.Status, st.Error, level, status)
	}
}

func drain(c chan published) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}
