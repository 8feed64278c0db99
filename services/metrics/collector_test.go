//go:build !rp2040 && !rp2350

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"irremote-go/bus"
	"irremote-go/types"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	return w.Body.String()
}

func TestMetricsEndpoint(t *testing.T) {
	c := NewCollector()
	c.Observe(types.IREvent{Kind: types.EventCode, Code: "FF02BF40", Label: "vol_up", Outcome: types.OutcomeFired, TS: 1_700_000_000_000})
	c.Observe(types.IREvent{Kind: types.EventRepeat, Code: "FF02BF40", Label: "vol_up", Outcome: types.OutcomeFired})
	c.Observe(types.IREvent{Kind: types.EventError, Error: "bad_bit", Outcome: types.OutcomeIgnored, TS: 1_700_000_001_000})
	c.ObserveStats(types.IRStats{Drops: 3})

	body := scrape(t, c)
	for _, want := range []string{
		`irremote_events_total{kind="code"} 1`,
		`irremote_events_total{kind="repeat"} 1`,
		`irremote_events_total{kind="error"} 1`,
		`irremote_dispatch_outcomes_total{outcome="fired"} 2`,
		`irremote_decode_errors_total{code="bad_bit"} 1`,
		`irremote_codes_total{code="FF02BF40",label="vol_up"} 2`,
		`irremote_capture_drops 3`,
		`irremote_last_event_timestamp 1.700000001e+09`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestCollector_RunFromBus(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("metrics_test")
	c := NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Publish(conn.NewMessage(topicStats, types.IRStats{Drops: 9}, true))
	go c.Run(ctx, conn)

	deadline := time.Now().Add(time.Second)
	for {
		conn.Publish(conn.NewMessage(topicEvent, types.IREvent{Kind: types.EventCode, Code: "00FF45BA"}, false))
		body := scrape(t, c)
		if strings.Contains(body, `irremote_capture_drops 9`) && strings.Contains(body, `code="00FF45BA"`) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("bus traffic not collected:\n%s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
