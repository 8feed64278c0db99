//go:build !rp2040 && !rp2350

package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"irremote-go/bus"
	"irremote-go/types"
)

const namespace = "irremote"

var (
	topicEvent = bus.Topic{"ir", "event"}
	topicStats = bus.Topic{"ir", "stats"}
)

type codeKey struct{ code, label string }

// Collector exports IR activity seen on the bus.
type Collector struct {
	mu       sync.RWMutex
	kinds    map[string]float64
	outcomes map[string]float64
	errors   map[string]float64
	codes    map[codeKey]float64
	drops    float64
	lastTS   float64

	eventsDesc   *prometheus.Desc
	outcomesDesc *prometheus.Desc
	errorsDesc   *prometheus.Desc
	codesDesc    *prometheus.Desc
	dropsDesc    *prometheus.Desc
	lastDesc     *prometheus.Desc
}

func NewCollector() *Collector {
	return &Collector{
		kinds:    map[string]float64{},
		outcomes: map[string]float64{},
		errors:   map[string]float64{},
		codes:    map[codeKey]float64{},

		eventsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_total"),
			"Decoded IR events by kind",
			[]string{"kind"}, nil,
		),
		outcomesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "outcomes_total"),
			"Dispatcher outcomes",
			[]string{"outcome"}, nil,
		),
		errorsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "decode_errors_total"),
			"Decode failures by error code",
			[]string{"code"}, nil,
		),
		codesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "codes_total"),
			"Frames and repeats received per NEC code",
			[]string{"code", "label"}, nil,
		),
		dropsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "capture", "drops"),
			"Edges lost because the capture queue was full",
			nil, nil,
		),
		lastDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_event_timestamp"),
			"Unix time of the last IR event",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.eventsDesc
	ch <- c.outcomesDesc
	ch <- c.errorsDesc
	ch <- c.codesDesc
	ch <- c.dropsDesc
	ch <- c.lastDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.kinds {
		ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, v, k)
	}
	for o, v := range c.outcomes {
		ch <- prometheus.MustNewConstMetric(c.outcomesDesc, prometheus.CounterValue, v, o)
	}
	for e, v := range c.errors {
		ch <- prometheus.MustNewConstMetric(c.errorsDesc, prometheus.CounterValue, v, e)
	}
	for k, v := range c.codes {
		ch <- prometheus.MustNewConstMetric(c.codesDesc, prometheus.CounterValue, v, k.code, k.label)
	}
	ch <- prometheus.MustNewConstMetric(c.dropsDesc, prometheus.GaugeValue, c.drops)
	ch <- prometheus.MustNewConstMetric(c.lastDesc, prometheus.GaugeValue, c.lastTS)
}

// Observe counts one IR event.
func (c *Collector) Observe(ev types.IREvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.kinds[string(ev.Kind)]++
	if ev.Outcome != "" {
		c.outcomes[string(ev.Outcome)]++
	}
	if ev.Kind == types.EventError {
		c.errors[ev.Error]++
	} else if ev.Code != "" {
		c.codes[codeKey{ev.Code, ev.Label}]++
	}
	c.lastTS = float64(ev.TS) / 1000
}

// ObserveStats takes the capture counters from a stats snapshot.
func (c *Collector) ObserveStats(st types.IRStats) {
	c.mu.Lock()
	c.drops = float64(st.Drops)
	c.mu.Unlock()
}

// Run feeds the collector from the bus until ctx is done.
func (c *Collector) Run(ctx context.Context, conn *bus.Connection) {
	evSub := conn.Subscribe(topicEvent)
	defer conn.Unsubscribe(evSub)
	stSub := conn.Subscribe(topicStats)
	defer conn.Unsubscribe(stSub)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-evSub.Channel():
			if ev, ok := m.Payload.(types.IREvent); ok {
				c.Observe(ev)
			}
		case m := <-stSub.Channel():
			if st, ok := m.Payload.(types.IRStats); ok {
				c.ObserveStats(st)
			}
		}
	}
}
