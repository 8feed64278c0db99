// services/ir/capture/source.go
package capture

import (
	"context"
	"runtime"
	"time"
)

type Edge uint8

const (
	EdgeNone    Edge = 0
	EdgeRising  Edge = 1
	EdgeFalling Edge = 2
	EdgeBoth    Edge = EdgeRising | EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return "none"
}

// Stamp is one edge and the microsecond time it was seen.
type Stamp struct {
	Us   uint64
	Edge Edge
}

// Waiter is an edge source that can block for the next edge.
type Waiter interface {
	NowUs() uint64
	// WaitEdge returns the next edge, or false if none arrives within
	// timeoutUs or ctx is done.
	WaitEdge(ctx context.Context, timeoutUs uint32) (Stamp, bool)
}

// FIFO is an edge source filled asynchronously, usually from an ISR.
type FIFO interface {
	NowUs() uint64
	Pop() (Stamp, bool)
	Drain()
}

// Drainer is implemented by sources that buffer edges.
type Drainer interface{ Drain() }

// Poll adapts a FIFO to a Waiter by polling it, yielding the processor
// between empty polls.
func Poll(f FIFO) Waiter { return &poller{f: f} }

// PollEvery is Poll with a sleep between empty polls instead of a yield.
func PollEvery(f FIFO, every time.Duration) Waiter { return &poller{f: f, every: every} }

type poller struct {
	f     FIFO
	every time.Duration
}

func (p *poller) NowUs() uint64 { return p.f.NowUs() }
func (p *poller) Drain()        { p.f.Drain() }

func (p *poller) WaitEdge(ctx context.Context, timeoutUs uint32) (Stamp, bool) {
	deadline := p.f.NowUs() + uint64(timeoutUs)
	for {
		if st, ok := p.f.Pop(); ok {
			return st, true
		}
		if ctx.Err() != nil || p.f.NowUs() >= deadline {
			return Stamp{}, false
		}
		if p.every > 0 {
			time.Sleep(p.every)
		} else {
			runtime.Gosched()
		}
	}
}

// -----------------------------------------------------------------------------
// Recorded edges
// -----------------------------------------------------------------------------

// SliceSource replays recorded edges on a virtual clock. Waiting advances
// the clock to the next edge, or by the full timeout when the next edge is
// further away.
type SliceSource struct {
	stamps []Stamp
	next   int
	now    uint64
}

func NewSliceSource(stamps ...Stamp) *SliceSource {
	return &SliceSource{stamps: stamps}
}

// FromPulses builds edges for a pulse train starting at t0, alternating
// falling (mark start) and rising edges as an active-low receiver does.
func FromPulses(t0 uint64, pulses ...Pulse) []Stamp {
	out := make([]Stamp, 0, len(pulses)+1)
	t, e := t0, EdgeFalling
	out = append(out, Stamp{Us: t, Edge: e})
	for _, p := range pulses {
		t += uint64(p)
		if e == EdgeFalling {
			e = EdgeRising
		} else {
			e = EdgeFalling
		}
		out = append(out, Stamp{Us: t, Edge: e})
	}
	return out
}

// Append queues more edges behind the ones not yet replayed.
func (s *SliceSource) Append(stamps ...Stamp) { s.stamps = append(s.stamps, stamps...) }

func (s *SliceSource) NowUs() uint64 { return s.now }

// Exhausted reports whether every recorded edge has been replayed.
func (s *SliceSource) Exhausted() bool { return s.next >= len(s.stamps) }

func (s *SliceSource) WaitEdge(ctx context.Context, timeoutUs uint32) (Stamp, bool) {
	if ctx.Err() != nil {
		return Stamp{}, false
	}
	if s.next < len(s.stamps) {
		st := s.stamps[s.next]
		if st.Us <= s.now || st.Us-s.now <= uint64(timeoutUs) {
			s.next++
			if st.Us > s.now {
				s.now = st.Us
			}
			return st, true
		}
	}
	s.now += uint64(timeoutUs)
	return Stamp{}, false
}
