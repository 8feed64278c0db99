// services/ir/capture/capture.go
package capture

import (
	"context"
	"io"

	"irremote-go/errcode"
)

// Pulse is a mark or space duration in microseconds.
type Pulse uint16

// Sequence is a captured pulse train. Even indices are marks, odd indices
// are spaces. When capture ends on idle the observed gap is the last entry.
type Sequence []Pulse

const (
	Capacity  = 120
	MinPulses = 8
	MaxPulse  = 65535

	MinIdleUs = 1_000
	MaxIdleUs = 200_000
)

// Reader captures into a fixed buffer. The returned Sequence aliases that
// buffer and stays valid until the next Read.
type Reader struct {
	src Waiter
	buf [Capacity]Pulse
}

func NewReader(src Waiter) *Reader { return &Reader{src: src} }

// Read blocks until the first edge, then records the gap between each pair
// of edges until maxPulses are held or the line stays quiet for
// timeoutIdleUs. ctx only interrupts the wait for the first edge.
//
// A capture shorter than MinPulses returns errcode.TooShort together with
// the pulses it did see. A finite source that runs dry before the first
// edge gives io.EOF.
func (r *Reader) Read(ctx context.Context, timeoutIdleUs uint32, maxPulses int) (Sequence, error) {
	if timeoutIdleUs < MinIdleUs || timeoutIdleUs > MaxIdleUs {
		return nil, errcode.InvalidParams
	}
	if maxPulses < MinPulses || maxPulses > Capacity {
		return nil, errcode.InvalidParams
	}

	first, err := r.waitFirst(ctx, timeoutIdleUs)
	if err != nil {
		return nil, err
	}

	frame := context.WithoutCancel(ctx)
	seq := r.buf[:0]
	prev := first.Us
	for len(seq) < maxPulses {
		wait := remaining(r.src.NowUs(), prev, timeoutIdleUs)
		st, ok := r.src.WaitEdge(frame, wait)
		if !ok {
			seq = append(seq, clamp(r.src.NowUs()-prev))
			break
		}
		seq = append(seq, clamp(st.Us-prev))
		prev = st.Us
	}

	if d, ok := r.src.(Drainer); ok {
		d.Drain()
	}
	if len(seq) < MinPulses {
		return seq, errcode.TooShort
	}
	return seq, nil
}

func (r *Reader) waitFirst(ctx context.Context, timeoutIdleUs uint32) (Stamp, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Stamp{}, err
		}
		if st, ok := r.src.WaitEdge(ctx, timeoutIdleUs); ok {
			return st, nil
		}
		if x, ok := r.src.(exhauster); ok && x.Exhausted() {
			return Stamp{}, io.EOF
		}
	}
}

// exhauster is implemented by finite sources such as recordings.
type exhauster interface{ Exhausted() bool }

// ReadPulses is Read on a fresh buffer; the result is owned by the caller.
func ReadPulses(ctx context.Context, src Waiter, timeoutIdleUs uint32, maxPulses int) (Sequence, error) {
	r := NewReader(src)
	seq, err := r.Read(ctx, timeoutIdleUs, maxPulses)
	if seq == nil {
		return nil, err
	}
	out := make(Sequence, len(seq))
	copy(out, seq)
	return out, err
}

// remaining is the part of the idle window still left after now.
func remaining(now, prev uint64, idle uint32) uint32 {
	if now <= prev {
		return idle
	}
	el := now - prev
	if el >= uint64(idle) {
		return 0
	}
	return idle - uint32(el)
}

func clamp(d uint64) Pulse {
	switch {
	case d > MaxPulse:
		return MaxPulse
	case d == 0:
		return 1
	}
	return Pulse(d)
}
