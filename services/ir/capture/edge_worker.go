// services/ir/capture/edge_worker.go
package capture

import (
	"sync"
	"sync/atomic"
)

// IRQPin is a GPIO input that can call a handler on edges.
type IRQPin interface {
	Get() bool
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// EdgeWorker timestamps pin edges from the ISR into a bounded queue.
// It implements FIFO.
type EdgeWorker struct {
	// Written by ISR; MUST NOT block the ISR:
	q   chan Stamp
	now func() uint64

	mu      sync.Mutex
	pin     IRQPin
	started bool

	drops uint32 // ISR drop counter
}

// NewEdgeWorker builds a worker for pin. now is the microsecond clock used
// for stamps; buf bounds the queue (one full NEC frame is 68 edges).
func NewEdgeWorker(pin IRQPin, now func() uint64, buf int) *EdgeWorker {
	if buf <= 0 {
		buf = 2 * Capacity
	}
	return &EdgeWorker{
		q:   make(chan Stamp, buf),
		now: now,
		pin: pin,
	}
}

// Start installs the ISR handler.
func (w *EdgeWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	// ISR handler: stamp, level read, non-blocking send.
	handler := func() {
		ts := w.now()
		e := EdgeFalling
		if w.pin.Get() {
			e = EdgeRising
		}
		select {
		case w.q <- Stamp{Us: ts, Edge: e}:
		default:
			atomic.AddUint32(&w.drops, 1) // protect ISR path
		}
	}
	if err := w.pin.SetIRQ(EdgeBoth, handler); err != nil {
		return err
	}
	w.started = true
	return nil
}

// Stop removes the ISR handler. Queued edges stay until drained.
func (w *EdgeWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return nil
	}
	w.started = false
	return w.pin.ClearIRQ()
}

func (w *EdgeWorker) NowUs() uint64 { return w.now() }

func (w *EdgeWorker) Pop() (Stamp, bool) {
	select {
	case st := <-w.q:
		return st, true
	default:
		return Stamp{}, false
	}
}

func (w *EdgeWorker) Drain() {
	for {
		select {
		case <-w.q:
		default:
			return
		}
	}
}

// Drops counts edges lost because the queue was full.
func (w *EdgeWorker) Drops() uint32 { return atomic.LoadUint32(&w.drops) }
