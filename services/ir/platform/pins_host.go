//go:build !rp2040 && !rp2350

package platform

import (
	"sync"

	"irremote-go/errcode"
	"irremote-go/services/ir/capture"
)

// FakePin is an in-memory GPIO. Driving it calls any installed handler
// as an edge interrupt would.
type FakePin struct {
	mu      sync.Mutex
	level   bool
	edge    capture.Edge
	handler func()
}

// NewFakePin returns a pin idling high, as an IR receiver output does.
func NewFakePin() *FakePin { return &FakePin{level: true} }

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Set drives the level and fires the handler on a matching edge.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level = level
	h, edge := p.handler, p.edge
	p.mu.Unlock()

	if h == nil || prev == level {
		return
	}
	if (level && edge&capture.EdgeRising != 0) || (!level && edge&capture.EdgeFalling != 0) {
		h()
	}
}

func (p *FakePin) SetIRQ(edge capture.Edge, handler func()) error {
	if edge == capture.EdgeNone || handler == nil {
		return errcode.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return &errcode.E{C: errcode.Error, Op: "set_irq", Msg: "handler already installed"}
	}
	p.edge, p.handler = edge, handler
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edge, p.handler = capture.EdgeNone, nil
	return nil
}
