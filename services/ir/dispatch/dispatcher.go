// services/ir/dispatch/dispatcher.go
package dispatch

import (
	"time"

	"irremote-go/errcode"
	"irremote-go/services/ir/nec"
	"irremote-go/x/timex"
)

const (
	DefaultDebounce     = 150 * time.Millisecond
	DefaultRepeatWindow = 200 * time.Millisecond
)

// Outcome is what Dispatch did with one event.
type Outcome uint8

const (
	Ignored   Outcome = iota // decode error
	Fired                    // effect invoked and succeeded
	Failed                   // effect invoked and its sink returned an error
	Debounced                // same code inside its debounce window
	Unbound                  // code not in the registry
	Dropped                  // repeat with no live code
)

func (o Outcome) String() string {
	switch o {
	case Fired:
		return "fired"
	case Failed:
		return "failed"
	case Debounced:
		return "debounced"
	case Unbound:
		return "unbound"
	case Dropped:
		return "dropped"
	}
	return "ignored"
}

// Invoked reports whether the effect ran.
func (o Outcome) Invoked() bool { return o == Fired || o == Failed }

// Observer is told about effect failures. It runs on the dispatch path
// and must not block.
type Observer func(b Binding, err error)

type Options struct {
	Debounce     time.Duration // default 150ms; per-binding Debounce overrides
	RepeatWindow time.Duration // default 200ms
	Clock        timex.Clock   // default timex.System
	Observer     Observer
}

// Dispatcher maps decoder results to effects. It is owned by the capture
// loop and is not safe for concurrent use.
type Dispatcher struct {
	reg   *Registry
	sinks Sinks
	opts  Options

	active  bool
	last    Binding
	tLast   time.Time
	lastErr errcode.Code
	effErr  error
}

func New(reg *Registry, sinks Sinks, opts Options) *Dispatcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RepeatWindow <= 0 {
		opts.RepeatWindow = DefaultRepeatWindow
	}
	if opts.Clock == nil {
		opts.Clock = timex.System
	}
	return &Dispatcher{reg: reg, sinks: sinks, opts: opts}
}

// Dispatch handles one decoder result.
//
//	Idle          --code c-->                Active(c, now)   invoke
//	Active(c, t)  --code c, now-t < deb-->   Active(c, t)
//	Active(c, t)  --code c, now-t >= deb-->  Active(c, now)   invoke
//	Active(c, t)  --code c' != c-->          Active(c', now)  invoke
//	Active(c, t)  --repeat, now-t < win-->   Active(c, now)   invoke
//	Active(c, t)  --repeat, now-t >= win-->  Active(c, t)
//
// Unbound codes and decode errors leave the state alone.
func (d *Dispatcher) Dispatch(r nec.Result) Outcome {
	switch r.Kind {
	case nec.KindCode:
		b, ok := d.reg.Lookup(r.Code)
		if !ok {
			return Unbound
		}
		now := d.opts.Clock.Now()
		if d.active && d.last.Code == r.Code && now.Sub(d.tLast) < d.debounce(b) {
			return Debounced
		}
		d.active, d.last, d.tLast = true, b, now
		return d.invoke(b)

	case nec.KindRepeat:
		if !d.active {
			return Dropped
		}
		now := d.opts.Clock.Now()
		if now.Sub(d.tLast) >= d.opts.RepeatWindow {
			return Dropped
		}
		d.tLast = now
		return d.invoke(d.last)

	default:
		d.lastErr = r.Err
		return Ignored
	}
}

func (d *Dispatcher) debounce(b Binding) time.Duration {
	if b.Debounce > 0 {
		return b.Debounce
	}
	return d.opts.Debounce
}

func (d *Dispatcher) invoke(b Binding) Outcome {
	if err := d.sinks.Apply(b.Effect); err != nil {
		d.effErr = err
		if d.opts.Observer != nil {
			d.opts.Observer(b, err)
		}
		return Failed
	}
	return Fired
}

// LastCode is the most recently invoked code, if any.
func (d *Dispatcher) LastCode() (nec.Code, bool) { return d.last.Code, d.active }

// LastBinding is the binding LastCode belongs to.
func (d *Dispatcher) LastBinding() (Binding, bool) { return d.last, d.active }

// LastEmit is the time of the most recent invocation.
func (d *Dispatcher) LastEmit() time.Time { return d.tLast }

// LastError is the most recent decode error, or errcode.OK.
func (d *Dispatcher) LastError() errcode.Code {
	if d.lastErr == "" {
		return errcode.OK
	}
	return d.lastErr
}

// LastEffectError is the most recent sink failure, or nil.
func (d *Dispatcher) LastEffectError() error { return d.effErr }

// Registry returns the table in use.
func (d *Dispatcher) Registry() *Registry { return d.reg }
