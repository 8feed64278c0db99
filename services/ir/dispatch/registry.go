// services/ir/dispatch/registry.go
package dispatch

import (
	"time"

	"irremote-go/errcode"
	"irremote-go/services/ir/nec"
)

// MaxBindings bounds a registry.
const MaxBindings = 32

// Binding ties a code to an effect. Debounce overrides the dispatcher
// default when non-zero.
type Binding struct {
	Code     nec.Code
	Label    string
	Effect   Effect
	Debounce time.Duration
}

// Registry is a fixed table of bindings scanned linearly. It is immutable
// once built.
type Registry struct {
	n    int
	rows [MaxBindings]Binding
}

// NewRegistry builds a registry. Duplicate codes, nil effects or more than
// MaxBindings entries give errcode.InvalidParams.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	if len(bindings) > MaxBindings {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "dispatch.NewRegistry", Msg: "too many bindings"}
	}
	r := &Registry{}
	for _, b := range bindings {
		if b.Effect == nil {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "dispatch.NewRegistry", Msg: "nil effect for " + b.Code.String()}
		}
		if _, dup := r.Lookup(b.Code); dup {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "dispatch.NewRegistry", Msg: "duplicate code " + b.Code.String()}
		}
		r.rows[r.n] = b
		r.n++
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(bindings ...Binding) *Registry {
	r, err := NewRegistry(bindings...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds the binding for c.
func (r *Registry) Lookup(c nec.Code) (Binding, bool) {
	if r == nil {
		return Binding{}, false
	}
	for i := 0; i < r.n; i++ {
		if r.rows[i].Code == c {
			return r.rows[i], true
		}
	}
	return Binding{}, false
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.n
}

// Bindings returns a copy of the table in insertion order.
func (r *Registry) Bindings() []Binding {
	if r == nil {
		return nil
	}
	out := make([]Binding, r.n)
	copy(out, r.rows[:r.n])
	return out
}
