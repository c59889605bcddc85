package bot

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Registry maps triggers to descriptors. Command modules add their
// descriptors at startup; once sealed the registry is read-only.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	sealed    bool
	byTrigger map[string]*Descriptor
	all       []*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTrigger: make(map[string]*Descriptor)}
}

// Register adds d. Every trigger must be non-blank and unique across the
// registry; d is rejected as a whole if any trigger collides.
func (r *Registry) Register(d Descriptor) error {
	if d.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNoHandler, d.Name)
	}
	triggers := make([]string, 0, len(d.Triggers))
	seen := make(map[string]bool, len(d.Triggers))
	for _, t := range d.Triggers {
		t = strings.TrimLeft(strings.TrimSpace(t), "/!")
		if t == "" || strings.ContainsAny(t, " \t\n@") {
			continue
		}
		if k := foldTrigger(t); !seen[k] {
			seen[k] = true
			triggers = append(triggers, t)
		}
	}
	if len(triggers) == 0 {
		return fmt.Errorf("%w: %q", ErrNoTriggers, d.Name)
	}
	d.Triggers = triggers
	if d.Name == "" {
		d.Name = triggers[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	for _, t := range triggers {
		if prev, ok := r.byTrigger[foldTrigger(t)]; ok {
			return fmt.Errorf("%w: %q (by %q)", ErrDuplicateTrigger, t, prev.Name)
		}
	}
	desc := &d
	for _, t := range triggers {
		r.byTrigger[foldTrigger(t)] = desc
	}
	r.all = append(r.all, desc)
	return nil
}

// MustRegister is like Register but panics on error. Intended for startup.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor registered for trigger.
func (r *Registry) Lookup(trigger string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byTrigger[foldTrigger(trigger)]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.all))
	for i, d := range r.all {
		out[i] = *d
	}
	return out
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// foldTrigger normalizes a trigger for case-insensitive matching.
// cases.Caser is stateful, so a new one is built per call.
func foldTrigger(s string) string {
	return cases.Fold().String(s)
}
