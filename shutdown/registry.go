package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sinvec/gimp-kandinsky/core"
)

type handler struct {
	name     string
	priority int // lower runs first
	fn       core.ShutdownFunc
}

// Registry holds cleanup handlers ordered by priority. Handlers with equal
// priority run in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers []handler
	closed   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler. Registrations after Run are ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.handlers = append(r.handlers, handler{name: name, priority: priority, fn: fn})
}

func (r *Registry) sorted() []handler {
	out := make([]handler, len(r.handlers))
	copy(out, r.handlers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].priority < out[j].priority })
	return out
}

// Run calls every handler in order, even after failures, and returns the
// errors prefixed with the handler name. The registry is closed afterwards.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handlers := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists handler names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sorted()
	names := make([]string, len(sorted))
	for i, h := range sorted {
		names[i] = h.name
	}
	return names
}
