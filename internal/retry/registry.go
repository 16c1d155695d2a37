package retry

import "sync"

// KindHandler inspects an error and reports whether it fully handled
// it (spec §4.7's custom error-kind handler registry, "handled: bool"
// semantics) — e.g. a handler that swallows a known-benign error kind
// so it never reaches DLQ/retry accounting.
type KindHandler func(err error) (handled bool)

// Registry dispatches errors to registered per-kind handlers, falling
// through to the default retry/DLQ path when nothing claims the
// error — grounded on the teacher's typed-error taxonomy
// (internal/errors/errors.go), generalized from a closed type switch
// into an open registration API.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]KindHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]KindHandler)}
}

// Register installs h for kind, replacing any previous handler.
func (r *Registry) Register(kind Kind, h KindHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Dispatch classifies err (via its TaggedError kind, defaulting to
// KindPermanent if untagged) and runs the matching handler, reporting
// whether it claimed the error.
func (r *Registry) Dispatch(err error) (handled bool) {
	kind := KindPermanent
	if tagged, ok := err.(*TaggedError); ok {
		kind = tagged.Kind
	}

	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return h(err)
}
