package commissioner

import "sync"

// HandleRegistry tracks driver-owned context pointers handed to the
// Matter stack as opaque callback state, matching
// AssociateStoredContext/FinalizeStoredContext/DisassociateStoredContext.
// It exists so a callback that fires after its driver has given up on an
// operation (timeout, shutdown) finds its context already disassociated
// and safely becomes a no-op instead of touching freed state.
type HandleRegistry[T any] struct {
	mu    sync.Mutex
	items map[*T]struct{}
}

// NewHandleRegistry returns an empty registry.
func NewHandleRegistry[T any]() *HandleRegistry[T] {
	return &HandleRegistry[T]{items: map[*T]struct{}{}}
}

// Associate registers context as valid for a pending callback.
func (r *HandleRegistry[T]) Associate(context *T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[context] = struct{}{}
}

// Finalize runs work against context exactly once, and only if context is
// still associated; it is disassociated as part of the same critical
// section so a racing Disassociate/Finalize can't both act on it.
func (r *HandleRegistry[T]) Finalize(context *T, work func(*T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[context]; !ok {
		return
	}
	work(context)
	delete(r.items, context)
}

// Disassociate invalidates context without running any callback work,
// e.g. because the driver is abandoning the operation.
func (r *HandleRegistry[T]) Disassociate(context *T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, context)
}

// IsAssociated reports whether context is still considered live.
func (r *HandleRegistry[T]) IsAssociated(context *T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[context]
	return ok
}
