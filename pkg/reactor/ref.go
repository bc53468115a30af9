package reactor

import "sync"

// Ref holds a mutable value that survives re-evaluation. Writing a ref
// never schedules the instance, and evaluation output must not depend on
// its value.
//
// Ref[T] is safe for concurrent access.
type Ref[T any] struct {
	value T
	isSet bool
	mu    sync.RWMutex
}

// NewRef creates a detached Ref. Components use UseRef instead.
func NewRef[T any](initial T) *Ref[T] {
	return &Ref[T]{value: initial}
}

// UseRef declares the next ref slot. The same *Ref is returned on every
// evaluation; initial is used on the first evaluation only.
//
//	nameInput := reactor.UseRef[string](inst, "")
//	// later, outside evaluation:
//	entered := nameInput.Current()
//	nameInput.Set("")
func UseRef[T any](inst *Instance, initial T) *Ref[T] {
	idx := inst.declareRef(func() any { return NewRef(initial) })
	if idx < 0 {
		return NewRef(initial)
	}
	r, ok := inst.refs[idx].(*Ref[T])
	if !ok {
		inst.setFault(&HookOrderError{Instance: inst.id, Kind: HookRef, Expected: len(inst.refs), Got: idx})
		return NewRef(initial)
	}
	return r
}

// Current returns the current value of the ref.
func (r *Ref[T]) Current() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set sets the ref's value.
func (r *Ref[T]) Set(value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
	r.isSet = true
}

// IsSet returns true if Set has been called since creation or Clear.
func (r *Ref[T]) IsSet() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isSet
}

// Clear resets the ref to its zero value.
func (r *Ref[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.value = zero
	r.isSet = false
}
