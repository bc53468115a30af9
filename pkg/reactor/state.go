package reactor

import "fmt"

// Updater computes the next value of a state slot. Updaters are applied at
// the start of the instance's next pass, in the order they were queued.
type Updater interface {
	apply(prev any) any
}

type setUpdater struct{ value any }

func (u setUpdater) apply(any) any { return u.value }

type funcUpdater func(prev any) any

func (f funcUpdater) apply(prev any) any { return f(prev) }

// Set returns an Updater that replaces the slot value.
func Set(v any) Updater {
	return setUpdater{value: v}
}

// Apply returns an Updater that derives the next value from the latest
// committed one. It returns nil when fn is nil.
func Apply(fn func(prev any) any) Updater {
	if fn == nil {
		return nil
	}
	return funcUpdater(fn)
}

// Setter queues updates to one typed state slot. It is safe to use from any
// goroutine and remains valid for the lifetime of the instance.
type Setter[T any] struct {
	rt    *Runtime
	id    InstanceID
	index int
}

// Index returns the slot index.
func (s Setter[T]) Index() int {
	return s.index
}

// Set queues a replacement value.
func (s Setter[T]) Set(v T) error {
	if s.rt == nil {
		return fmt.Errorf("reactor: setter used before declaration")
	}
	return s.rt.Update(s.id, s.index, Set(v))
}

// Update queues fn applied to the latest committed value.
func (s Setter[T]) Update(fn func(T) T) error {
	if s.rt == nil {
		return fmt.Errorf("reactor: setter used before declaration")
	}
	if fn == nil {
		return ErrNilUpdater
	}
	return s.rt.Update(s.id, s.index, Apply(func(prev any) any {
		p, _ := prev.(T)
		return fn(p)
	}))
}

// UseState declares the next state slot and returns its committed value and
// a setter. Slots must be declared in the same order on every evaluation.
//
//	users, setUsers := reactor.UseState(inst, []User(nil))
//	setUsers.Update(func(prev []User) []User { return append(prev, u) })
func UseState[T any](inst *Instance, initial T) (T, Setter[T]) {
	idx := inst.DeclareSlot(initial)
	s := Setter[T]{rt: inst.rt, id: inst.id, index: idx}
	if idx < 0 {
		return initial, s
	}

	v, err := inst.Read(idx)
	if err != nil {
		inst.setFault(err)
		return initial, s
	}
	if v == nil {
		var zero T
		return zero, s
	}
	tv, ok := v.(T)
	if !ok {
		inst.setFault(fmt.Errorf("reactor: instance %d state slot %d holds %T, want %T", inst.id, idx, v, initial))
		return initial, s
	}
	return tv, s
}
