package reactor

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vango-dev/reactor/pkg/portal"
)

// InstanceID identifies a mounted instance. It is the handle hosts pass to
// Update and Unmount.
type InstanceID uint64

// Render is the opaque render description produced by an evaluation.
type Render = any

// Evaluable produces a render description and effect descriptors from an
// instance's committed state. Evaluate must be a pure function of committed
// state; ref values are exempt.
type Evaluable interface {
	Evaluate(inst *Instance) (Render, []EffectDescriptor, error)
}

// EvaluableFunc adapts a function to Evaluable.
type EvaluableFunc func(inst *Instance) (Render, []EffectDescriptor, error)

// Evaluate calls f.
func (f EvaluableFunc) Evaluate(inst *Instance) (Render, []EffectDescriptor, error) {
	return f(inst)
}

// Named attaches a display name to an Evaluable for logs and devtools.
func Named(name string, ev Evaluable) Evaluable {
	return namedEvaluable{Evaluable: ev, name: name}
}

type namedEvaluable struct {
	Evaluable
	name string
}

func (n namedEvaluable) Name() string { return n.name }

// Phase is the scheduler state of an instance.
type Phase uint8

const (
	PhaseUnmounted Phase = iota
	PhaseMounting
	PhaseClean
	PhaseDirty
	PhaseEvaluating
	PhaseUnmounting
	PhaseFailed
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUnmounted:
		return "unmounted"
	case PhaseMounting:
		return "mounting"
	case PhaseClean:
		return "clean"
	case PhaseDirty:
		return "dirty"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseUnmounting:
		return "unmounting"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type pendingUpdate struct {
	slot    int
	updater Updater
}

// Instance is one live stateful unit. Its hook methods are valid only while
// its Evaluable runs.
type Instance struct {
	id   InstanceID
	name string
	rt   *Runtime
	ev   Evaluable

	logger *slog.Logger

	// Guarded by rt.mu.
	phase        Phase
	pending      []pendingUpdate
	stateCount   int // -1 until the first evaluation completes
	mountStarted bool
	failure      error
	info         InstanceInfo

	unmountRequested atomic.Bool

	// Owned by the driver.
	states      []any
	refs        []any
	effects     []effectSlot
	markers     []portal.Marker
	lastRender  Render
	stateIdx    int
	refIdx      int
	evaluating  bool
	evaluated   bool
	recorded    bool
	fault       error
	evaluations uint64
}

func newInstance(rt *Runtime, id InstanceID, ev Evaluable) *Instance {
	inst := &Instance{
		id:         id,
		rt:         rt,
		ev:         ev,
		phase:      PhaseMounting,
		stateCount: -1,
	}
	if n, ok := ev.(interface{ Name() string }); ok {
		inst.name = n.Name()
	}
	inst.logger = rt.logger.With("instance", uint64(id))
	if inst.name != "" {
		inst.logger = inst.logger.With("component", inst.name)
	}
	return inst
}

// ID returns the instance handle.
func (inst *Instance) ID() InstanceID {
	return inst.id
}

// Name returns the display name given with Named, if any.
func (inst *Instance) Name() string {
	return inst.name
}

// Logger returns the runtime logger annotated with this instance.
func (inst *Instance) Logger() *slog.Logger {
	return inst.logger
}

// Evaluations returns the number of completed evaluations.
func (inst *Instance) Evaluations() uint64 {
	return inst.evaluations
}

// DeclareSlot declares the next positional state slot and returns its
// index. The initial value is stored on the first evaluation only.
// Outside evaluation it returns -1.
func (inst *Instance) DeclareSlot(initial any) int {
	if !inst.evaluating {
		return -1
	}
	idx := inst.stateIdx
	inst.stateIdx++

	if !inst.evaluated {
		inst.states = append(inst.states, initial)
		return idx
	}
	if idx >= len(inst.states) {
		inst.setFault(&HookOrderError{Instance: inst.id, Kind: HookState, Expected: len(inst.states), Got: idx + 1})
		return -1
	}
	return idx
}

// Read returns the committed value of slot i as of the start of the
// current pass.
func (inst *Instance) Read(i int) (any, error) {
	if i < 0 || i >= len(inst.states) {
		return nil, &SlotRangeError{Instance: inst.id, Slot: i, Slots: len(inst.states)}
	}
	return inst.states[i], nil
}

// declareRef returns the index of the next ref slot, creating it with
// create on the first evaluation.
func (inst *Instance) declareRef(create func() any) int {
	if !inst.evaluating {
		return -1
	}
	idx := inst.refIdx
	inst.refIdx++

	if !inst.evaluated {
		inst.refs = append(inst.refs, create())
		return idx
	}
	if idx >= len(inst.refs) {
		inst.setFault(&HookOrderError{Instance: inst.id, Kind: HookRef, Expected: len(inst.refs), Got: idx + 1})
		return -1
	}
	return idx
}

// Portal routes output to the portal key and records the marker so the
// runtime resolves it at commit.
func (inst *Instance) Portal(key portal.Key, output any) (portal.Marker, error) {
	m, err := inst.rt.portals.Route(key, output)
	if err != nil {
		return portal.Marker{}, err
	}
	if inst.evaluating {
		inst.markers = append(inst.markers, m)
	}
	return m, nil
}

// setFault records the first hook misuse of the current evaluation. It
// fails the pass once Evaluate returns.
func (inst *Instance) setFault(err error) {
	if inst.fault == nil {
		inst.fault = err
	}
}

// evaluate runs the Evaluable with hook bookkeeping and panic recovery.
func (inst *Instance) evaluate() (render Render, effects []EffectDescriptor, err error) {
	inst.stateIdx = 0
	inst.refIdx = 0
	inst.markers = inst.markers[:0]
	inst.fault = nil
	inst.evaluating = true

	defer func() {
		inst.evaluating = false
		if r := recover(); r != nil {
			err = &EvaluationError{Instance: inst.id, Err: recovered(r)}
		}
	}()

	render, effects, err = inst.ev.Evaluate(inst)
	if err != nil {
		return nil, nil, &EvaluationError{Instance: inst.id, Err: err}
	}
	if inst.fault != nil {
		return nil, nil, inst.fault
	}
	if inst.evaluated {
		if inst.stateIdx != len(inst.states) {
			return nil, nil, &HookOrderError{Instance: inst.id, Kind: HookState, Expected: len(inst.states), Got: inst.stateIdx}
		}
		if inst.refIdx != len(inst.refs) {
			return nil, nil, &HookOrderError{Instance: inst.id, Kind: HookRef, Expected: len(inst.refs), Got: inst.refIdx}
		}
	}

	inst.evaluated = true
	inst.evaluations++
	return render, effects, nil
}

// applyUpdates commits queued updates in order. Each updater sees the
// value produced by the one before it.
func (inst *Instance) applyUpdates(updates []pendingUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EvaluationError{Instance: inst.id, Err: fmt.Errorf("state updater: %w", recovered(r))}
		}
	}()

	for _, u := range updates {
		if u.slot < 0 || u.slot >= len(inst.states) {
			serr := &SlotRangeError{Instance: inst.id, Slot: u.slot, Slots: len(inst.states)}
			inst.logger.Warn("dropping update to undeclared slot", "slot", u.slot, "slots", len(inst.states))
			inst.rt.report(serr)
			continue
		}
		inst.states[u.slot] = u.updater.apply(inst.states[u.slot])
	}
	return nil
}
