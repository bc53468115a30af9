package reactor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-dev/reactor/pkg/deps"
)

// Cleanup is returned by an effect and called before the effect runs again
// or when the instance unmounts. It is the only way to cancel work an effect
// started (timers, subscriptions).
type Cleanup func()

// EffectFunc is an effect callback that can fail.
type EffectFunc func() (Cleanup, error)

// EffectDescriptor is one effect declared by an evaluation. Its position in
// the returned list identifies it across passes.
type EffectDescriptor struct {
	// Name is used in logs, metrics and devtools.
	Name string

	// Run is the callback.
	Run EffectFunc

	// Deps gates re-runs. The zero value is deps.Always().
	Deps deps.List
}

// EffectOption configures an EffectDescriptor.
type EffectOption func(*EffectDescriptor)

// EffectName sets the effect name reported in logs, metrics and devtools.
func EffectName(name string) EffectOption {
	return func(d *EffectDescriptor) {
		d.Name = name
	}
}

// Effect builds a descriptor from a callback that cannot fail.
//
//	reactor.Effect(func() reactor.Cleanup {
//	    timer := time.AfterFunc(500*time.Millisecond, validate)
//	    return func() { timer.Stop() }
//	}, deps.On(email, password))
func Effect(fn func() Cleanup, d deps.List, opts ...EffectOption) EffectDescriptor {
	var run EffectFunc
	if fn != nil {
		run = func() (Cleanup, error) { return fn(), nil }
	}
	return EffectE(run, d, opts...)
}

// EffectE builds a descriptor from a callback that returns an error. An
// error aborts the instance's pass and stops it from evaluating again.
func EffectE(fn EffectFunc, d deps.List, opts ...EffectOption) EffectDescriptor {
	desc := EffectDescriptor{Run: fn, Deps: d}
	for _, opt := range opts {
		opt(&desc)
	}
	return desc
}

// effectSlot is the registry entry for one effect position.
type effectSlot struct {
	name    string
	deps    deps.List
	cleanup Cleanup
}

// recordPass runs the effect pass for a completed evaluation.
//
// The descriptor list is validated as a whole before any callback runs.
// Positions then run in ascending order; for a changed position the stored
// cleanup runs immediately before the new callback.
func (rt *Runtime) recordPass(ctx context.Context, tick uint64, inst *Instance, descs []EffectDescriptor) error {
	run, err := rt.planEffects(inst, descs)
	if err != nil {
		return err
	}

	for len(inst.effects) < len(descs) {
		inst.effects = append(inst.effects, effectSlot{})
	}

	for i := range descs {
		slot := &inst.effects[i]
		slot.name = descs[i].Name
		if !run[i] {
			slot.deps = descs[i].Deps
			continue
		}
		if inst.unmountRequested.Load() {
			return nil
		}
		if err := rt.runEffect(ctx, tick, inst, i, descs[i]); err != nil {
			return err
		}
	}
	inst.recorded = true

	// Positions dropped under ArityWarn release their cleanups after the
	// surviving positions ran.
	if len(inst.effects) > len(descs) {
		var errs []error
		for i := len(descs); i < len(inst.effects); i++ {
			if err := rt.runCleanup(ctx, tick, inst, i); err != nil {
				errs = append(errs, err)
			}
		}
		inst.effects = inst.effects[:len(descs)]
		return errors.Join(errs...)
	}
	return nil
}

// planEffects validates descs against the previous pass and reports which
// positions must run.
func (rt *Runtime) planEffects(inst *Instance, descs []EffectDescriptor) ([]bool, error) {
	run := make([]bool, len(descs))
	for i, d := range descs {
		if d.Run == nil {
			return nil, &CallbackError{Instance: inst.id, Position: i, Name: d.Name, Phase: PhaseEffect, Err: fmt.Errorf("nil callback")}
		}
		run[i] = true
	}
	if !inst.recorded {
		return run, nil
	}

	prior := inst.effects
	if len(descs) != len(prior) {
		herr := &HookOrderError{Instance: inst.id, Kind: HookEffect, Expected: len(prior), Got: len(descs)}
		if rt.cfg.ArityPolicy == ArityFatal {
			return nil, herr
		}
		inst.logger.Warn("effect count changed", "expected", len(prior), "got", len(descs))
	}

	for i, d := range descs {
		if i >= len(prior) {
			continue
		}
		changed, err := deps.Compare(prior[i].deps, d.Deps)
		if err != nil {
			var ae *deps.ArityError
			if !errors.As(err, &ae) {
				return nil, err
			}
			mismatch := &ArityMismatchError{Instance: inst.id, Position: i, Name: d.Name, Prev: ae.Prev, Next: ae.Next}
			if rt.cfg.ArityPolicy == ArityFatal {
				return nil, mismatch
			}
			inst.logger.Warn("dependency arity changed, re-running effect",
				"position", i, "prev", arityString(ae.Prev), "next", arityString(ae.Next))
			changed = true
		}
		run[i] = changed
	}
	return run, nil
}

// runEffect runs cleanup(i) then effect(i) and stores the new cleanup.
func (rt *Runtime) runEffect(ctx context.Context, tick uint64, inst *Instance, i int, d EffectDescriptor) error {
	if err := rt.runCleanup(ctx, tick, inst, i); err != nil {
		return err
	}

	slot := &inst.effects[i]
	slot.deps = d.Deps

	s := Step{Kind: StepEffect, Tick: tick, Instance: inst.id, Position: i, Name: d.Name}
	return rt.step(ctx, s, func(context.Context) error {
		cleanup, err := callEffect(d.Run)
		slot.cleanup = cleanup
		if err != nil {
			return &CallbackError{Instance: inst.id, Position: i, Name: d.Name, Phase: PhaseEffect, Err: err}
		}
		return nil
	})
}

// runCleanup runs and clears the stored cleanup at position i, if any.
func (rt *Runtime) runCleanup(ctx context.Context, tick uint64, inst *Instance, i int) error {
	slot := &inst.effects[i]
	if slot.cleanup == nil {
		return nil
	}
	cleanup := slot.cleanup
	slot.cleanup = nil

	s := Step{Kind: StepCleanup, Tick: tick, Instance: inst.id, Position: i, Name: slot.name}
	return rt.step(ctx, s, func(context.Context) error {
		if err := callCleanup(cleanup); err != nil {
			return &CallbackError{Instance: inst.id, Position: i, Name: slot.name, Phase: PhaseCleanup, Err: err}
		}
		return nil
	})
}

// releaseEffects runs every live cleanup in ascending position order and
// discards the registry. A failing cleanup does not stop the others.
func (rt *Runtime) releaseEffects(ctx context.Context, inst *Instance) error {
	var errs []error
	for i := range inst.effects {
		if err := rt.runCleanup(ctx, 0, inst, i); err != nil {
			errs = append(errs, err)
		}
	}
	inst.effects = nil
	return errors.Join(errs...)
}

func callEffect(fn EffectFunc) (cleanup Cleanup, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}

func callCleanup(fn Cleanup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	fn()
	return nil
}
