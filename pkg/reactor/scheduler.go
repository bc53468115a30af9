package reactor

import (
	"context"
	"errors"
)

// Tick runs one scheduling opportunity: every instance that is dirty when
// the tick begins is evaluated once, committed, and handed to the effect
// registry. Updates queued during the tick are left for the next one.
//
// Instance failures are logged, reported, and joined into the returned
// error; other instances in the tick are unaffected.
func (rt *Runtime) Tick(ctx context.Context) error {
	if err := rt.acquireDriver(); err != nil {
		return err
	}
	defer rt.releaseDriver(ctx)
	return rt.runTick(ctx)
}

// Flush ticks until no instance is dirty. When instances are still dirty
// after Config.MaxTickIterations ticks it stops and returns a
// *RunawayReevaluationError; those instances stay dirty.
func (rt *Runtime) Flush(ctx context.Context) error {
	if err := rt.acquireDriver(); err != nil {
		return err
	}
	defer rt.releaseDriver(ctx)

	var errs []error
	for i := 0; ; i++ {
		rt.mu.Lock()
		pending := rt.hasDirtyLocked()
		var ids []InstanceID
		if pending && i >= rt.cfg.MaxTickIterations {
			ids = rt.dirtyIDsLocked()
		}
		rt.mu.Unlock()

		if !pending {
			return errors.Join(errs...)
		}
		if ids != nil {
			err := &RunawayReevaluationError{Iterations: i, Instances: ids}
			rt.logger.Error("re-evaluation did not settle", "ticks", i, "instances", ids)
			rt.report(err)
			return errors.Join(append(errs, err)...)
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		if err := rt.runTick(ctx); err != nil {
			errs = append(errs, err)
		}
		rt.drainDeferred(ctx)
	}
}

// Run flushes whenever updates are queued until ctx is done or the runtime
// shuts down. A *RunawayReevaluationError ends the loop and is returned;
// instance failures are reported and the loop continues.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.mu.Lock()
	if rt.hasDirtyLocked() {
		rt.signal()
	}
	rt.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.done:
			return nil
		case <-rt.wake:
			err := rt.Flush(ctx)
			var runaway *RunawayReevaluationError
			switch {
			case errors.As(err, &runaway):
				return err
			case errors.Is(err, ErrRuntimeClosed):
				return nil
			}
			// ErrTickInProgress: the active driver signals again on release.
		}
	}
}

func (rt *Runtime) acquireDriver() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return ErrRuntimeClosed
	}
	if rt.driving {
		return ErrTickInProgress
	}
	rt.driving = true
	return nil
}

// runTick evaluates the current dirty set. The caller must be the driver.
func (rt *Runtime) runTick(ctx context.Context) error {
	rt.mu.Lock()
	queued := rt.dirty
	rt.dirty = nil

	batch := make([]*Instance, 0, len(queued))
	updates := make([][]pendingUpdate, 0, len(queued))
	for _, inst := range queued {
		if inst.phase != PhaseDirty {
			continue
		}
		inst.phase = PhaseEvaluating
		batch = append(batch, inst)
		updates = append(updates, inst.pending)
		inst.pending = nil
	}
	if len(batch) == 0 {
		rt.mu.Unlock()
		return nil
	}
	rt.tick++
	tick := rt.tick
	rt.mu.Unlock()

	s := Step{Kind: StepTick, Tick: tick, Position: -1}
	return rt.step(ctx, s, func(ctx context.Context) error {
		var errs []error
		for i, inst := range batch {
			if err := ctx.Err(); err != nil {
				rt.requeue(batch[i:], updates[i:])
				return errors.Join(append(errs, err)...)
			}
			if err := rt.pass(ctx, tick, inst, updates[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// requeue puts instances taken for a cancelled tick back in the dirty set
// with their updates ahead of anything queued since.
func (rt *Runtime) requeue(batch []*Instance, updates [][]pendingUpdate) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for i, inst := range batch {
		if inst.phase != PhaseEvaluating {
			continue
		}
		inst.pending = append(updates[i], inst.pending...)
		inst.phase = PhaseDirty
		rt.dirty = append(rt.dirty, inst)
	}
}

// pass evaluates one instance, commits its output and records its effect
// pass. The instance must be in PhaseEvaluating.
func (rt *Runtime) pass(ctx context.Context, tick uint64, inst *Instance, updates []pendingUpdate) error {
	rt.mu.Lock()
	if inst.phase != PhaseEvaluating {
		// Unmount was requested after the tick took this instance.
		rt.mu.Unlock()
		return nil
	}
	rt.mu.Unlock()

	if err := inst.applyUpdates(updates); err != nil {
		return rt.fail(inst, err)
	}

	var (
		render  Render
		effects []EffectDescriptor
	)
	s := Step{Kind: StepEvaluate, Tick: tick, Instance: inst.id, Position: -1, Name: inst.name}
	err := rt.step(ctx, s, func(context.Context) error {
		var err error
		render, effects, err = inst.evaluate()
		return err
	})
	if err != nil {
		return rt.fail(inst, err)
	}

	if err := rt.commit(ctx, tick, inst, render); err != nil {
		return rt.fail(inst, err)
	}

	rt.mu.Lock()
	inst.stateCount = len(inst.states)
	if inst.phase == PhaseEvaluating {
		if len(inst.pending) > 0 {
			inst.phase = PhaseDirty
			rt.dirty = append(rt.dirty, inst)
			rt.signal()
		} else {
			inst.phase = PhaseClean
		}
	}
	rt.mu.Unlock()

	if err := rt.recordPass(ctx, tick, inst, effects); err != nil {
		return rt.fail(inst, err)
	}

	rt.mu.Lock()
	inst.publish()
	rt.mu.Unlock()
	return nil
}

// fail stops the instance from evaluating again and reports err.
func (rt *Runtime) fail(inst *Instance, err error) error {
	rt.mu.Lock()
	if inst.phase != PhaseUnmounting && inst.phase != PhaseUnmounted {
		inst.phase = PhaseFailed
		inst.failure = err
		inst.pending = nil
	}
	inst.publish()
	rt.mu.Unlock()

	attrs := []any{"error", err}
	var perr *PanicError
	if errors.As(err, &perr) {
		attrs = append(attrs, "stack", string(perr.Stack))
	}
	inst.logger.Error("instance failed", attrs...)
	rt.report(err)
	return err
}

func (rt *Runtime) hasDirtyLocked() bool {
	for _, inst := range rt.dirty {
		if inst.phase == PhaseDirty {
			return true
		}
	}
	return false
}

func (rt *Runtime) dirtyIDsLocked() []InstanceID {
	var ids []InstanceID
	for _, inst := range rt.dirty {
		if inst.phase == PhaseDirty {
			ids = append(ids, inst.id)
		}
	}
	return ids
}
