package reactor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/reactor/pkg/deps"
	"github.com/vango-dev/reactor/pkg/reactor"
	"github.com/vango-dev/reactor/pkg/rtest"
)

func TestCounterScenario(t *testing.T) {
	h := rtest.New(t)
	log := rtest.NewLog()

	id := h.MustMount(counter(log, deps.Always()))
	h.MustTick()
	assert.Equal(t, []string{"ran"}, log.Entries())

	h.MustApply(id, 0, increment)
	h.MustApply(id, 0, increment)
	h.MustTick()

	render, ok := h.LastRender(id)
	require.True(t, ok)
	assert.Equal(t, 2, render)
	assert.Equal(t, []string{"ran", "ran"}, log.Entries())

	in, ok := info(h, id)
	require.True(t, ok)
	assert.Equal(t, uint64(2), in.Evaluations)
	assert.Equal(t, "clean", in.Phase)
}

func TestCoalescingAppliesUpdatersInOrder(t *testing.T) {
	h := rtest.New(t)

	var evaluations atomic.Int32
	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		evaluations.Add(1)
		users, _ := reactor.UseState(inst, []string(nil))
		return users, nil, nil
	})

	appendUser := func(name string) func(any) any {
		return func(prev any) any {
			users, _ := prev.([]string)
			return append(users, name)
		}
	}
	h.MustApply(id, 0, appendUser("ada"))
	h.MustSet(id, 0, []string{"grace"})
	h.MustApply(id, 0, appendUser("linus"))
	h.MustApply(id, 0, appendUser("ken"))
	h.MustTick()

	render, _ := h.LastRender(id)
	assert.Equal(t, []string{"grace", "linus", "ken"}, render)
	assert.Equal(t, int32(2), evaluations.Load())
}

func TestTickWithoutDirtyInstancesIsNoop(t *testing.T) {
	h := rtest.New(t)
	log := rtest.NewLog()

	h.MustMount(counter(log, deps.Always()))
	h.MustTick()
	h.MustTick()
	h.MustFlush()
	assert.Equal(t, []string{"ran"}, log.Entries())
}

func TestUpdateFromEffectWaitsForNextTick(t *testing.T) {
	h := rtest.New(t)

	var evaluations atomic.Int32
	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		evaluations.Add(1)
		n, setN := reactor.UseState(inst, 0)
		return n, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				if n < 3 {
					_ = setN.Set(n + 1)
				}
				return nil
			}, deps.On(n)),
		}, nil
	})
	assert.Equal(t, reactor.PhaseDirty, h.Phase(id))

	h.MustTick()
	assert.Equal(t, int32(2), evaluations.Load())
	assert.Equal(t, reactor.PhaseDirty, h.Phase(id))

	h.MustFlush()
	render, _ := h.LastRender(id)
	assert.Equal(t, 3, render)
	assert.Equal(t, int32(4), evaluations.Load())
	assert.Equal(t, reactor.PhaseClean, h.Phase(id))
}

func TestFlushReportsRunawayReevaluation(t *testing.T) {
	h := rtest.New(t, reactor.WithMaxTickIterations(5))

	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, setN := reactor.UseState(inst, 0)
		return n, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				_ = setN.Update(func(v int) int { return v + 1 })
				return nil
			}, deps.Always()),
		}, nil
	})

	err := h.Flush(context.Background())
	var runaway *reactor.RunawayReevaluationError
	require.ErrorAs(t, err, &runaway)
	assert.Equal(t, 5, runaway.Iterations)
	assert.Equal(t, []reactor.InstanceID{id}, runaway.Instances)
	assert.Equal(t, "R004", runaway.Code())

	// The instance stays dirty and the error is reported.
	assert.Equal(t, reactor.PhaseDirty, h.Phase(id))
	reported := h.Reported()
	require.NotEmpty(t, reported)
	assert.ErrorAs(t, reported[len(reported)-1], &runaway)
}

func TestTickFromCallbackIsRejected(t *testing.T) {
	h := rtest.New(t)

	var tickErr, flushErr error
	h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		return nil, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				tickErr = h.Tick(context.Background())
				flushErr = h.Flush(context.Background())
				return nil
			}, deps.Once()),
		}, nil
	})

	assert.ErrorIs(t, tickErr, reactor.ErrTickInProgress)
	assert.ErrorIs(t, flushErr, reactor.ErrTickInProgress)
}

func TestFailedInstanceDoesNotAffectSiblings(t *testing.T) {
	h := rtest.New(t)
	boom := errors.New("boom")

	failing := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, _ := reactor.UseState(inst, 0)
		return n, []reactor.EffectDescriptor{
			reactor.EffectE(func() (reactor.Cleanup, error) {
				if n > 0 {
					return nil, boom
				}
				return nil, nil
			}, deps.On(n), reactor.EffectName("validate")),
		}, nil
	})
	log := rtest.NewLog()
	sibling := h.MustMount(counter(log, deps.Always()))

	h.MustSet(failing, 0, 1)
	h.MustSet(sibling, 0, 7)
	err := h.Tick(context.Background())

	var cbErr *reactor.CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, failing, cbErr.Instance)
	assert.Equal(t, "validate", cbErr.Name)
	assert.Equal(t, reactor.PhaseEffect, cbErr.Phase)
	assert.ErrorIs(t, err, boom)

	render, _ := h.LastRender(sibling)
	assert.Equal(t, 7, render)
	assert.Equal(t, []string{"ran", "ran"}, log.Entries())

	assert.Equal(t, reactor.PhaseFailed, h.Phase(failing))
	var failed *reactor.InstanceFailedError
	assert.ErrorAs(t, h.Update(failing, 0, reactor.Set(2)), &failed)
	assert.NoError(t, h.Update(sibling, 0, reactor.Set(8)))

	in, _ := info(h, failing)
	assert.Contains(t, in.Failure, "boom")
}

func TestEvaluationPanicFailsInstance(t *testing.T) {
	h := rtest.New(t)

	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, _ := reactor.UseState(inst, 0)
		if n == 1 {
			panic("bad render")
		}
		return n, nil, nil
	})

	h.MustSet(id, 0, 1)
	err := h.Tick(context.Background())

	var evalErr *reactor.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	var perr *reactor.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad render", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Equal(t, reactor.PhaseFailed, h.Phase(id))
}

func TestRunFlushesAsyncUpdates(t *testing.T) {
	h := rtest.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	type search struct {
		query   string
		results []string
	}

	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		query, _ := reactor.UseState(inst, "")
		results, setResults := reactor.UseState(inst, []string(nil))
		return search{query: query, results: results}, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				if query == "" {
					return nil
				}
				timer := time.AfterFunc(10*time.Millisecond, func() {
					_ = setResults.Set([]string{"result for " + query})
				})
				return func() { timer.Stop() }
			}, deps.On(query), reactor.EffectName("debounce")),
		}, nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	require.NoError(t, h.Update(id, 0, reactor.Set("go")))
	require.NoError(t, h.Update(id, 0, reactor.Set("golang")))

	require.Eventually(t, func() bool {
		render, _ := h.LastRender(id)
		s, ok := render.(search)
		return ok && len(s.results) == 1 && s.results[0] == "result for golang"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunReturnsAfterShutdown(t *testing.T) {
	h := rtest.New(t)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(context.Background()) }()

	require.NoError(t, h.Shutdown(context.Background()))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestFlushStopsOnCancelledContext(t *testing.T) {
	h := rtest.New(t)
	log := rtest.NewLog()
	id := h.MustMount(counter(log, deps.Always()))
	h.MustSet(id, 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, reactor.PhaseDirty, h.Phase(id))

	h.MustFlush()
	render, _ := h.LastRender(id)
	assert.Equal(t, 1, render)
}
