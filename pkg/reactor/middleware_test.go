package reactor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vango-dev/reactor/pkg/deps"
	"github.com/vango-dev/reactor/pkg/reactor"
	"github.com/vango-dev/reactor/pkg/rtest"
)

func recordSteps(log *rtest.Log, prefix string) reactor.Middleware {
	return reactor.MiddlewareFunc(func(ctx context.Context, step reactor.Step, next func(context.Context) error) error {
		log.Add("%s>%s", prefix, step.Kind)
		err := next(ctx)
		log.Add("%s<%s", prefix, step.Kind)
		return err
	})
}

func TestMiddlewareWrapsSteps(t *testing.T) {
	steps := rtest.NewLog()
	h := rtest.New(t, reactor.WithMiddleware(recordSteps(steps, "")))
	log := rtest.NewLog()

	id := h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, _ := reactor.UseState(inst, 0)
		return n, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				log.Add("ran")
				return func() {}
			}, deps.Always()),
		}, nil
	})
	assert.Equal(t, []string{
		">mount",
		">evaluate", "<evaluate",
		">commit", "<commit",
		">effect", "<effect",
		"<mount",
	}, steps.Entries())

	steps.Reset()
	h.MustSet(id, 0, 1)
	h.MustTick()
	assert.Equal(t, []string{
		">tick",
		">evaluate", "<evaluate",
		">commit", "<commit",
		">cleanup", "<cleanup",
		">effect", "<effect",
		"<tick",
	}, steps.Entries())

	steps.Reset()
	h.MustUnmount(id)
	assert.Equal(t, []string{">unmount", ">cleanup", "<cleanup", "<unmount"}, steps.Entries())
}

func TestCancelledDeferredMountHasNoSteps(t *testing.T) {
	steps := rtest.NewLog()
	h := rtest.New(t, reactor.WithMiddleware(recordSteps(steps, "")))

	var childID reactor.InstanceID
	h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		return nil, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				childID, _ = h.Mount(context.Background(), reactor.EvaluableFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
					return nil, nil, nil
				}))
				_ = h.Unmount(context.Background(), childID)
				return nil
			}, deps.Once()),
		}, nil
	})

	assert.Equal(t, []string{
		">mount",
		">evaluate", "<evaluate",
		">commit", "<commit",
		">effect", "<effect",
		"<mount",
	}, steps.Entries())
	assert.Equal(t, reactor.PhaseUnmounted, h.Phase(childID))
	assert.Len(t, h.Snapshot(), 1)
}

func TestMiddlewareOrder(t *testing.T) {
	steps := rtest.NewLog()
	h := rtest.New(t, reactor.WithMiddleware(recordSteps(steps, "outer"), nil, recordSteps(steps, "inner")))

	h.MustMountFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		return nil, nil, nil
	})

	entries := steps.Entries()
	assert.Equal(t, []string{"outer>mount", "inner>mount", "outer>evaluate", "inner>evaluate"}, entries[:4])
}

func TestMiddlewareSeesStepDetails(t *testing.T) {
	var seen []reactor.Step
	h := rtest.New(t, reactor.WithMiddleware(reactor.MiddlewareFunc(func(ctx context.Context, step reactor.Step, next func(context.Context) error) error {
		seen = append(seen, step)
		return next(ctx)
	})))

	id := h.MustMount(reactor.Named("search", reactor.EvaluableFunc(func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		return nil, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup { return nil }, deps.Once()),
			reactor.Effect(func() reactor.Cleanup { return nil }, deps.Once(), reactor.EffectName("debounce")),
		}, nil
	})))

	last := seen[len(seen)-1]
	assert.Equal(t, reactor.StepEffect, last.Kind)
	assert.Equal(t, id, last.Instance)
	assert.Equal(t, 1, last.Position)
	assert.Equal(t, "debounce", last.Name)
	assert.Equal(t, uint64(0), last.Tick)

	assert.Equal(t, reactor.StepMount, seen[0].Kind)
	assert.Equal(t, "search", seen[0].Name)
	assert.Equal(t, -1, seen[0].Position)
}

func TestStepKindString(t *testing.T) {
	kinds := []reactor.StepKind{
		reactor.StepMount, reactor.StepTick, reactor.StepEvaluate, reactor.StepCommit,
		reactor.StepEffect, reactor.StepCleanup, reactor.StepUnmount, reactor.StepKind(0),
	}
	var names []string
	for _, k := range kinds {
		names = append(names, fmt.Sprint(k))
	}
	assert.Equal(t, []string{"mount", "tick", "evaluate", "commit", "effect", "cleanup", "unmount", "unknown"}, names)
}
