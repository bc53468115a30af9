package reactor_test

import (
	"github.com/vango-dev/reactor/pkg/deps"
	"github.com/vango-dev/reactor/pkg/reactor"
	"github.com/vango-dev/reactor/pkg/rtest"
)

// counter declares one int slot and one effect that logs "ran".
func counter(log *rtest.Log, d deps.List) reactor.EvaluableFunc {
	return func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
		n, _ := reactor.UseState(inst, 0)
		return n, []reactor.EffectDescriptor{
			reactor.Effect(func() reactor.Cleanup {
				log.Add("ran")
				return nil
			}, d),
		}, nil
	}
}

func increment(prev any) any {
	return prev.(int) + 1
}

func info(h *rtest.Harness, id reactor.InstanceID) (reactor.InstanceInfo, bool) {
	for _, in := range h.Snapshot() {
		if in.ID == id {
			return in, true
		}
	}
	return reactor.InstanceInfo{}, false
}
