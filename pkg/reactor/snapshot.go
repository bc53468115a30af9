package reactor

import (
	"sort"

	"github.com/vango-dev/reactor/pkg/deps"
)

// InstanceInfo is a point-in-time view of one instance.
type InstanceInfo struct {
	ID          InstanceID   `json:"id"`
	Name        string       `json:"name,omitempty"`
	Phase       string       `json:"phase"`
	States      int          `json:"states"`
	Refs        int          `json:"refs"`
	Pending     int          `json:"pending"`
	Evaluations uint64       `json:"evaluations"`
	Effects     []EffectInfo `json:"effects,omitempty"`
	Failure     string       `json:"failure,omitempty"`

	render Render
}

// EffectInfo describes one effect position.
type EffectInfo struct {
	Position    int    `json:"position"`
	Name        string `json:"name,omitempty"`
	Mode        string `json:"mode"`
	Arity       int    `json:"arity"`
	Fingerprint uint64 `json:"fingerprint"`
	LiveCleanup bool   `json:"liveCleanup"`
}

// publish copies driver-owned state into inst.info for Snapshot.
// Called with rt.mu held by the driver.
func (inst *Instance) publish() {
	info := InstanceInfo{
		ID:          inst.id,
		Name:        inst.name,
		States:      len(inst.states),
		Refs:        len(inst.refs),
		Evaluations: inst.evaluations,
		render:      inst.lastRender,
	}
	if len(inst.effects) > 0 {
		info.Effects = make([]EffectInfo, len(inst.effects))
		for i, e := range inst.effects {
			info.Effects[i] = EffectInfo{
				Position:    i,
				Name:        e.name,
				Mode:        e.deps.Mode().String(),
				Arity:       e.deps.Len(),
				Fingerprint: deps.Fingerprint(e.deps),
				LiveCleanup: e.cleanup != nil,
			}
		}
	}
	if inst.failure != nil {
		info.Failure = inst.failure.Error()
	}
	inst.info = info
}

// Snapshot returns a view of every mounted instance ordered by ID.
func (rt *Runtime) Snapshot() []InstanceInfo {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	out := make([]InstanceInfo, 0, len(rt.instances))
	for _, inst := range rt.instances {
		info := inst.info
		info.Phase = inst.phase.String()
		info.Pending = len(inst.pending)
		if inst.failure != nil {
			info.Failure = inst.failure.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Phase returns the scheduler phase of id, or PhaseUnmounted when it is not
// in the instance table.
func (rt *Runtime) Phase(id InstanceID) Phase {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.instances[id]
	if !ok {
		return PhaseUnmounted
	}
	return inst.phase
}
