package reactor

import (
	"context"
	"fmt"

	"github.com/vango-dev/reactor/pkg/portal"
)

// Commit is the committed output of one evaluation.
type Commit struct {
	Tick     uint64
	Instance InstanceID
	Render   Render

	// Redirects are the portal markers routed during evaluation, resolved
	// against the bindings current at commit time.
	Redirects []portal.Redirect

	// Unresolved are markers whose key lost its binding between routing
	// and commit.
	Unresolved []portal.Marker
}

// Committer receives committed output. It is the attachment point for the
// host's painting layer.
type Committer interface {
	Commit(ctx context.Context, c Commit) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, c Commit) error

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, c Commit) error {
	return f(ctx, c)
}

// LastRender returns the render description committed by the most recent
// successful evaluation of id.
func (rt *Runtime) LastRender(id InstanceID) (Render, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	inst, ok := rt.instances[id]
	if !ok {
		return nil, false
	}
	return inst.info.render, inst.info.render != nil
}

// commit resolves the pass's portal markers and hands the output to the
// committer. Unresolved markers are reported but do not fail the instance.
func (rt *Runtime) commit(ctx context.Context, tick uint64, inst *Instance, render Render) error {
	c := Commit{Tick: tick, Instance: inst.id, Render: render}

	keys := make([]portal.Key, 0, len(inst.markers))
	for _, m := range inst.markers {
		keys = append(keys, m.Key)
		red, err := rt.portals.Resolve(m)
		if err != nil {
			c.Unresolved = append(c.Unresolved, m)
			inst.logger.Warn("portal target missing at commit", "key", string(m.Key))
			rt.report(err)
			continue
		}
		c.Redirects = append(c.Redirects, red)
	}
	rt.portals.Track(uint64(inst.id), keys)
	inst.lastRender = render

	if rt.committer == nil {
		return nil
	}

	s := Step{Kind: StepCommit, Tick: tick, Instance: inst.id, Position: -1, Name: inst.name}
	return rt.step(ctx, s, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &CommitError{Instance: inst.id, Err: recovered(r)}
			}
		}()
		if err := rt.committer.Commit(ctx, c); err != nil {
			return &CommitError{Instance: inst.id, Err: fmt.Errorf("committer: %w", err)}
		}
		return nil
	})
}
