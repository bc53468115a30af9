package reactor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vango-dev/reactor/pkg/portal"
)

// Runtime owns the instance table and drives evaluation. Create one with
// New and release it with Shutdown; there is no package-level runtime.
type Runtime struct {
	id         string
	cfg        Config
	logger     *slog.Logger
	middleware []Middleware
	committer  Committer
	portals    *portal.Router
	onError    func(error)

	nextID atomic.Uint64

	mu        sync.Mutex
	instances map[InstanceID]*Instance
	order     []InstanceID
	dirty     []*Instance
	deferred  []func(context.Context)
	driving   bool
	closed    bool
	tick      uint64

	// wake is signalled when work is queued for Run.
	wake chan struct{}
	done chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger. Default: slog.Default() annotated
// with the runtime ID.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger.With("runtime_id", rt.id)
		}
	}
}

// WithConfig replaces the scheduler configuration.
func WithConfig(cfg Config) Option {
	return func(rt *Runtime) {
		rt.cfg = cfg
	}
}

// WithMaxTickIterations sets the Flush tick bound.
func WithMaxTickIterations(n int) Option {
	return func(rt *Runtime) {
		rt.cfg.MaxTickIterations = n
	}
}

// WithArityPolicy sets the dependency arity policy.
func WithArityPolicy(p ArityPolicy) Option {
	return func(rt *Runtime) {
		rt.cfg.ArityPolicy = p
	}
}

// WithMiddleware appends middleware around every scheduler step.
func WithMiddleware(mw ...Middleware) Option {
	return func(rt *Runtime) {
		for _, m := range mw {
			if m != nil {
				rt.middleware = append(rt.middleware, m)
			}
		}
	}
}

// WithCommitter sets the host committer that receives render output.
func WithCommitter(c Committer) Option {
	return func(rt *Runtime) {
		rt.committer = c
	}
}

// WithPortalRouter shares a portal router with the host.
func WithPortalRouter(r *portal.Router) Option {
	return func(rt *Runtime) {
		if r != nil {
			rt.portals = r
		}
	}
}

// WithErrorHandler sets a callback that receives every reported error:
// instance failures, dropped updates, unresolved portals and runaway ticks.
func WithErrorHandler(fn func(error)) Option {
	return func(rt *Runtime) {
		rt.onError = fn
	}
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		id:        uuid.NewString(),
		cfg:       DefaultConfig(),
		portals:   portal.NewRouter(),
		instances: make(map[InstanceID]*Instance),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	rt.logger = slog.Default().With("runtime_id", rt.id)

	for _, opt := range opts {
		opt(rt)
	}
	rt.cfg = rt.cfg.normalized()
	return rt
}

// ID returns the runtime's unique identifier.
func (rt *Runtime) ID() string {
	return rt.id
}

// Config returns the effective configuration.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Portals returns the runtime's portal router.
func (rt *Runtime) Portals() *portal.Router {
	return rt.portals
}

// Mount creates an instance for ev, runs its first evaluation, commits it
// and runs its first effect pass.
//
// When called while another driver is active (for example from an effect),
// the first evaluation is deferred until that driver finishes its current
// step; the returned error is then nil and failures are reported through the
// error handler.
func (rt *Runtime) Mount(ctx context.Context, ev Evaluable) (InstanceID, error) {
	if ev == nil {
		return 0, ErrNilEvaluable
	}

	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return 0, ErrRuntimeClosed
	}
	inst := newInstance(rt, InstanceID(rt.nextID.Add(1)), ev)
	rt.instances[inst.id] = inst
	rt.order = append(rt.order, inst.id)
	inst.publish()

	if rt.driving {
		rt.deferred = append(rt.deferred, func(ctx context.Context) {
			_ = rt.mountInstance(ctx, inst)
		})
		rt.mu.Unlock()
		inst.logger.Debug("mount deferred until current tick completes")
		return inst.id, nil
	}
	rt.driving = true
	rt.mu.Unlock()

	err := rt.mountInstance(ctx, inst)
	rt.releaseDriver(ctx)
	return inst.id, err
}

func (rt *Runtime) mountInstance(ctx context.Context, inst *Instance) error {
	rt.mu.Lock()
	if inst.phase != PhaseMounting {
		// Unmounted before the deferred mount ran.
		rt.mu.Unlock()
		return nil
	}
	inst.phase = PhaseEvaluating
	inst.mountStarted = true
	rt.mu.Unlock()

	// Updates queued while the mount was deferred stay pending: slots are
	// unknown until the first evaluation declares them, so pass leaves the
	// instance dirty and the next tick applies them.
	s := Step{Kind: StepMount, Instance: inst.id, Position: -1, Name: inst.name}
	err := rt.step(ctx, s, func(ctx context.Context) error {
		return rt.pass(ctx, 0, inst, nil)
	})
	if err == nil {
		inst.logger.Debug("instance mounted")
	}
	return err
}

// Update queues valueOrUpdater for state slot of instance id. It never
// evaluates inline: a clean instance becomes dirty and is evaluated on the
// next tick; further updates before that tick are coalesced into the same
// evaluation.
//
// Updates to unknown or released instances return *UnmountedUpdateError
// and are otherwise ignored.
func (rt *Runtime) Update(id InstanceID, slot int, u Updater) error {
	if u == nil {
		return ErrNilUpdater
	}

	rt.mu.Lock()
	inst, ok := rt.instances[id]
	if !ok || inst.phase == PhaseUnmounting || inst.phase == PhaseUnmounted {
		rt.mu.Unlock()
		err := &UnmountedUpdateError{Instance: id, Slot: slot}
		rt.logger.Warn("update to unmounted instance ignored", "instance", uint64(id), "slot", slot)
		rt.report(err)
		return err
	}
	if inst.phase == PhaseFailed {
		failure := inst.failure
		rt.mu.Unlock()
		return &InstanceFailedError{Instance: id, Err: failure}
	}
	if slot < 0 || (inst.stateCount >= 0 && slot >= inst.stateCount) {
		slots := inst.stateCount
		rt.mu.Unlock()
		return &SlotRangeError{Instance: id, Slot: slot, Slots: max(slots, 0)}
	}

	inst.pending = append(inst.pending, pendingUpdate{slot: slot, updater: u})
	if inst.phase == PhaseClean {
		inst.phase = PhaseDirty
		rt.dirty = append(rt.dirty, inst)
		rt.signal()
	}
	rt.mu.Unlock()
	return nil
}

// Unmount runs the instance's final cleanup pass and releases it. Once
// unmount is initiated no further effect callbacks of the instance run.
//
// When called while another driver is active the cleanup pass is deferred
// until that driver finishes its current step.
func (rt *Runtime) Unmount(ctx context.Context, id InstanceID) error {
	rt.mu.Lock()
	inst, ok := rt.instances[id]
	if !ok || inst.phase == PhaseUnmounting || inst.phase == PhaseUnmounted {
		rt.mu.Unlock()
		return ErrNotMounted
	}
	inst.phase = PhaseUnmounting
	inst.unmountRequested.Store(true)
	inst.pending = nil

	if rt.driving {
		rt.deferred = append(rt.deferred, func(ctx context.Context) {
			_ = rt.unmountInstance(ctx, inst)
		})
		rt.mu.Unlock()
		inst.logger.Debug("unmount deferred until current tick completes")
		return nil
	}
	rt.driving = true
	rt.mu.Unlock()

	err := rt.unmountInstance(ctx, inst)
	rt.releaseDriver(ctx)
	return err
}

func (rt *Runtime) unmountInstance(ctx context.Context, inst *Instance) error {
	rt.mu.Lock()
	started := inst.mountStarted
	rt.mu.Unlock()

	// A deferred mount cancelled before it ran has no mount step to pair
	// with and no effects to release.
	var err error
	if started {
		s := Step{Kind: StepUnmount, Instance: inst.id, Position: -1, Name: inst.name}
		err = rt.step(ctx, s, func(ctx context.Context) error {
			return rt.releaseEffects(ctx, inst)
		})
	}
	rt.portals.Release(uint64(inst.id))

	rt.mu.Lock()
	inst.phase = PhaseUnmounted
	delete(rt.instances, inst.id)
	if i := slices.Index(rt.order, inst.id); i >= 0 {
		rt.order = slices.Delete(rt.order, i, i+1)
	}
	rt.mu.Unlock()

	if err != nil {
		inst.logger.Error("cleanup failed during unmount", "error", err)
		rt.report(err)
		return err
	}
	inst.logger.Debug("instance unmounted")
	return nil
}

// Shutdown unmounts every instance in reverse mount order and closes the
// runtime. Run returns nil once Shutdown completes.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	if rt.driving {
		rt.mu.Unlock()
		return ErrTickInProgress
	}
	rt.closed = true
	rt.driving = true

	victims := make([]*Instance, 0, len(rt.order))
	for i := len(rt.order) - 1; i >= 0; i-- {
		inst := rt.instances[rt.order[i]]
		inst.phase = PhaseUnmounting
		inst.unmountRequested.Store(true)
		inst.pending = nil
		victims = append(victims, inst)
	}
	rt.dirty = nil
	rt.mu.Unlock()

	var errs []error
	for _, inst := range victims {
		if err := rt.unmountInstance(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}

	rt.mu.Lock()
	rt.deferred = nil
	rt.driving = false
	rt.mu.Unlock()
	close(rt.done)

	rt.logger.Debug("runtime shut down", "instances", len(victims))
	return errors.Join(errs...)
}

// BindPortalTarget registers or overwrites the physical target for key.
func (rt *Runtime) BindPortalTarget(key portal.Key, target portal.Target) error {
	return rt.portals.Bind(key, target)
}

// RouteToPortal returns a marker redirecting output to the target bound to
// key. It fails with *MissingTargetError when key is unbound.
func (rt *Runtime) RouteToPortal(key portal.Key, output any) (portal.Marker, error) {
	return rt.portals.Route(key, output)
}

// report forwards err to the error handler.
func (rt *Runtime) report(err error) {
	if err != nil && rt.onError != nil {
		rt.onError(err)
	}
}

// signal wakes Run without blocking. Called with rt.mu held.
func (rt *Runtime) signal() {
	select {
	case rt.wake <- struct{}{}:
	default:
		// Already signalled
	}
}

// drainDeferred runs mounts and unmounts requested while driving, until
// none remain. The caller must be the driver.
func (rt *Runtime) drainDeferred(ctx context.Context) {
	for {
		rt.mu.Lock()
		ops := rt.deferred
		rt.deferred = nil
		rt.mu.Unlock()

		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			op(ctx)
		}
	}
}

// releaseDriver completes deferred work and gives up the driver role.
func (rt *Runtime) releaseDriver(ctx context.Context) {
	for {
		rt.drainDeferred(ctx)

		rt.mu.Lock()
		if len(rt.deferred) > 0 {
			rt.mu.Unlock()
			continue
		}
		rt.driving = false
		if rt.hasDirtyLocked() {
			rt.signal()
		}
		rt.mu.Unlock()
		return
	}
}
