package reactor

import "context"

// StepKind identifies a unit of scheduler work.
type StepKind uint8

const (
	StepMount StepKind = iota + 1
	StepTick
	StepEvaluate
	StepCommit
	StepEffect
	StepCleanup
	StepUnmount
)

// String returns the step name used in metrics labels and span names.
func (k StepKind) String() string {
	switch k {
	case StepMount:
		return "mount"
	case StepTick:
		return "tick"
	case StepEvaluate:
		return "evaluate"
	case StepCommit:
		return "commit"
	case StepEffect:
		return "effect"
	case StepCleanup:
		return "cleanup"
	case StepUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}

// Step describes the work wrapped by a Middleware call.
type Step struct {
	Kind StepKind

	// Tick is the tick number, 0 outside a tick (mount and unmount).
	Tick uint64

	// Instance is 0 for StepTick.
	Instance InstanceID

	// Position is the effect position for StepEffect and StepCleanup, -1
	// otherwise.
	Position int

	// Name is the effect name for effect steps and the instance name for
	// the others, when one was given.
	Name string
}

// Middleware wraps scheduler steps. Implementations must call next exactly
// once and return its error, possibly annotated.
type Middleware interface {
	Handle(ctx context.Context, step Step, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, step Step, next func(context.Context) error) error

// Handle calls f.
func (f MiddlewareFunc) Handle(ctx context.Context, step Step, next func(context.Context) error) error {
	return f(ctx, step, next)
}

// step runs fn wrapped in the middleware chain. The first registered
// middleware is the outermost.
func (rt *Runtime) step(ctx context.Context, s Step, fn func(context.Context) error) error {
	h := fn
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		mw, next := rt.middleware[i], h
		h = func(ctx context.Context) error {
			return mw.Handle(ctx, s, next)
		}
	}
	return h(ctx)
}
