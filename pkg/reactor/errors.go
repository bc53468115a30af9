package reactor

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vango-dev/reactor/pkg/portal"
)

var (
	// ErrTickInProgress is returned by Tick, Flush and Shutdown when another
	// driver is active, including calls made from inside a callback.
	ErrTickInProgress = errors.New("reactor: tick already in progress")

	// ErrRuntimeClosed is returned after Shutdown.
	ErrRuntimeClosed = errors.New("reactor: runtime closed")

	// ErrNotMounted is returned by Unmount for unknown or released instances.
	ErrNotMounted = errors.New("reactor: instance not mounted")

	// ErrNilEvaluable is returned by Mount when given a nil Evaluable.
	ErrNilEvaluable = errors.New("reactor: nil evaluable")

	// ErrNilUpdater is returned by Update when given a nil Updater.
	ErrNilUpdater = errors.New("reactor: nil updater")
)

// MissingTargetError is returned when output is routed to an unbound
// portal key.
type MissingTargetError = portal.MissingTargetError

// ArityMismatchError reports that the dependency list at an effect position
// changed its declared length between passes. Under ArityFatal it stops the
// instance from evaluating again.
type ArityMismatchError struct {
	Instance InstanceID
	Position int
	Name     string
	Prev     int
	Next     int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("reactor: instance %d effect %d%s: dependency arity changed from %s to %s",
		e.Instance, e.Position, nameSuffix(e.Name), arityString(e.Prev), arityString(e.Next))
}

// Code returns the diagnostic code for this error.
func (e *ArityMismatchError) Code() string { return "R001" }

// UnmountedUpdateError is returned when an update targets an instance that
// was never mounted or has been released. The update is dropped.
type UnmountedUpdateError struct {
	Instance InstanceID
	Slot     int
}

func (e *UnmountedUpdateError) Error() string {
	return fmt.Sprintf("reactor: update to slot %d of unmounted instance %d", e.Slot, e.Instance)
}

// Code returns the diagnostic code for this error.
func (e *UnmountedUpdateError) Code() string { return "R002" }

// RunawayReevaluationError is returned by Flush when instances keep
// re-dirtying each other past the configured tick bound.
type RunawayReevaluationError struct {
	Iterations int
	Instances  []InstanceID
}

func (e *RunawayReevaluationError) Error() string {
	return fmt.Sprintf("reactor: still dirty after %d ticks (instances %v)", e.Iterations, e.Instances)
}

// Code returns the diagnostic code for this error.
func (e *RunawayReevaluationError) Code() string { return "R004" }

// HookKind identifies a positional hook list for order validation.
type HookKind uint8

const (
	HookState HookKind = iota + 1
	HookRef
	HookEffect
)

// String returns a human-readable name for the hook kind.
func (h HookKind) String() string {
	switch h {
	case HookState:
		return "state"
	case HookRef:
		return "ref"
	case HookEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// HookOrderError reports that an evaluation declared a different number of
// state slots, ref slots or effects than the first evaluation did.
type HookOrderError struct {
	Instance InstanceID
	Kind     HookKind
	Expected int
	Got      int
}

func (e *HookOrderError) Error() string {
	return fmt.Sprintf("reactor: instance %d hook order changed: expected %d %s hooks, got %d",
		e.Instance, e.Expected, e.Kind, e.Got)
}

// Code returns the diagnostic code for this error.
func (e *HookOrderError) Code() string { return "R005" }

// CallbackPhase names the user callback that failed.
type CallbackPhase string

const (
	PhaseEffect  CallbackPhase = "effect"
	PhaseCleanup CallbackPhase = "cleanup"
)

// CallbackError wraps an error or panic from an effect or cleanup callback.
type CallbackError struct {
	Instance InstanceID
	Position int
	Name     string
	Phase    CallbackPhase
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("reactor: instance %d %s %d%s failed: %v",
		e.Instance, e.Phase, e.Position, nameSuffix(e.Name), e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Code returns the diagnostic code for this error.
func (e *CallbackError) Code() string { return "R006" }

// EvaluationError wraps an error or panic from an Evaluable.
type EvaluationError struct {
	Instance InstanceID
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("reactor: instance %d evaluation failed: %v", e.Instance, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Code returns the diagnostic code for this error.
func (e *EvaluationError) Code() string { return "R007" }

// SlotRangeError reports an update or read of a state slot that the
// instance never declared.
type SlotRangeError struct {
	Instance InstanceID
	Slot     int
	Slots    int
}

func (e *SlotRangeError) Error() string {
	return fmt.Sprintf("reactor: instance %d has %d state slots, slot %d out of range", e.Instance, e.Slots, e.Slot)
}

// Code returns the diagnostic code for this error.
func (e *SlotRangeError) Code() string { return "R008" }

// InstanceFailedError is returned when updating an instance that stopped
// evaluating after a failure.
type InstanceFailedError struct {
	Instance InstanceID
	Err      error
}

func (e *InstanceFailedError) Error() string {
	return fmt.Sprintf("reactor: instance %d has failed: %v", e.Instance, e.Err)
}

func (e *InstanceFailedError) Unwrap() error { return e.Err }

// Code returns the diagnostic code for this error.
func (e *InstanceFailedError) Code() string { return "R009" }

// CommitError wraps an error returned by the host Committer.
type CommitError struct {
	Instance InstanceID
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("reactor: instance %d commit failed: %v", e.Instance, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Code returns the diagnostic code for this error.
func (e *CommitError) Code() string { return "R010" }

// PanicError is a recovered panic from user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// recovered converts a recover() value into a *PanicError.
func recovered(r any) error {
	return &PanicError{Value: r, Stack: debug.Stack()}
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}

func arityString(n int) string {
	if n < 0 {
		return "absent"
	}
	return fmt.Sprintf("%d", n)
}
