// Package reactor provides the component-instance runtime for Vango hosts.
//
// A Runtime owns a table of mounted instances. Each instance is driven by an
// Evaluable that is re-evaluated whenever one of its state slots is updated,
// and that returns a render description plus a list of effect descriptors.
// After every evaluation the runtime commits the render and runs the effects
// whose dependency lists changed.
//
// # Core Types
//
// State slots are declared positionally during evaluation:
//
//	func counter(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
//	    count, setCount := reactor.UseState(inst, 0)
//	    input := reactor.UseRef[string](inst, "")
//	    return fmt.Sprintf("count=%d", count), []reactor.EffectDescriptor{
//	        reactor.Effect(func() reactor.Cleanup {
//	            log.Println("count is", count)
//	            return func() { log.Println("cleanup", count) }
//	        }, deps.On(count)),
//	    }, nil
//	}
//
// Updates are queued and never evaluate inline:
//
//	setCount.Update(func(n int) int { return n + 1 })
//	setCount.Update(func(n int) int { return n + 1 })
//	rt.Flush(ctx) // one evaluation, count == 2
//
// Refs hold mutable values that survive evaluation and never schedule.
//
// # Scheduling
//
// Exactly one goroutine drives the runtime at a time. Mount, Unmount, Tick,
// Flush and Shutdown drive when nobody else is; mounts and unmounts requested
// from inside a callback are deferred until the current driver finishes its
// step. Update only enqueues and is safe to call from any goroutine, for
// example from a timer started by an effect.
//
// A tick evaluates every instance that was dirty when the tick began.
// Updates that arrive during a tick are applied on the next one. Flush ticks
// until nothing is dirty and gives up with a *RunawayReevaluationError after
// Config.MaxTickIterations ticks. Run is the long-lived loop that flushes
// whenever work is queued.
//
// # Effects
//
// An effect with deps.Always() runs after every evaluation, deps.Once() runs
// on mount only, and deps.On(a, b) runs when a or b changed. Before an effect
// re-runs, the cleanup returned by its previous run is called. Cleanup and
// effect run back to back per position, in ascending position order. On
// unmount every live cleanup runs once, in ascending position order.
package reactor
