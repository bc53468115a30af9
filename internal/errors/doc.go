// Package errors provides coded, actionable diagnostics for reactor.
//
// Runtime errors in pkg/reactor and pkg/portal carry a Code() such as
// "R001". This package maps each code to a category, a short message, a
// longer explanation and a suggested fix, and renders them for the
// terminal.
//
// # Error Categories
//
//   - scheduler: tick bounds, updates to released instances
//   - effect: dependency arity, hook order, callback failures
//   - portal: routing to unbound keys
//   - runtime: evaluation and commit failures
//   - config: reactor.json / reactor.yaml problems
//   - cli: command line usage
//
// # Usage
//
//	if err := rt.Flush(ctx); err != nil {
//	    errors.PrintError(errors.Diagnose(err))
//	}
//
//	// ERROR R004: Re-evaluation did not settle
//	//
//	//   Instances kept marking each other dirty for more ticks than
//	//   runtime.maxTickIterations allows.
//	//
//	//   Hint: Guard state updates in effects with a dependency list ...
package errors
