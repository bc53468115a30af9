// Package deps implements dependency lists and their positional comparison.
//
// An effect declares the values it depends on with one of three list forms:
//
//	deps.Always()         // absent list: the effect runs after every evaluation
//	deps.Once()           // empty list: the effect runs once, on mount
//	deps.On(email, pass)  // runs when any positional value changes
//
// Compare decides whether an effect must re-run by comparing the list from
// the previous pass with the list from the current one. The declared arity of
// a list is fixed for a given effect position; Compare reports a change of
// arity or form as an *ArityError.
//
// Values are compared with Equal, which uses == for comparable values,
// same-value semantics for floats (NaN equals NaN), identity for maps,
// slices and channels, and defers to the value itself when it implements
// Equaler. Functions never compare equal unless both are nil.
package deps
