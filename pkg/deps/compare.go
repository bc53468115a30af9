package deps

import (
	"fmt"
	"math"
	"reflect"
)

// Equaler is implemented by values that define their own dependency
// equality. Equal is called on the value from the previous pass.
type Equaler interface {
	Equal(other any) bool
}

// ArityError reports that a dependency list changed its declared arity
// (or form) between two passes. Always has arity -1.
type ArityError struct {
	Prev int
	Next int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("deps: dependency list arity changed from %s to %s", arityString(e.Prev), arityString(e.Next))
}

func arityString(n int) string {
	if n < 0 {
		return "absent"
	}
	return fmt.Sprintf("%d", n)
}

// Compare reports whether next differs from prev.
//
// Always lists are always changed, Once lists are never changed, and On
// lists are compared position by position with Equal. Lists of different
// arity or form cannot be compared and produce an *ArityError.
func Compare(prev, next List) (bool, error) {
	if prev.mode != next.mode || prev.Len() != next.Len() {
		return true, &ArityError{Prev: prev.Len(), Next: next.Len()}
	}

	switch next.mode {
	case ModeAlways:
		return true, nil
	case ModeOnce:
		return false, nil
	}

	for i := range next.values {
		if !Equal(prev.values[i], next.values[i]) {
			return true, nil
		}
	}
	return false, nil
}

// Equal compares two dependency values.
func Equal(a, b any) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	case reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	}

	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

// safeEqual guards == against comparable types holding incomparable
// dynamic values in interface fields.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
