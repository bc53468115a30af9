package deps

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mode is the form of a dependency list.
type Mode uint8

const (
	// ModeAlways is the absent list. Always compares as changed.
	ModeAlways Mode = iota
	// ModeOnce is the empty list. Unchanged after the first pass.
	ModeOnce
	// ModeOn is a list of one or more positional values.
	ModeOn
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeAlways:
		return "always"
	case ModeOnce:
		return "once"
	case ModeOn:
		return "on"
	default:
		return "unknown"
	}
}

// List is an ordered dependency list. The zero value is Always().
type List struct {
	mode   Mode
	values []any
}

// Always returns the absent dependency list.
func Always() List {
	return List{mode: ModeAlways}
}

// Once returns the empty dependency list.
func Once() List {
	return List{mode: ModeOnce}
}

// On returns a dependency list over the given values.
// On() with no values is the same list as Once().
func On(values ...any) List {
	if len(values) == 0 {
		return Once()
	}
	cp := make([]any, len(values))
	copy(cp, values)
	return List{mode: ModeOn, values: cp}
}

// Mode returns the list form.
func (l List) Mode() Mode {
	return l.mode
}

// Len returns the declared arity: -1 for Always, 0 for Once.
func (l List) Len() int {
	if l.mode == ModeAlways {
		return -1
	}
	return len(l.values)
}

// Values returns a copy of the positional values.
func (l List) Values() []any {
	if len(l.values) == 0 {
		return nil
	}
	cp := make([]any, len(l.values))
	copy(cp, l.values)
	return cp
}

func (l List) String() string {
	switch l.mode {
	case ModeAlways:
		return "deps(always)"
	case ModeOnce:
		return "deps[]"
	}
	parts := make([]string, len(l.values))
	for i, v := range l.values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "deps[" + strings.Join(parts, ", ") + "]"
}

// Fingerprint returns a stable hash of the list for diagnostics.
// It is not used for change detection: two lists with equal fingerprints
// may still compare as changed (identity-compared values print alike).
func Fingerprint(l List) uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(l.mode)})
	for _, v := range l.values {
		_, _ = fmt.Fprintf(d, "%T:%v;", v, v)
	}
	return d.Sum64()
}
