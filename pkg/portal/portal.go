package portal

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Key is a logical attachment point.
type Key string

// Target is a physical target handle supplied by the host.
type Target any

// Marker associates sub-tree output with a key instead of its structural
// position. It is returned by Route and resolved at commit.
type Marker struct {
	Key    Key
	Output any
}

// Redirect is a Marker resolved against a binding.
type Redirect struct {
	Key    Key
	Target Target
	Output any
}

// Binding describes one key in a Bindings snapshot.
type Binding struct {
	Key        Key    `json:"key"`
	Target     string `json:"target"`
	References int    `json:"references"`
}

// MissingTargetError is returned when output is routed to, or resolved
// against, a key with no bound target.
type MissingTargetError struct {
	Key Key
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("portal: no target bound for key %q", string(e.Key))
}

// Code returns the diagnostic code for this error.
func (e *MissingTargetError) Code() string {
	return "R003"
}

var (
	// ErrEmptyKey is returned when binding an empty key.
	ErrEmptyKey = errors.New("portal: empty key")

	// ErrNilTarget is returned when binding a nil target.
	ErrNilTarget = errors.New("portal: nil target")
)

// Router maps keys to physical targets and tracks which owners reference
// each key during their mount span. Safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	bindings map[Key]Target

	// refs maps a key to the owners currently routing to it.
	refs map[Key]mapset.Set[uint64]

	// owned maps an owner to the keys it routed to on its last commit.
	owned map[uint64]mapset.Set[Key]
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		bindings: make(map[Key]Target),
		refs:     make(map[Key]mapset.Set[uint64]),
		owned:    make(map[uint64]mapset.Set[Key]),
	}
}

// Bind registers or overwrites the physical target for key.
func (r *Router) Bind(key Key, target Target) error {
	if key == "" {
		return ErrEmptyKey
	}
	if target == nil {
		return ErrNilTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[key] = target
	return nil
}

// Unbind removes the binding for key. Markers already routed to key fail
// to resolve until it is bound again.
func (r *Router) Unbind(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bindings[key]; !ok {
		return false
	}
	delete(r.bindings, key)
	return true
}

// Target returns the current binding for key.
func (r *Router) Target(key Key) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bindings[key]
	return t, ok
}

// Route returns a marker redirecting output to key.
func (r *Router) Route(key Key, output any) (Marker, error) {
	r.mu.RLock()
	_, ok := r.bindings[key]
	r.mu.RUnlock()

	if !ok {
		return Marker{}, &MissingTargetError{Key: key}
	}
	return Marker{Key: key, Output: output}, nil
}

// Resolve resolves m against the latest binding for its key.
func (r *Router) Resolve(m Marker) (Redirect, error) {
	target, ok := r.Target(m.Key)
	if !ok {
		return Redirect{}, &MissingTargetError{Key: m.Key}
	}
	return Redirect{Key: m.Key, Target: target, Output: m.Output}, nil
}

// Track records that owner currently routes to exactly keys, replacing
// whatever it referenced before.
func (r *Router) Track(owner uint64, keys []Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releaseLocked(owner)
	if len(keys) == 0 {
		return
	}

	set := mapset.NewThreadUnsafeSet[Key](keys...)
	r.owned[owner] = set
	for _, k := range set.ToSlice() {
		refs, ok := r.refs[k]
		if !ok {
			refs = mapset.NewThreadUnsafeSet[uint64]()
			r.refs[k] = refs
		}
		refs.Add(owner)
	}
}

// Release drops every reference held by owner. Called when the owner
// unmounts.
func (r *Router) Release(owner uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(owner)
}

func (r *Router) releaseLocked(owner uint64) {
	keys, ok := r.owned[owner]
	if !ok {
		return
	}
	delete(r.owned, owner)

	for _, k := range keys.ToSlice() {
		refs := r.refs[k]
		if refs == nil {
			continue
		}
		refs.Remove(owner)
		if refs.Cardinality() == 0 {
			delete(r.refs, k)
		}
	}
}

// References returns the owners routing to key, sorted.
func (r *Router) References(key Key) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs, ok := r.refs[key]
	if !ok {
		return nil
	}
	out := refs.ToSlice()
	slices.Sort(out)
	return out
}

// Bindings returns a snapshot of every bound key, sorted by key.
func (r *Router) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, 0, len(r.bindings))
	for k, t := range r.bindings {
		b := Binding{Key: k, Target: fmt.Sprintf("%v", t)}
		if refs, ok := r.refs[k]; ok {
			b.References = refs.Cardinality()
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
