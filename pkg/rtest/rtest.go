package rtest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vango-dev/reactor/pkg/reactor"
)

// Harness wraps a Runtime whose failures are collected instead of only
// logged. The runtime is shut down when the test ends.
type Harness struct {
	*reactor.Runtime

	t        testing.TB
	mu       sync.Mutex
	reported []error
	commits  *Commits
}

// New creates a Harness. Options are applied after the harness defaults, so
// a test may override the logger or error handler.
func New(t testing.TB, opts ...reactor.Option) *Harness {
	t.Helper()

	h := &Harness{t: t, commits: &Commits{}}
	base := []reactor.Option{
		reactor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		reactor.WithErrorHandler(h.record),
		reactor.WithCommitter(h.commits),
	}
	h.Runtime = reactor.New(append(base, opts...)...)

	t.Cleanup(func() {
		_ = h.Runtime.Shutdown(context.Background())
	})
	return h
}

func (h *Harness) record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reported = append(h.reported, err)
}

// Reported returns every error passed to the runtime's error handler.
func (h *Harness) Reported() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.reported...)
}

// Commits returns the committer installed by New.
func (h *Harness) Commits() *Commits {
	return h.commits
}

// MustMount mounts ev and fails the test on error.
func (h *Harness) MustMount(ev reactor.Evaluable) reactor.InstanceID {
	h.t.Helper()
	id, err := h.Mount(context.Background(), ev)
	require.NoError(h.t, err)
	return id
}

// MustMountFunc mounts fn and fails the test on error.
func (h *Harness) MustMountFunc(fn reactor.EvaluableFunc) reactor.InstanceID {
	h.t.Helper()
	return h.MustMount(fn)
}

// MustSet queues a replacement value and fails the test on error.
func (h *Harness) MustSet(id reactor.InstanceID, slot int, v any) {
	h.t.Helper()
	require.NoError(h.t, h.Update(id, slot, reactor.Set(v)))
}

// MustApply queues an updater function and fails the test on error.
func (h *Harness) MustApply(id reactor.InstanceID, slot int, fn func(prev any) any) {
	h.t.Helper()
	require.NoError(h.t, h.Update(id, slot, reactor.Apply(fn)))
}

// MustTick runs one tick and fails the test on error.
func (h *Harness) MustTick() {
	h.t.Helper()
	require.NoError(h.t, h.Tick(context.Background()))
}

// MustFlush ticks until settled and fails the test on error.
func (h *Harness) MustFlush() {
	h.t.Helper()
	require.NoError(h.t, h.Flush(context.Background()))
}

// MustUnmount unmounts id and fails the test on error.
func (h *Harness) MustUnmount(id reactor.InstanceID) {
	h.t.Helper()
	require.NoError(h.t, h.Unmount(context.Background(), id))
}
