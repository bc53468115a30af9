// Package rtest provides helpers for testing components and hosts built on
// the reactor runtime.
//
//	func TestCounter(t *testing.T) {
//	    h := rtest.New(t)
//	    log := rtest.NewLog()
//	    id := h.MustMount(counter(log))
//	    h.MustSet(id, 0, 5)
//	    h.MustFlush()
//	    assert.Equal(t, []string{"ran", "ran"}, log.Entries())
//	}
package rtest
