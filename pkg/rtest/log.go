package rtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vango-dev/reactor/pkg/reactor"
)

// Log records callback invocations in order. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []string
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a formatted entry.
func (l *Log) Add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards all entries.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Commits is a reactor.Committer that keeps every commit.
type Commits struct {
	mu  sync.Mutex
	all []reactor.Commit
}

// Commit records c.
func (c *Commits) Commit(_ context.Context, commit reactor.Commit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = append(c.all, commit)
	return nil
}

// All returns every recorded commit.
func (c *Commits) All() []reactor.Commit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]reactor.Commit(nil), c.all...)
}

// Last returns the latest commit for id.
func (c *Commits) Last(id reactor.InstanceID) (reactor.Commit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.all) - 1; i >= 0; i-- {
		if c.all[i].Instance == id {
			return c.all[i], true
		}
	}
	return reactor.Commit{}, false
}
