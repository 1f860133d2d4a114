// Package rescontext implements the Resource Context:
// a per-lease, append-only registry of host resources created by
// scripted code, drained in LIFO order when the lease ends so no
// open file handle, stream, or shared-table borrow can outlive a
// single sandbox lease. Modeled as an explicit value threaded through
// host-module closures rather than ambient/goroutine-local state,
// since that state cannot be carried safely across an async suspension
// point in every target runtime.
package rescontext

import (
	"sync"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/log"
)

// Resource is anything a host module hands to scripted code that
// must be released when the owning lease ends.
type Resource interface {
	Close() error
}

// entry wraps a Resource with a released flag so an explicit close
// from scripted code makes a later drain a no-op for that entry.
type entry struct {
	resource Resource
	released bool
}

// Context is a per-lease registry of resources. The zero value is
// not usable; construct with New.
type Context struct {
	mu      sync.Mutex
	entries []*entry
	drained bool
}

// New returns a fresh, empty Resource Context for one lease.
func New() *Context {
	return &Context{}
}

// handle is returned by Register so scripted code can mark its own
// resource released before the context drains, without racing drain.
type handle struct {
	ctx *Context
	e   *entry
}

// Release marks the registered resource released; Close is not
// called again by a later Drain. Safe to call more than once.
func (h *handle) Release() {
	h.ctx.mu.Lock()
	defer h.ctx.mu.Unlock()
	h.e.released = true
}

// Register appends resource to the context, to be released on Drain
// unless explicitly released first. Panics if called after Drain —
// by construction this can't happen: Drain only runs after the Lua
// call that could register more resources has already returned.
func (c *Context) Register(r Resource) *handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drained {
		panic("rescontext: Register called on a drained Context")
	}
	e := &entry{resource: r}
	c.entries = append(c.entries, e)
	return &handle{ctx: c, e: e}
}

// Drain releases all un-released resources in reverse registration
// order. Release errors are collected and returned, but every
// resource is still attempted — a failing close must not skip the
// rest of the drain.
func (c *Context) Drain() []error {
	c.mu.Lock()
	entries := c.entries
	c.entries = nil
	c.drained = true
	c.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.released {
			continue
		}
		e.released = true
		if err := e.resource.Close(); err != nil {
			log.WithComponent("rescontext").Warn().Err(err).Msg("resource release failed during drain")
			errs = append(errs, hiveerr.Wrap(hiveerr.IO, "resource release failed", err))
		}
	}
	return errs
}

// Len reports the number of currently-registered (not yet released)
// resources; used by tests asserting the context is empty post-drain.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.released {
			n++
		}
	}
	return n
}
