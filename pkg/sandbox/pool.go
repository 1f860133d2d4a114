package sandbox

import (
	"context"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/log"
)

// Pool is a bounded set of N Sandboxes, built eagerly at NewPool and
// lent out one at a time via Scope. Modeled as a buffered Go channel
// of *Sandbox: taking from the channel is the "await point" when the
// pool is exhausted, and returning to it is the only way a Sandbox
// becomes available to the next lease.
type Pool struct {
	sandboxes chan *Sandbox
	size      int
	nextLease uint64
}

// NewPool builds n Sandboxes eagerly, each backed by externalFS for
// their `external:` scheme accesses, and fills the pool's channel.
// ctx bounds only this construction step; a cancelled ctx mid-build
// closes whatever Sandboxes were already created and returns a nil
// Pool with an error.
func NewPool(ctx context.Context, n int, externalFS afero.Fs) (*Pool, error) {
	p := &Pool{
		sandboxes: make(chan *Sandbox, n),
		size:      n,
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(p.sandboxes)
			for sb := range p.sandboxes {
				sb.Close()
			}
			return nil, hiveerr.Wrap(hiveerr.IO, "sandbox pool construction cancelled", ctx.Err())
		default:
		}
		p.sandboxes <- New(i, externalFS)
	}
	return p, nil
}

// Size reports the pool's fixed capacity.
func (p *Pool) Size() int { return p.size }

// Scope leases an idle Sandbox, runs fn with it, and always returns
// the Sandbox to the pool before Scope returns — on success, on fn
// returning an error, on ctx cancellation while waiting for a free
// Sandbox, and even if fn panics (the panic is recovered and
// re-raised only after the Sandbox has been returned). The Resource
// Context drain itself happens inside each RunStart/RunStop/
// RunRequest call, not here; Scope's only cleanup duty is returning
// the Sandbox.
func (p *Pool) Scope(ctx context.Context, fn func(s *Sandbox) error) (err error) {
	leaseID := atomic.AddUint64(&p.nextLease, 1)
	logger := log.WithLease(leaseID)

	var sb *Sandbox
	select {
	case sb = <-p.sandboxes:
	case <-ctx.Done():
		return hiveerr.Wrap(hiveerr.IO, "sandbox lease cancelled while waiting for a free sandbox", ctx.Err())
	}

	defer func() {
		p.sandboxes <- sb
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("sandbox lease panicked")
			panic(r)
		}
	}()

	err = fn(sb)
	return err
}

// ForgetEverywhere removes name from every Sandbox's compiled-service
// registry, used by a hot-reload source watch (source.DirSource.Watch)
// to invalidate a service's stale compiled copy across the whole pool
// once its bundle changes on disk, and by the Service Pool's Remove so
// a later service of the same name never runs the removed one's
// compiled copy. It cycles through exactly Size()
// sandboxes the same way Close does: a call while every lease is
// outstanding blocks until they free up. Intended for the low-
// frequency source-change path, not the request path.
func (p *Pool) ForgetEverywhere(name string) {
	for i := 0; i < p.size; i++ {
		sb := <-p.sandboxes
		sb.Forget(name)
		p.sandboxes <- sb
	}
}

// Close tears down every Sandbox currently sitting idle in the pool.
// Only safe to call once all leases have returned — it drains
// exactly Size() sandboxes and then stops, so calling it while a
// lease is outstanding will block waiting for that sandbox to be
// returned.
func (p *Pool) Close() {
	for i := 0; i < p.size; i++ {
		sb := <-p.sandboxes
		sb.Close()
	}
}
