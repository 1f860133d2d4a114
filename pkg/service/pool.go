package service

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/pathmatch"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/source"
)

// View is a read-only snapshot of one service's state at the moment
// of lookup: either a Running weak handle or a Stopped borrow. Both
// reflect the state at the moment of lookup and must not be cached
// across a transition.
type View struct {
	Record  *Record
	Running bool
}

// entry is one service's mutable slot in the pool: a mutex
// serializing every transition for this name, wrapping the
// otherwise-immutable Record.
type entry struct {
	mu      sync.Mutex
	record  *Record
	running bool
	// hookRun is true once this Running period's start hook has
	// actually fired. Create installs the entry as Running without
	// running the hook (per spec, pre/finish_create_service never call
	// it), so the first Start after a Create must still be allowed to
	// run it; a second Start with no intervening Stop must not.
	hookRun     bool
	watchCancel context.CancelFunc
}

// Pool is the Service Pool: a concurrent map from service Name to
// entry, using sync.Map the same way DashMap gives the original
// lock-free cross-entry reads with per-entry exclusive writes.
type Pool struct {
	entries   sync.Map // Name -> *entry
	sandboxes *sandbox.Pool
	rootFS    afero.Fs
}

// NewPool builds a Service Pool over an already-constructed Sandbox
// Pool. rootFS is the host state directory each service's local:
// storage subtree is created under ("<root>/<service-name>/...").
func NewPool(sandboxes *sandbox.Pool, rootFS afero.Fs) *Pool {
	return &Pool{sandboxes: sandboxes, rootFS: rootFS}
}

func (p *Pool) localFS(name Name) afero.Fs {
	return afero.NewBasePathFs(p.rootFS, string(name))
}

// Get returns a snapshot View of name, or false if no service by
// that name exists.
func (p *Pool) Get(name Name) (View, bool) {
	v, ok := p.entries.Load(name)
	if !ok {
		return View{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{Record: e.record, Running: e.running}, true
}

// GetRunning returns name's Record only if it is currently Running.
func (p *Pool) GetRunning(name Name) (*Record, bool) {
	view, ok := p.Get(name)
	if !ok || !view.Running {
		return nil, false
	}
	return view.Record, true
}

// List returns a snapshot of every service currently in the pool.
// Concurrent modification during the walk may or may not be
// reflected.
func (p *Pool) List() []View {
	var views []View
	p.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		views = append(views, View{Record: e.record, Running: e.running})
		e.mu.Unlock()
		return true
	})
	return views
}

// Create compiles and installs a new service, leasing a sandbox to
// run the pre/finish split. Path patterns are discovered from the
// entry script itself via sandbox.PreCreateService and compiled here
// before the Record is built, so a bad pattern fails Create before
// the service is ever observable in the pool.
func (p *Pool) Create(ctx context.Context, name Name, src source.Source, perms *permission.Set) (*Record, error) {
	if _, exists := p.entries.Load(name); exists {
		return nil, hiveerr.ServiceExistsErr(string(name))
	}

	var record *Record
	err := p.sandboxes.Scope(ctx, func(sb *sandbox.Sandbox) error {
		pre, err := sb.PreCreateService(ctx, string(name), src)
		if err != nil {
			return err
		}
		paths, perr := compilePaths(pre.Paths)
		if perr != nil {
			return perr
		}
		record = newRecord(name, paths, src, perms)
		sb.FinishCreateService(string(name), pre)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.rootFS.MkdirAll(string(name), 0o755); err != nil {
		return nil, hiveerr.Wrap(hiveerr.IO, "failed creating service local storage directory", err)
	}

	e := &entry{record: record, running: true}
	if _, loaded := p.entries.LoadOrStore(name, e); loaded {
		return nil, hiveerr.ServiceExistsErr(string(name))
	}

	if ds, ok := src.(*source.DirSource); ok {
		p.watchForChanges(e, name, ds)
	}

	return record, nil
}

// watchForChanges starts a best-effort hot-reload watch over a
// directory-backed service's bundle: whenever ds's files change on
// disk, every Sandbox's compiled copy of name is forgotten so the
// next lease to dispatch it recompiles from the changed files. The
// watch's lifetime is tied to e.watchCancel, stopped by Remove.
func (p *Pool) watchForChanges(e *entry, name Name, ds *source.DirSource) {
	watchCtx, cancel := context.WithCancel(context.Background())
	if err := ds.Watch(watchCtx, func() {
		p.sandboxes.ForgetEverywhere(string(name))
	}); err != nil {
		cancel()
		log.WithService(string(name)).Warn().Err(err).Msg("failed to start source hot-reload watcher")
		return
	}
	e.mu.Lock()
	e.watchCancel = cancel
	e.mu.Unlock()
}

func compilePaths(patterns []string) ([]*pathmatch.Matcher, error) {
	matchers := make([]*pathmatch.Matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := pathmatch.Compile(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// Stop leases one sandbox, runs name's stop hook there (compiling the
// service into that sandbox first if needed), and transitions the
// entry to Stopped. A failing stop
// hook still transitions the state — the hook may have already
// partially released scripted state, so leaving it Running would be
// worse.
func (p *Pool) Stop(ctx context.Context, name Name) error {
	e, ok := p.loadEntry(name)
	if !ok {
		return hiveerr.ServiceNotFoundErr(string(name))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return hiveerr.ServiceStoppedErr(string(name))
	}

	hookErr := p.sandboxes.Scope(ctx, func(sb *sandbox.Sandbox) error {
		h, err := sb.EnsureCompiled(ctx, string(name), e.record.Source)
		if err != nil {
			return err
		}
		return sb.RunStop(ctx, h, p.localFS(name), e.record.Permissions, e.record.Source)
	})
	e.running = false
	e.hookRun = false
	if hookErr != nil {
		log.WithService(string(name)).Warn().Err(hookErr).Msg("stop hook returned an error")
		return hookErr
	}
	return nil
}

// Start runs name's start hook and transitions the entry back to
// Running. A fresh Create already installs the entry as Running
// without having run the hook yet, so the first Start for a Running
// period is allowed through; a second Start with no intervening Stop
// fails ServiceRunning. On failure the entry remains (or reverts to)
// Stopped and the error propagates.
func (p *Pool) Start(ctx context.Context, name Name) error {
	e, ok := p.loadEntry(name)
	if !ok {
		return hiveerr.ServiceNotFoundErr(string(name))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.hookRun {
		return hiveerr.ServiceRunningErr(string(name))
	}

	err := p.sandboxes.Scope(ctx, func(sb *sandbox.Sandbox) error {
		h, err := sb.EnsureCompiled(ctx, string(name), e.record.Source)
		if err != nil {
			return err
		}
		return sb.RunStart(ctx, h, p.localFS(name), e.record.Permissions, e.record.Source)
	})
	if err != nil {
		e.running = false
		return err
	}
	e.running = true
	e.hookRun = true
	return nil
}

// StopAll stops every currently-Running service; per-service errors
// are logged, not collected or returned.
func (p *Pool) StopAll(ctx context.Context) {
	for _, view := range p.List() {
		if !view.Running {
			continue
		}
		if err := p.Stop(ctx, view.Record.Name); err != nil {
			log.WithService(string(view.Record.Name)).Warn().Err(err).Msg("stop_all: service stop failed")
		}
	}
}

// Remove deletes a Stopped service's entry and best-effort removes
// its local-storage directory. The directory removal error surfaces
// but does not undo the removal.
func (p *Pool) Remove(name Name) (*Record, error) {
	e, ok := p.loadEntry(name)
	if !ok {
		return nil, hiveerr.ServiceNotFoundErr(string(name))
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, hiveerr.ServiceRunningErr(string(name))
	}
	record := e.record
	if e.watchCancel != nil {
		e.watchCancel()
	}
	e.mu.Unlock()

	p.entries.Delete(name)
	p.sandboxes.ForgetEverywhere(string(name))

	if err := p.rootFS.RemoveAll(string(name)); err != nil {
		return record, hiveerr.Wrap(hiveerr.IO, "failed removing service local storage directory", err)
	}
	return record, nil
}

// Dispatch leases a sandbox and runs name's registered handler
// against req, compiling the service into that sandbox first if this
// is the first lease to land there for it.
func (p *Pool) Dispatch(ctx context.Context, name Name, req sandbox.Request) (sandbox.Response, error) {
	record, ok := p.GetRunning(name)
	if !ok {
		if _, exists := p.Get(name); exists {
			return sandbox.Response{}, hiveerr.ServiceStoppedErr(string(name))
		}
		return sandbox.Response{}, hiveerr.ServiceNotFoundErr(string(name))
	}

	var resp sandbox.Response
	err := p.sandboxes.Scope(ctx, func(sb *sandbox.Sandbox) error {
		h, err := sb.EnsureCompiled(ctx, string(name), record.Source)
		if err != nil {
			return err
		}
		r, err := sb.RunRequest(ctx, h, p.localFS(name), record.Permissions, record.Source, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func (p *Pool) loadEntry(name Name) (*entry, bool) {
	v, ok := p.entries.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}
