package sandbox

import (
	"context"
	"io"
	"sync"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/fs"
	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/jsonmod"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/rescontext"
	"github.com/cuemby/hive/pkg/sharedmod"
	"github.com/cuemby/hive/pkg/source"
)

// Handle identifies a service previously installed into a Sandbox by
// FinishCreateService, for use by RunStart/RunStop/RunRequest. The
// zero value names no service.
type Handle struct {
	name string
}

// Precompiled is what PreCreateService returns: everything
// FinishCreateService needs to install the service into the
// Sandbox's registry, plus the discovered path patterns the Service
// Pool uses to build the Service Record. Nothing is retained in the
// Sandbox until FinishCreateService runs — a compile failure leaves
// no partial state behind.
type Precompiled struct {
	Paths []string

	env      *lua.LTable
	handleFn *lua.LFunction
	startFn  *lua.LFunction
	stopFn   *lua.LFunction
}

// Sandbox wraps one non-reentrant *lua.LState: the fs/json/http/shared
// modules preloaded into it, the patched global environment, and a
// registry of every service this sandbox has independently compiled.
// A Sandbox is never shared across two concurrent leases; Pool.Scope
// is what enforces that.
type Sandbox struct {
	index int
	L     *lua.LState

	fsModule *fs.Module

	mu       sync.Mutex
	services map[string]*compiledService
}

// New builds a Sandbox with the fs/json/http/shared modules preloaded
// and the error/assert/pcall/bind global patch installed. externalFS
// backs the fs module's `external:` scheme for every service this
// sandbox later compiles; `local:` roots are bound per-call by the
// Service Pool via afero.NewBasePathFs immediately before dispatch.
func New(index int, externalFS afero.Fs) *Sandbox {
	L := lua.NewState()
	installGlobalEnv(L)

	fsModule := fs.NewWithExternalFS(externalFS)
	L.PreloadModule("fs", fsModule.Loader)
	L.PreloadModule("json", jsonmod.Loader)
	L.PreloadModule("http", httpLoader)
	L.PreloadModule("shared", sharedmod.Loader)

	return &Sandbox{
		index:    index,
		L:        L,
		fsModule: fsModule,
		services: make(map[string]*compiledService),
	}
}

// Close releases the underlying *lua.LState. Only called at pool
// shutdown; a Sandbox is otherwise reused across every lease for the
// process lifetime.
func (s *Sandbox) Close() {
	s.L.Close()
}

// PreCreateService compiles the service's entry script against a
// fresh local environment, discovering its mounted path patterns and
// start/stop hooks without installing anything into the registry.
// The script is expected to return a table shaped `{paths = {...},
// handle = function(req) ... end, start = fn?, stop = fn?}`, chosen
// to match the Request/Response tables RunRequest already builds.
func (s *Sandbox) PreCreateService(ctx context.Context, name string, src source.Source) (*Precompiled, error) {
	entry, err := src.Get(ctx, "main.lua")
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.ServicePathNotFound, "service has no main.lua", err)
	}
	defer entry.Close()

	body, err := io.ReadAll(entry)
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.IO, "failed reading service entry script", err)
	}

	fn, err := s.L.LoadString(string(body))
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.ScriptError, "service script failed to compile", err)
	}

	env := newLocalEnv(s.L)
	fn.Env = env

	s.L.Push(fn)
	if err := s.L.PCall(0, 1, nil); err != nil {
		return nil, scriptLoadError(err)
	}

	result, ok := s.L.Get(-1).(*lua.LTable)
	s.L.Pop(1)
	if !ok {
		return nil, hiveerr.New(hiveerr.ScriptError, "service entry script must return a table")
	}

	pathsTable, _ := result.RawGetString("paths").(*lua.LTable)
	paths := pathsFromTable(pathsTable)
	if len(paths) == 0 {
		return nil, hiveerr.New(hiveerr.ScriptError, "service entry table must set a non-empty paths list")
	}
	handleFn, _ := result.RawGetString("handle").(*lua.LFunction)
	if handleFn == nil {
		return nil, hiveerr.New(hiveerr.ScriptError, "service entry table missing handle function")
	}
	startFn, _ := result.RawGetString("start").(*lua.LFunction)
	stopFn, _ := result.RawGetString("stop").(*lua.LFunction)

	return &Precompiled{
		Paths:    paths,
		env:      env,
		handleFn: handleFn,
		startFn:  startFn,
		stopFn:   stopFn,
	}, nil
}

// scriptLoadError converts an error returned by L.PCall into the
// *hiveerr.Error Go-side callers consume: a host-module error (raised
// via hiveerr.Raise, carried as tagged userdata) unwraps to its
// original *hiveerr.Error unchanged; a value raised by the script's
// own error()/assert() is tagged ScriptCustom at this boundary, the
// only point the sandbox converts a bare scripted value into a Go
// error.
func scriptLoadError(err error) error {
	apiErr, ok := err.(*lua.ApiError)
	if !ok {
		return hiveerr.Wrap(hiveerr.ScriptError, "service entry script failed", err)
	}
	if herr, ok := hiveerr.FromLuaValue(apiErr.Object); ok {
		return herr
	}
	if apiErr.Object != nil {
		return scriptErrorFromValue(apiErr.Object)
	}
	return hiveerr.Wrap(hiveerr.ScriptError, "service entry script raised an error", err)
}

// FinishCreateService installs a Precompiled service into this
// Sandbox's registry under name. Called only after the Service Pool
// has successfully built the Service Record, so installation here
// cannot itself fail for a reason the caller needs to roll back (orig
// spec §4.1's pre/finish split: nothing partially registered is ever
// observable).
func (s *Sandbox) FinishCreateService(name string, pre *Precompiled) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = &compiledService{
		name:     name,
		env:      pre.env,
		paths:    pre.Paths,
		handleFn: pre.handleFn,
		startFn:  pre.startFn,
		stopFn:   pre.stopFn,
		fsModule: s.fsModule,
	}
	return Handle{name: name}
}

// Forget removes a service from this sandbox's registry. Pool's
// ForgetEverywhere calls it on every sandbox, both when the Service
// Pool removes the service and when a hot-reload watch sees its
// bundle change.
func (s *Sandbox) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, name)
}

// EnsureCompiled returns this sandbox's Handle for name, compiling it
// against src on first use if this particular sandbox hasn't seen it
// yet. Each sandbox in the pool independently compiles a service the
// first time a lease for it lands there rather than all N compiling
// it eagerly at create() time: the Service Pool owns metadata, and
// each sandbox independently compiles on first use or at
// create_service time.
func (s *Sandbox) EnsureCompiled(ctx context.Context, name string, src source.Source) (Handle, error) {
	s.mu.Lock()
	_, ok := s.services[name]
	s.mu.Unlock()
	if ok {
		return Handle{name: name}, nil
	}

	pre, err := s.PreCreateService(ctx, name, src)
	if err != nil {
		return Handle{}, err
	}
	return s.FinishCreateService(name, pre), nil
}

func (s *Sandbox) lookup(h Handle) (*compiledService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[h.name]
	if !ok {
		return nil, hiveerr.ServiceNotFoundErr(h.name)
	}
	return svc, nil
}

// leaseCall is the shared shape of RunStart/RunStop/RunRequest: bind
// the fs module to this call's localFS/perms/src, open a fresh
// Resource Context, run fn, then drain the context before returning —
// exactly the "every invocation of scripted code creates a new
// Resource Context ... and drains it before returning" rule (orig
// spec §4.3).
func (s *Sandbox) leaseCall(ctx context.Context, svc *compiledService, localFS afero.Fs, perms *permission.Set, src source.Source, fn func() error) error {
	rc := rescontext.New()
	svc.fsModule.Bind(ctx, rc, localFS, perms, src)
	defer func() {
		if errs := rc.Drain(); len(errs) > 0 {
			log.WithSandbox(s.index).Warn().Int("errors", len(errs)).Msg("resource context drain reported errors")
		}
	}()
	return fn()
}

// RunStart invokes the service's start hook, if any, inside a fresh
// Resource Context. A service with no start hook is a no-op success.
func (s *Sandbox) RunStart(ctx context.Context, h Handle, localFS afero.Fs, perms *permission.Set, src source.Source) error {
	svc, err := s.lookup(h)
	if err != nil {
		return err
	}
	if svc.startFn == nil {
		return nil
	}
	return s.leaseCall(ctx, svc, localFS, perms, src, func() error {
		return s.callHook(svc, svc.startFn)
	})
}

// RunStop invokes the service's stop hook, if any, inside a fresh
// Resource Context.
func (s *Sandbox) RunStop(ctx context.Context, h Handle, localFS afero.Fs, perms *permission.Set, src source.Source) error {
	svc, err := s.lookup(h)
	if err != nil {
		return err
	}
	if svc.stopFn == nil {
		return nil
	}
	return s.leaseCall(ctx, svc, localFS, perms, src, func() error {
		return s.callHook(svc, svc.stopFn)
	})
}

func (s *Sandbox) callHook(svc *compiledService, hookFn *lua.LFunction) error {
	hookFn.Env = svc.env
	s.L.Push(hookFn)
	if err := s.L.PCall(0, 0, nil); err != nil {
		return scriptLoadError(err)
	}
	return nil
}

// RunRequest dispatches req to the service's registered handler
// inside a fresh Resource Context, converting the returned Lua value
// into a Response at the boundary.
func (s *Sandbox) RunRequest(ctx context.Context, h Handle, localFS afero.Fs, perms *permission.Set, src source.Source, req Request) (Response, error) {
	svc, err := s.lookup(h)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	callErr := s.leaseCall(ctx, svc, localFS, perms, src, func() error {
		svc.handleFn.Env = svc.env
		s.L.Push(svc.handleFn)
		s.L.Push(requestToLua(s.L, req))
		if err := s.L.PCall(1, 1, nil); err != nil {
			return scriptLoadError(err)
		}
		result := s.L.Get(-1)
		s.L.Pop(1)
		r, err := responseFromLua(result)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if callErr != nil {
		return Response{}, callErr
	}
	return resp, nil
}
