package fs

import (
	"context"
	"sync"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/rescontext"
	"github.com/cuemby/hive/pkg/source"
)

const luaFileTypeName = "hive.file"

// Module is the `fs` sandbox module. One Module is preloaded per
// Sandbox and shared across every service that
// sandbox has compiled — gopher-lua's `require` caches a module table
// the first time it's loaded in a given `*lua.LState`, so the module
// itself must be service-agnostic; Bind repoints it at whichever
// service's local-storage root, permission set, and Source are active
// for the call currently running, exactly like rescontext's "current
// context" being threaded through host-module closures rather than
// held ambiently.
type Module struct {
	mu         sync.Mutex
	externalFS afero.Fs
	binding    binding
}

// binding is the per-call state Bind swaps in immediately before a
// service's compiled function runs; Sandbox leases are exclusive, so
// there's never a concurrent Bind for a different service.
type binding struct {
	ctx     context.Context
	rc      *rescontext.Context
	localFS afero.Fs
	perms   *permission.Set
	src     source.Source
}

// New builds a Module backed by the real OS filesystem for
// external: paths; local: paths are supplied per-call via Bind.
func New() *Module {
	return NewWithExternalFS(afero.NewOsFs())
}

// NewWithExternalFS builds a Module against a caller-supplied
// external: backing filesystem, letting tests substitute an
// afero.MemMapFs without touching the real disk.
func NewWithExternalFS(externalFS afero.Fs) *Module {
	return &Module{externalFS: externalFS}
}

// Bind points the module at the service and lease currently running
// in the Sandbox this Module is preloaded into: localFS rooted at
// that service's local-storage directory, perms gating its
// external: access, src for its source: reads, and the lease's
// Resource Context and cancellable ctx. Called by pkg/sandbox right
// before dispatching into a service's compiled function.
func (m *Module) Bind(ctx context.Context, rc *rescontext.Context, localFS afero.Fs, perms *permission.Set, src source.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binding = binding{ctx: ctx, rc: rc, localFS: localFS, perms: perms, src: src}
}

func (m *Module) current() binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.binding
	if b.ctx == nil {
		b.ctx = context.Background()
	}
	return b
}

func (b binding) permsOrEmpty() *permission.Set {
	if b.perms == nil {
		return permission.Empty()
	}
	return b.perms
}

// Loader registers the `fs` module table, suitable for
// `L.PreloadModule("fs", module.Loader)`.
func (m *Module) Loader(L *lua.LState) int {
	registerFileType(L)

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"open":   m.luaOpen,
		"mkdir":  m.luaMkdir,
		"remove": m.luaRemove,
	})
	L.Push(mod)
	return 1
}

func registerFileType(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(luaFileTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), fileMethods))
	L.SetField(mt, "__close", L.NewFunction(fileClose))
	return mt
}

func pushFile(L *lua.LState, lf *LuaFile) {
	ud := L.NewUserData()
	ud.Value = lf
	ud.Metatable = L.GetTypeMetatable(luaFileTypeName)
	L.Push(ud)
}

func checkLuaFile(L *lua.LState, n int) *LuaFile {
	ud := L.CheckUserData(n)
	lf, ok := ud.Value.(*LuaFile)
	if !ok {
		L.ArgError(n, "expected file handle")
	}
	return lf
}

// luaOpen implements fs.open(path, mode?). path is scheme-qualified;
// mode defaults to "r".
func (m *Module) luaOpen(L *lua.LState) int {
	path := L.CheckString(1)
	modeStr := L.OptString(2, "")

	mode, err := ParseOpenMode(modeStr)
	if err != nil {
		hiveerr.Raise(L, err)
		return 0
	}

	lf, err := m.open(path, mode)
	if err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	pushFile(L, lf)
	return 1
}

func (m *Module) open(path string, mode OpenMode) (*LuaFile, error) {
	b := m.current()
	scheme, rel := ParsePath(path)
	var lf *LuaFile
	switch scheme {
	case SchemeLocal:
		if b.localFS == nil {
			return nil, hiveerr.New(hiveerr.IO, "no local storage bound for this service")
		}
		normalized := NormalizeLocal(rel)
		f, err := b.localFS.OpenFile(normalized, mode.Flags(), 0o644)
		if err != nil {
			return nil, wrapFSErr(err, path)
		}
		lf = NewReadWriteFile(path, mode, f)
	case SchemeExternal:
		normalized := NormalizeExternal(rel)
		for _, atom := range mode.PermissionAtoms() {
			if err := b.permsOrEmpty().Check(atom, normalized); err != nil {
				return nil, err
			}
		}
		f, err := m.externalFS.OpenFile(normalized, mode.Flags(), 0o644)
		if err != nil {
			return nil, wrapFSErr(err, path)
		}
		lf = NewReadWriteFile(path, mode, f)
	case SchemeSource:
		if mode != ModeRead {
			return nil, hiveerr.Newf(hiveerr.InvalidOpenMode, "source: paths are read-only, got mode %q", mode)
		}
		if b.src == nil {
			return nil, hiveerr.New(hiveerr.ServicePathNotFound, "service has no source bound")
		}
		f, err := b.src.Get(b.ctx, rel)
		if err != nil {
			return nil, err
		}
		lf = NewReadOnlyFile(path, f)
	default:
		return nil, SchemeNotSupportedErr(scheme)
	}

	if b.rc != nil {
		h := b.rc.Register(lf)
		lf.SetReleaseHandle(h)
	}
	return lf, nil
}

func wrapFSErr(err error, path string) error {
	return hiveerr.Wrap(hiveerr.IO, "filesystem operation failed", err).WithDetail(map[string]string{"path": path})
}

func (m *Module) luaMkdir(L *lua.LState) int {
	path := L.CheckString(1)
	recursive := L.OptBool(2, false)
	if err := m.mkdir(path, recursive); err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	return 0
}

func (m *Module) mkdir(path string, recursive bool) error {
	b := m.current()
	scheme, rel := ParsePath(path)
	switch scheme {
	case SchemeLocal:
		if b.localFS == nil {
			return hiveerr.New(hiveerr.IO, "no local storage bound for this service")
		}
		normalized := NormalizeLocal(rel)
		if recursive {
			return wrapIfErr(b.localFS.MkdirAll(normalized, 0o755), path)
		}
		return wrapIfErr(b.localFS.Mkdir(normalized, 0o755), path)
	case SchemeExternal:
		normalized := NormalizeExternal(rel)
		if err := b.permsOrEmpty().Check(permission.Write, normalized); err != nil {
			return err
		}
		if recursive {
			return wrapIfErr(m.externalFS.MkdirAll(normalized, 0o755), path)
		}
		return wrapIfErr(m.externalFS.Mkdir(normalized, 0o755), path)
	case SchemeSource:
		return hiveerr.New(hiveerr.CannotModifyServiceSource, "cannot mkdir under source:")
	default:
		return SchemeNotSupportedErr(scheme)
	}
}

func (m *Module) luaRemove(L *lua.LState) int {
	path := L.CheckString(1)
	recursive := L.OptBool(2, false)
	if err := m.remove(path, recursive); err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	return 0
}

func (m *Module) remove(path string, recursive bool) error {
	b := m.current()
	scheme, rel := ParsePath(path)
	switch scheme {
	case SchemeLocal:
		if b.localFS == nil {
			return hiveerr.New(hiveerr.IO, "no local storage bound for this service")
		}
		normalized := NormalizeLocal(rel)
		if recursive {
			return wrapIfErr(b.localFS.RemoveAll(normalized), path)
		}
		return wrapIfErr(b.localFS.Remove(normalized), path)
	case SchemeExternal:
		normalized := NormalizeExternal(rel)
		if err := b.permsOrEmpty().Check(permission.Write, normalized); err != nil {
			return err
		}
		if recursive {
			return wrapIfErr(m.externalFS.RemoveAll(normalized), path)
		}
		return wrapIfErr(m.externalFS.Remove(normalized), path)
	case SchemeSource:
		return hiveerr.New(hiveerr.CannotModifyServiceSource, "cannot remove under source:")
	default:
		return SchemeNotSupportedErr(scheme)
	}
}

func wrapIfErr(err error, path string) error {
	if err == nil {
		return nil
	}
	return wrapFSErr(err, path)
}
