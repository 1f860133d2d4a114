package sandbox

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/fs"
)

// compiledService is what PreCreateService produces and
// FinishCreateService installs into a Sandbox's registry: one
// service's compiled entry points plus the local environment table
// its top-level script ran against (the "per-service local
// environment").
//
// Isolation note: gopher-lua gives every *lua.LFunction an explicit
// Env table rather than reading a single process-wide _G, so two
// services compiled in the same Sandbox never see each other's
// globals even though they share one *lua.LState — each compiled
// function's Env falls back to the Sandbox's true global table via a
// metatable `__index`, so `require`, the preloaded modules, and the
// patched `error`/`assert`/`pcall`/`bind` are still visible, but a
// plain assignment like `counter = 0` only ever lands in that
// service's own table.
type compiledService struct {
	name     string
	env      *lua.LTable
	paths    []string
	handleFn *lua.LFunction
	startFn  *lua.LFunction
	stopFn   *lua.LFunction
	fsModule *fs.Module
}

// newLocalEnv builds a fresh environment table for one service's
// compiled script: writes land in this table, reads fall back to the
// Sandbox's real globals.
func newLocalEnv(L *lua.LState) *lua.LTable {
	env := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", L.G.Global)
	env.Metatable = mt
	return env
}

func pathsFromTable(t *lua.LTable) []string {
	if t == nil {
		return nil
	}
	var paths []string
	t.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			paths = append(paths, string(s))
		}
	})
	return paths
}
