package sandbox

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// installGlobalEnv replaces `error`, `assert`, and `pcall` so a
// script's own pcall sees exactly the value it (or a host module)
// raised — never a stringified form — and adds `bind`. A
// scripted error(value) survives any number of nested pcall layers
// unchanged; only once a value escapes every pcall inside the script
// and reaches the Go-side sandbox boundary does scriptErrorFromValue
// tag it as a *hiveerr.Error for Go callers.
func installGlobalEnv(L *lua.LState) {
	L.SetGlobal("error", L.NewFunction(luaError))
	L.SetGlobal("assert", L.NewFunction(luaAssert))
	L.SetGlobal("pcall", L.NewFunction(luaPCall))
	L.SetGlobal("bind", L.NewFunction(luaBind))
}

// scriptErrorFromValue tags a scripted error(...) argument as a
// ScriptCustom *hiveerr.Error for Go-side consumers at the sandbox
// boundary, extracting an HTTP status hint from a `status` field when
// the value is a table, and preserving a previously-tagged host error
// (re-raised unchanged) rather than double-wrapping it. This
// conversion only happens once an error has escaped every pcall inside
// the script (scriptLoadError calls it); while still inside the
// sandbox, luaError/luaAssert raise the scripted value completely
// unwrapped so a script's own pcall sees exactly what it raised.
func scriptErrorFromValue(value lua.LValue) *hiveerr.Error {
	if ud, ok := value.(*lua.LUserData); ok {
		if e, ok := ud.Value.(*hiveerr.Error); ok {
			return e
		}
	}
	status := 0
	if t, ok := value.(*lua.LTable); ok {
		if n, ok := t.RawGetString("status").(lua.LNumber); ok {
			status = int(n)
		}
	}
	e := hiveerr.New(hiveerr.ScriptCustom, value.String())
	e.StatusHint = status
	e.Detail = value
	return e
}

// luaError raises value exactly as given — no wrapping — so that a
// script's own pcall (luaPCall below) receives back the identical
// value it raised, matching Lua's native `error`/`pcall` contract for
// scripted values. Host-module errors go through hiveerr.Raise
// instead, which wraps them in userdata; pcallErrorValue hands that
// userdata back unchanged as well.
func luaError(L *lua.LState) int {
	if L.GetTop() == 0 {
		L.RaiseError("bad argument #1 to 'error' (value expected)")
		return 0
	}
	L.Error(L.Get(1), 1)
	return 0
}

func luaAssert(L *lua.LState) int {
	top := L.GetTop()
	if top == 0 {
		L.RaiseError("bad argument #1 to 'assert' (value expected)")
		return 0
	}
	v := L.Get(1)
	if v == lua.LNil || v == lua.LFalse {
		var msg lua.LValue = lua.LString("assertion failed!")
		if top >= 2 {
			msg = L.Get(2)
		}
		L.Error(msg, 0)
		return 0
	}
	return top
}

func luaPCall(L *lua.LState) int {
	top := L.GetTop()
	if top == 0 {
		L.RaiseError("bad argument #1 to 'pcall' (value expected)")
		return 0
	}
	nargs := top - 1
	err := L.PCall(nargs, lua.MultRet, nil)
	if err != nil {
		L.SetTop(0)
		L.Push(lua.LFalse)
		L.Push(pcallErrorValue(err))
		return 2
	}
	L.Insert(lua.LTrue, 1)
	return L.GetTop()
}

// pcallErrorValue recovers whatever value raised the error unchanged:
// a *hiveerr.Error-wrapping userdata from hiveerr.Raise, the value a
// script passed to `error` or `assert`, or a plain Lua runtime-fault
// string from the VM itself.
func pcallErrorValue(err error) lua.LValue {
	if apiErr, ok := err.(*lua.ApiError); ok {
		return apiErr.Object
	}
	return lua.LString(err.Error())
}

// luaBind implements the global `bind(fn, args...)` partial-
// application helper: returns a function that, when called with
// further arguments, invokes fn with the bound arguments prepended.
func luaBind(L *lua.LState) int {
	fn := L.CheckFunction(1)
	top := L.GetTop()
	bound := make([]lua.LValue, 0, top-1)
	for i := 2; i <= top; i++ {
		bound = append(bound, L.Get(i))
	}

	wrapper := L.NewFunction(func(L2 *lua.LState) int {
		extra := L2.GetTop()
		args := make([]lua.LValue, 0, len(bound)+extra)
		args = append(args, bound...)
		for i := 1; i <= extra; i++ {
			args = append(args, L2.Get(i))
		}
		L2.SetTop(0)
		L2.Push(fn)
		for _, a := range args {
			L2.Push(a)
		}
		L2.Call(len(args), lua.MultRet)
		return L2.GetTop()
	})
	L.Push(wrapper)
	return 1
}
