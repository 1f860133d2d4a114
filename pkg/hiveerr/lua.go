package hiveerr

import lua "github.com/yuin/gopher-lua"

// ToLuaValue wraps err in userdata so its Kind and Detail survive a
// pcall boundary intact, instead of collapsing to a bare string the
// way L.RaiseError would. pkg/sandbox's replacement pcall hands this
// userdata to the script unchanged; FromLuaValue recovers the *Error
// on the Go side.
func ToLuaValue(L *lua.LState, err error) lua.LValue {
	ud := L.NewUserData()
	ud.Value = err
	return ud
}

// Raise raises err as a Lua error without losing its Kind. Host
// modules call this instead of L.RaiseError, which can only carry a
// plain string and would erase which Kind the script's pcall sees.
// Like L.RaiseError, this never returns.
func Raise(L *lua.LState, err error) {
	L.Error(ToLuaValue(L, err), 1)
}

// FromLuaValue extracts the *Error a Raise call wrapped, if lv is one
// of ours; ok is false for any other Lua error value (a plain string,
// a scripted table passed to `error(...)`, etc).
func FromLuaValue(lv lua.LValue) (*Error, bool) {
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	e, ok := ud.Value.(*Error)
	return e, ok
}
