// Package sharedmod implements the `shared` sandbox module: Lua-facing
// constructors and methods over a
// *sharedtable.SharedTable, kept separate from pkg/sharedtable itself
// so that package stays free of a gopher-lua dependency, the same
// split pkg/jsonmod draws between its pure-Go converter and its
// Loader.
package sharedmod

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/sharedtable"
)

const sharedTableTypeName = "hive.shared_table"

// Loader registers the `shared` module table, suitable for
// `L.PreloadModule("shared", sharedmod.Loader)`.
func Loader(L *lua.LState) int {
	registerSharedTableType(L)

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"new": luaNew,
	})
	L.Push(mod)
	return 1
}

func registerSharedTableType(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(sharedTableTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), sharedTableMethods))
	return mt
}

var sharedTableMethods = map[string]lua.LGFunction{
	"get":       luaGet,
	"set":       luaSet,
	"len":       luaLen,
	"set_array": luaSetArray,
	"is_array":  luaIsArray,
	"deep_copy": luaDeepCopy,
}

func luaNew(L *lua.LState) int {
	pushSharedTable(L, sharedtable.New())
	return 1
}

func pushSharedTable(L *lua.LState, st *sharedtable.SharedTable) {
	ud := L.NewUserData()
	ud.Value = st
	ud.Metatable = L.GetTypeMetatable(sharedTableTypeName)
	L.Push(ud)
}

func checkSharedTable(L *lua.LState, n int) *sharedtable.SharedTable {
	ud := L.CheckUserData(n)
	st, ok := ud.Value.(*sharedtable.SharedTable)
	if !ok {
		L.ArgError(n, "expected shared table")
	}
	return st
}

func luaGet(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	key := L.CheckString(2)
	v, ok := st.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	lv, err := goValueToLua(L, v)
	if err != nil {
		L.RaiseError("shared table get: %v", err)
		return 0
	}
	L.Push(lv)
	return 1
}

func luaSet(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	key := L.CheckString(2)
	value := L.Get(3)
	goVal, err := luaValueToGo(value)
	if err != nil {
		L.RaiseError("shared table set: %v", err)
		return 0
	}
	st.Set(key, goVal)
	return 0
}

func luaLen(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	L.Push(lua.LNumber(st.Len()))
	return 1
}

func luaSetArray(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	st.SetArray(L.CheckBool(2))
	return 0
}

func luaIsArray(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	L.Push(lua.LBool(st.IsArray()))
	return 1
}

// luaDeepCopy implements the "deep-copy-into-scripted-table"
// operation: returns a freshly built plain Lua table tree, with any
// detected reference cycle replaced by a sentinel table tagged
// `__cycle__ = true`, mirroring pkg/sharedtable.DeepCopy's documented
// cycle-breaking choice.
func luaDeepCopy(L *lua.LState) int {
	st := checkSharedTable(L, 1)
	tree := st.DeepCopy()
	L.Push(mapToLuaTable(L, tree))
	return 1
}

func mapToLuaTable(L *lua.LState, m map[string]sharedtable.Value) *lua.LTable {
	t := L.NewTable()
	for k, v := range m {
		t.RawSetString(k, deepValueToLua(L, v))
	}
	return t
}

func deepValueToLua(L *lua.LState, v sharedtable.Value) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case sharedtable.CycleMarker:
		cycle := L.NewTable()
		cycle.RawSetString("__cycle__", lua.LTrue)
		return cycle
	case map[string]sharedtable.Value:
		return mapToLuaTable(L, x)
	case bool:
		return lua.LBool(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LNil
	}
}

func luaValueToGo(lv lua.LValue) (sharedtable.Value, error) {
	switch x := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		f := float64(x)
		if f == float64(int64(f)) {
			return int64(f), nil
		}
		return f, nil
	case *lua.LUserData:
		if st, ok := x.Value.(*sharedtable.SharedTable); ok {
			return st, nil
		}
		return nil, errUnsupported(lv)
	default:
		return nil, errUnsupported(lv)
	}
}

func goValueToLua(L *lua.LState, v sharedtable.Value) (lua.LValue, error) {
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(x), nil
	case string:
		return lua.LString(x), nil
	case int64:
		return lua.LNumber(x), nil
	case float64:
		return lua.LNumber(x), nil
	case *sharedtable.SharedTable:
		ud := L.NewUserData()
		ud.Value = x
		ud.Metatable = L.GetTypeMetatable(sharedTableTypeName)
		return ud, nil
	default:
		return nil, errUnsupported(nil)
	}
}

type unsupportedValueError struct{ lv lua.LValue }

func (e unsupportedValueError) Error() string {
	if e.lv == nil {
		return "unsupported value in shared table"
	}
	return "unsupported value type in shared table: " + e.lv.Type().String()
}

func errUnsupported(lv lua.LValue) error { return unsupportedValueError{lv: lv} }
