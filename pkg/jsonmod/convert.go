package jsonmod

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/sharedtable"
)

const arrayMetatableRegistryKey = "hive:json:array_metatable"

// ArrayMetatable returns the shared metatable used to tag a plain Lua
// table as JSON-array-shaped, creating and caching it in L's registry
// on first use (mirrors mlua's `lua.array_metatable()` helper).
func ArrayMetatable(L *lua.LState) *lua.LTable {
	registry := L.Get(lua.RegistryIndex).(*lua.LTable)
	if mt, ok := registry.RawGetString(arrayMetatableRegistryKey).(*lua.LTable); ok {
		return mt
	}
	mt := L.NewTable()
	mt.RawSetString("__hive_array", lua.LTrue)
	registry.RawSetString(arrayMetatableRegistryKey, mt)
	return mt
}

func isArrayTable(L *lua.LState, t *lua.LTable) bool {
	if t.Metatable == nil {
		return false
	}
	mt, ok := t.Metatable.(*lua.LTable)
	if !ok {
		return false
	}
	return mt.RawGetString("__hive_array") == lua.LTrue
}

// ToLua converts a Go value (a decoded JSON document whose
// json.Number values have already been turned into int64/float64, or
// a value hand-built by other host modules) into an LValue. Supported
// inputs: nil, bool, string, []byte, int, int64, float64,
// map[string]any, []any, *sharedtable.SharedTable; a json.Number is
// rejected.
func ToLua(L *lua.LState, v any) (lua.LValue, error) {
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(x), nil
	case string:
		return lua.LString(x), nil
	case []byte:
		return lua.LString(x), nil
	case int:
		return lua.LNumber(x), nil
	case int64:
		return lua.LNumber(x), nil
	case float64:
		return lua.LNumber(x), nil
	case map[string]any:
		t := L.NewTable()
		for k, val := range x {
			lv, err := ToLua(L, val)
			if err != nil {
				return nil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	case []any:
		t := L.NewTable()
		for i, val := range x {
			lv, err := ToLua(L, val)
			if err != nil {
				return nil, err
			}
			t.RawSetInt(i+1, lv)
		}
		t.Metatable = ArrayMetatable(L)
		return t, nil
	case *sharedtable.SharedTable:
		ud := L.NewUserData()
		ud.Value = x
		return ud, nil
	default:
		return nil, fmt.Errorf("jsonmod: unsupported value type %T", v)
	}
}

// FromLua converts an LValue into a plain Go value suitable for
// encoding/json.Marshal, recursing into tables and into userdata that
// wraps a *sharedtable.SharedTable (so stringify treats a Shared
// Table exactly like a plain table with the same array-marker rule).
func FromLua(L *lua.LState, lv lua.LValue) (any, error) {
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
	case *lua.LTable:
		return fromLuaTable(L, x)
	case *lua.LUserData:
		if st, ok := x.Value.(*sharedtable.SharedTable); ok {
			return fromSharedTable(st, make(map[*sharedtable.SharedTable]bool))
		}
		return nil, fmt.Errorf("jsonmod: cannot encode userdata of type %T", x.Value)
	default:
		return nil, fmt.Errorf("jsonmod: cannot encode value of type %T", lv)
	}
}

func fromLuaTable(L *lua.LState, t *lua.LTable) (any, error) {
	if isArrayTable(L, t) || (t.Len() > 0 && isDenseSequence(t)) {
		arr := make([]any, 0, t.Len())
		var convErr error
		t.ForEach(func(_, v lua.LValue) {
			if convErr != nil {
				return
			}
			cv, err := FromLua(L, v)
			if err != nil {
				convErr = err
				return
			}
			arr = append(arr, cv)
		})
		if convErr != nil {
			return nil, convErr
		}
		return arr, nil
	}

	obj := make(map[string]any)
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("jsonmod: non-string table key cannot be encoded")
			return
		}
		cv, err := FromLua(L, v)
		if err != nil {
			convErr = err
			return
		}
		obj[string(key)] = cv
	})
	if convErr != nil {
		return nil, convErr
	}
	return obj, nil
}

// isDenseSequence reports whether t's only keys are 1..Len() with no
// holes, the heuristic used (absent an explicit array marker) to
// decide object-vs-array shape, matching common Lua JSON bridges.
func isDenseSequence(t *lua.LTable) bool {
	n := t.Len()
	count := 0
	dense := true
	t.ForEach(func(_, _ lua.LValue) { count++ })
	for i := 1; i <= n; i++ {
		if t.RawGetInt(i) == lua.LNil {
			dense = false
			break
		}
	}
	return dense && count == n
}

// fromSharedTable walks st into a plain Go value for JSON encoding.
// seen tracks tables currently on the walk's call stack (mirroring
// sharedtable.DeepCopyStrict's cycle walk); a table reachable from
// itself through nested references raises hiveerr.CycleDetected
// rather than recursing unboundedly, since unlike DeepCopy, JSON
// encoding has no sentinel value to substitute for a back-edge.
func fromSharedTable(st *sharedtable.SharedTable, seen map[*sharedtable.SharedTable]bool) (any, error) {
	if seen[st] {
		return nil, hiveerr.New(hiveerr.CycleDetected, "cycle detected in shared table during JSON encoding")
	}
	seen[st] = true
	defer delete(seen, st)

	if st.IsArray() {
		snap := st.Snapshot()
		arr := make([]any, 0, len(snap))
		for i := 1; ; i++ {
			v, ok := snap[fmt.Sprintf("%d", i)]
			if !ok {
				break
			}
			cv, err := sharedValueToGo(v, seen)
			if err != nil {
				return nil, err
			}
			arr = append(arr, cv)
		}
		return arr, nil
	}
	snap := st.Snapshot()
	obj := make(map[string]any, len(snap))
	for k, v := range snap {
		cv, err := sharedValueToGo(v, seen)
		if err != nil {
			return nil, err
		}
		obj[k] = cv
	}
	return obj, nil
}

func sharedValueToGo(v sharedtable.Value, seen map[*sharedtable.SharedTable]bool) (any, error) {
	if st, ok := v.(*sharedtable.SharedTable); ok {
		return fromSharedTable(st, seen)
	}
	return v, nil
}
