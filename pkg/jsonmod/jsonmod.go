// Package jsonmod implements the `json` sandbox module: parse,
// stringify, and array, built on encoding/json plus the
// Lua-value bridge in convert.go. stringify accepts both regular
// tables and Shared Tables transparently.
package jsonmod

import (
	"bytes"
	"encoding/json"

	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/sharedtable"
)

// Loader registers the `json` module table, suitable for
// `L.PreloadModule("json", jsonmod.Loader)`.
func Loader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"parse":     parse,
		"stringify": stringify,
		"array":     arrayFn,
	})
	mod.RawSetString("array_metatable", ArrayMetatable(L))
	L.Push(mod)
	return 1
}

func parse(L *lua.LState) int {
	s := L.CheckString(1)

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		L.RaiseError("json.parse: %v", err)
		return 0
	}

	v, err := fromJSONAny(raw)
	if err != nil {
		L.RaiseError("json.parse: %v", err)
		return 0
	}
	lv, err := ToLua(L, v)
	if err != nil {
		L.RaiseError("json.parse: %v", err)
		return 0
	}
	L.Push(lv)
	return 1
}

func stringify(L *lua.LState) int {
	value := L.Get(1)
	pretty := L.OptBool(2, false)

	goVal, err := FromLua(L, value)
	if err != nil {
		L.RaiseError("json.stringify: %v", err)
		return 0
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(goVal, "", "  ")
	} else {
		data, err = json.Marshal(goVal)
	}
	if err != nil {
		L.RaiseError("json.stringify: %v", err)
		return 0
	}
	L.Push(lua.LString(data))
	return 1
}

func arrayFn(L *lua.LState) int {
	value := L.Get(1)
	switch v := value.(type) {
	case *lua.LTable:
		v.Metatable = ArrayMetatable(L)
	case *lua.LUserData:
		st, ok := v.Value.(*sharedtable.SharedTable)
		if !ok {
			L.RaiseError("json.array: expected table or shared table")
			return 0
		}
		st.SetArray(true)
	default:
		L.RaiseError("json.array: expected table or shared table")
		return 0
	}
	L.Push(value)
	return 1
}

// fromJSONAny normalizes encoding/json's UseNumber-decoded tree
// (json.Number instead of bare float64) into the int64/float64 split
// ToLua expects, so a round-tripped integer stays an integer.
func fromJSONAny(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			cv, err := fromJSONAny(val)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			cv, err := fromJSONAny(val)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return v, nil
	}
}
