package sandbox

import lua "github.com/yuin/gopher-lua"

// httpLoader registers the `http` sandbox module: small ergonomic
// helpers over the request/response table shapes RunRequest builds
// and consumes, kept to header lookup and response-building helpers
// rather than an outbound HTTP client capability nothing here needs.
func httpLoader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"response": luaHTTPResponse,
		"header":   luaHTTPHeader,
	})
	L.Push(mod)
	return 1
}

// http.response(status, body, headers?) -> response table, the
// canonical way a handler builds a non-default response.
func luaHTTPResponse(L *lua.LState) int {
	status := L.CheckInt(1)
	body := L.OptString(2, "")
	resp := L.NewTable()
	resp.RawSetString("status", lua.LNumber(status))
	resp.RawSetString("body", lua.LString(body))
	if headers, ok := L.Get(3).(*lua.LTable); ok {
		resp.RawSetString("headers", headers)
	}
	L.Push(resp)
	return 1
}

// http.header(request, name) -> first value of a request header, or
// nil if absent; case-insensitive comparison isn't applied here since
// the front end normalizes header keys before building the request
// table.
func luaHTTPHeader(L *lua.LState) int {
	req := L.CheckTable(1)
	name := L.CheckString(2)
	headers, ok := req.RawGetString("headers").(*lua.LTable)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	values, ok := headers.RawGetString(name).(*lua.LTable)
	if !ok || values.Len() == 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(values.RawGetInt(1))
	return 1
}
