// Package sandbox implements the Sandbox and Sandbox Pool: one
// `*lua.LState` per scripting interpreter, the lease/scope protocol
// that hands sandboxes out for short units of work, and the
// per-service compiled-entry-point registry each sandbox keeps
// independently (the embedded interpreter is not reentrant, so every
// sandbox must hold its own compiled copy of every service it has
// seen).
package sandbox

import (
	"io"

	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/fs"
	"github.com/cuemby/hive/pkg/hiveerr"
)

// Request is what the HTTP front end hands to RunRequest: method,
// path, headers, and body in.
type Request struct {
	Method  string
	Path    string
	Headers map[string][]string
	Body    []byte
}

// Response is what RunRequest returns: "status, headers, body out".
// Stream is set instead of Body when the handler returned a value
// produced by `file:into_stream()`, letting the front end copy
// straight from the underlying file without buffering it in memory.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    []byte
	Stream  io.Reader
}

func requestToLua(L *lua.LState, req Request) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))
	t.RawSetString("body", lua.LString(req.Body))
	headers := L.NewTable()
	for k, vs := range req.Headers {
		vt := L.NewTable()
		for _, v := range vs {
			vt.Append(lua.LString(v))
		}
		headers.RawSetString(k, vt)
	}
	t.RawSetString("headers", headers)
	return t
}

// responseFromLua accepts either a bare string (status 200, that
// string as the body), a table {status=, headers=, body=}, or a
// *fs.ByteStream userdata (status 200, streamed body) — the three
// shapes a handler can reasonably return.
func responseFromLua(lv lua.LValue) (Response, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return Response{Status: 200}, nil
	case lua.LString:
		return Response{Status: 200, Body: []byte(v)}, nil
	case *lua.LUserData:
		if stream, ok := v.Value.(*fs.ByteStream); ok {
			return Response{Status: 200, Stream: stream.Reader}, nil
		}
		return Response{}, responseShapeError(lv)
	case *lua.LTable:
		return responseFromTable(v)
	default:
		return Response{}, responseShapeError(lv)
	}
}

func responseFromTable(t *lua.LTable) (Response, error) {
	resp := Response{Status: 200}
	if status, ok := t.RawGetString("status").(lua.LNumber); ok {
		resp.Status = int(status)
	}
	switch body := t.RawGetString("body").(type) {
	case lua.LString:
		resp.Body = []byte(body)
	case *lua.LUserData:
		if stream, ok := body.Value.(*fs.ByteStream); ok {
			resp.Stream = stream.Reader
		}
	}
	if headersTable, ok := t.RawGetString("headers").(*lua.LTable); ok {
		resp.Headers = map[string][]string{}
		headersTable.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			switch val := v.(type) {
			case lua.LString:
				resp.Headers[string(key)] = []string{string(val)}
			case *lua.LTable:
				var vs []string
				val.ForEach(func(_, item lua.LValue) {
					vs = append(vs, item.String())
				})
				resp.Headers[string(key)] = vs
			}
		})
	}
	return resp, nil
}

func responseShapeError(lv lua.LValue) error {
	return hiveerr.Newf(hiveerr.ScriptError, "handler returned unsupported response value of type %s", lv.Type().String())
}
