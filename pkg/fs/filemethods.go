package fs

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cuemby/hive/pkg/hiveerr"
)

var fileMethods = map[string]lua.LGFunction{
	"read":        fileRead,
	"write":       fileWrite,
	"seek":        fileSeek,
	"lines":       fileLines,
	"flush":       fileFlush,
	"into_stream": fileIntoStream,
	"close":       fileClose,
}

// fileRead implements the variadic f:read(modes...): each mode
// argument produces one positional result, and iteration stops at the
// first nil (clean EOF), consuming no further modes. With no
// arguments a single "l" mode is implied, matching the single-result
// shape callers expect from a bare f:read().
func fileRead(L *lua.LState) int {
	lf := checkLuaFile(L, 1)

	last := L.GetTop()
	if last < 2 {
		last = 2
	}

	results := 0
	for i := 2; i <= last; i++ {
		mode, err := readModeFromArg(L, i)
		if err != nil {
			hiveerr.Raise(L, err)
			return 0
		}

		data, ok, err := lf.Read(mode)
		if err != nil {
			hiveerr.Raise(L, err)
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			results++
			break
		}
		L.Push(lua.LString(data))
		results++
	}
	return results
}

func readModeFromArg(L *lua.LState, n int) (ReadMode, error) {
	if L.GetTop() < n {
		return ParseReadMode("", false)
	}
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return ReadExact(int64(v)), nil
	case lua.LString:
		return ParseReadMode(string(v), true)
	case *lua.LNilType:
		return ParseReadMode("", false)
	default:
		return ReadMode{}, hiveerr.Newf(hiveerr.InvalidReadMode, "invalid read mode argument")
	}
}

func fileWrite(L *lua.LState) int {
	lf := checkLuaFile(L, 1)
	top := L.GetTop()
	var written int
	for i := 2; i <= top; i++ {
		s := L.CheckString(i)
		n, err := lf.Write([]byte(s))
		written += n
		if err != nil {
			hiveerr.Raise(L, err)
			return 0
		}
	}
	L.Push(lua.LNumber(written))
	return 1
}

func fileSeek(L *lua.LState) int {
	lf := checkLuaFile(L, 1)

	var whenceStr string
	hasWhence := L.GetTop() >= 2
	if hasWhence {
		whenceStr = L.CheckString(2)
	}
	whence, err := ParseSeekWhence(whenceStr, hasWhence)
	if err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	offset := L.OptInt64(3, 0)

	pos, err := lf.Seek(whence, offset)
	if err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	L.Push(lua.LNumber(pos))
	return 1
}

// fileLines returns a Lua iterator function suitable for `for line in
// f:lines() do ... end`, yielding nil (stopping the loop) at EOF.
func fileLines(L *lua.LState) int {
	lf := checkLuaFile(L, 1)
	iter := L.NewFunction(func(L *lua.LState) int {
		line, ok, err := lf.Read(ReadLine())
		if err != nil {
			hiveerr.Raise(L, err)
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(line))
		return 1
	})
	L.Push(iter)
	return 1
}

func fileFlush(L *lua.LState) int {
	lf := checkLuaFile(L, 1)
	if err := lf.Flush(); err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	return 0
}

// fileIntoStream hands the file's underlying reader to the caller as
// a *ByteStream userdata, so a read pass can flow into an HTTP
// response body without buffering in Lua. The file handle is not
// invalidated: it stays open and usable, and the stream reads from
// the same underlying file.
func fileIntoStream(L *lua.LState) int {
	lf := checkLuaFile(L, 1)
	stream := &ByteStream{Reader: lf.Reader(), file: lf}
	ud := L.NewUserData()
	ud.Value = stream
	L.Push(ud)
	return 1
}

func fileClose(L *lua.LState) int {
	lf := checkLuaFile(L, 1)
	if err := lf.Close(); err != nil {
		hiveerr.Raise(L, err)
		return 0
	}
	return 0
}
