package fs

import (
	"strconv"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// ReadMode selects what a `file:read(...)` call returns: a fixed byte
// count, the rest of the file, or one line with or without its
// trailing newline.
type ReadMode struct {
	kind readKind
	n    int64
}

type readKind int

const (
	readExact readKind = iota
	readAll
	readLine
	readLineKeepEOL
)

// ReadAll reads every remaining byte.
func ReadAll() ReadMode { return ReadMode{kind: readAll} }

// ReadLine reads one line, stripping its trailing newline.
func ReadLine() ReadMode { return ReadMode{kind: readLine} }

// ReadLineKeepEOL reads one line, keeping its trailing newline.
func ReadLineKeepEOL() ReadMode { return ReadMode{kind: readLineKeepEOL} }

// ReadExact reads up to n bytes.
func ReadExact(n int64) ReadMode { return ReadMode{kind: readExact, n: n} }

// ParseReadMode accepts the forms `file:read(...)` takes: a bare
// integer (exact byte count), "a" (rest of file), "l" (one line, no
// EOL), "L" (one line, keep EOL), or no argument at all, which
// defaults to "l" to match common fopen-style line-reading idiom.
func ParseReadMode(arg string, hasArg bool) (ReadMode, error) {
	if !hasArg {
		return ReadLine(), nil
	}
	switch arg {
	case "a":
		return ReadAll(), nil
	case "l":
		return ReadLine(), nil
	case "L":
		return ReadLineKeepEOL(), nil
	default:
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || n < 0 {
			return ReadMode{}, hiveerr.Newf(hiveerr.InvalidReadMode, "invalid read mode: %q", arg)
		}
		return ReadExact(n), nil
	}
}
