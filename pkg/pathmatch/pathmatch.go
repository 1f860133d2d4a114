// Package pathmatch implements the compiled URL-path patterns a
// service mounts at. The core treats a Matcher as an opaque value it
// stores and returns; this package gives it one concrete
// implementation so the repository is runnable end to end. Segments
// are literal, "*" (one segment), or "**" (remainder of the path).
package pathmatch

import "strings"

// Matcher is a compiled path pattern, e.g. "/echo/*" or "/static/**".
type Matcher struct {
	pattern  string
	segments []string
}

// Compile parses pattern into a Matcher. Patterns must start with "/".
func Compile(pattern string) (*Matcher, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, errInvalidPattern(pattern)
	}
	trimmed := strings.Trim(pattern, "/")
	var segments []string
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}
	return &Matcher{pattern: pattern, segments: segments}, nil
}

// MustCompile is Compile but panics on error; for static patterns
// known at init time.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the original pattern text.
func (m *Matcher) String() string { return m.pattern }

// Match reports whether path satisfies the pattern, and if so returns
// the remainder matched by a trailing "**" (empty otherwise).
func (m *Matcher) Match(path string) (rest string, ok bool) {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}

	for i, seg := range m.segments {
		if seg == "**" {
			return strings.Join(parts[i:], "/"), true
		}
		if i >= len(parts) {
			return "", false
		}
		if seg != "*" && seg != parts[i] {
			return "", false
		}
	}
	if len(parts) != len(m.segments) {
		return "", false
	}
	return "", true
}

type errInvalidPattern string

func (e errInvalidPattern) Error() string {
	return "pathmatch: pattern must start with '/': " + string(e)
}
