// Package permission implements the Permission Set that gates every
// host-path access performed by scripted code against external:
// paths. Sets are immutable once built and shared by pointer.
package permission

import (
	"path/filepath"
	"strings"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// AtomKind is the capability an Atom grants.
type AtomKind string

const (
	Read  AtomKind = "read"
	Write AtomKind = "write"
)

// Atom is one granted capability: a kind plus a path prefix it applies to.
type Atom struct {
	Kind   AtomKind
	Prefix string
}

// Set is an immutable bag of granted atoms, checked synchronously on
// every external:// filesystem operation.
type Set struct {
	atoms []Atom
}

// New builds an immutable Set from the given atoms. The slice is
// copied so later mutation of the caller's slice cannot affect Set.
func New(atoms ...Atom) *Set {
	cp := make([]Atom, len(atoms))
	for i, a := range atoms {
		cp[i] = Atom{Kind: a.Kind, Prefix: normalize(a.Prefix)}
	}
	return &Set{atoms: cp}
}

// Empty is the permission set granting nothing.
func Empty() *Set { return &Set{} }

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	return filepath.Clean(p)
}

// Check reports whether the set grants the given atom kind over path,
// returning a hiveerr.PermissionDenied error naming the attempted
// access when it does not.
func (s *Set) Check(kind AtomKind, path string) error {
	if s.allows(kind, path) {
		return nil
	}
	return hiveerr.PermissionDeniedErr(string(kind), path)
}

func (s *Set) allows(kind AtomKind, path string) bool {
	path = normalize(path)
	for _, a := range s.atoms {
		if a.Kind != kind {
			continue
		}
		if path == a.Prefix || strings.HasPrefix(path, a.Prefix+string(filepath.Separator)) || a.Prefix == "/" {
			return true
		}
	}
	return false
}

// Atoms returns a copy of the set's granted atoms, for inspection
// (e.g. by the admin API when describing a service's grants).
func (s *Set) Atoms() []Atom {
	cp := make([]Atom, len(s.atoms))
	copy(cp, s.atoms)
	return cp
}
