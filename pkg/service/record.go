// Package service implements the Service Pool: the
// concurrent registry of every installed service, each wrapped in a
// small state machine of {Running, Stopped}, backed by pkg/sandbox
// for script execution and pkg/fs's afero.Fs for the per-service
// local-storage subtree.
package service

import (
	"github.com/google/uuid"

	"github.com/cuemby/hive/pkg/pathmatch"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/source"
)

// Name identifies a service; unique within one Service Pool.
type Name string

// Record is the immutable metadata of one installed service: name,
// generated identity, path patterns, source handle, and permission
// grant. Immutable once built: a Record's name, identity, and path
// patterns never change across stop/start.
type Record struct {
	Name        Name
	ID          string
	Paths       []*pathmatch.Matcher
	Source      source.Source
	Permissions *permission.Set
}

// newRecord builds a Record with a freshly generated identity.
func newRecord(name Name, paths []*pathmatch.Matcher, src source.Source, perms *permission.Set) *Record {
	return &Record{
		Name:        name,
		ID:          uuid.New().String(),
		Paths:       paths,
		Source:      src,
		Permissions: perms,
	}
}
