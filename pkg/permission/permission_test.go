package permission_test

import (
	"testing"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/stretchr/testify/assert"
)

func TestEmptySetDeniesEverything(t *testing.T) {
	s := permission.Empty()
	err := s.Check(permission.Read, "/etc/passwd")
	assert.True(t, hiveerr.Is(err, hiveerr.PermissionDenied))
}

func TestPrefixMatchGrantsSubpaths(t *testing.T) {
	s := permission.New(permission.Atom{Kind: permission.Read, Prefix: "/data"})
	assert.NoError(t, s.Check(permission.Read, "/data/foo.txt"))
	assert.NoError(t, s.Check(permission.Read, "/data"))
	assert.Error(t, s.Check(permission.Read, "/data-other/foo.txt"))
	assert.Error(t, s.Check(permission.Write, "/data/foo.txt"))
}

func TestRootPrefixGrantsEverything(t *testing.T) {
	s := permission.New(permission.Atom{Kind: permission.Write, Prefix: "/"})
	assert.NoError(t, s.Check(permission.Write, "/any/where"))
}
