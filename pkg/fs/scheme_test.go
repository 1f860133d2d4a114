package fs_test

import (
	"testing"

	"github.com/cuemby/hive/pkg/fs"
	"github.com/stretchr/testify/assert"
)

func TestParsePathDefaultsToLocal(t *testing.T) {
	scheme, rel := fs.ParsePath("data/cache.json")
	assert.Equal(t, fs.SchemeLocal, scheme)
	assert.Equal(t, "data/cache.json", rel)
}

func TestParsePathRecognizesSchemes(t *testing.T) {
	scheme, rel := fs.ParsePath("external:/etc/hosts")
	assert.Equal(t, fs.SchemeExternal, scheme)
	assert.Equal(t, "/etc/hosts", rel)

	scheme, rel = fs.ParsePath("source:handlers/main.lua")
	assert.Equal(t, fs.SchemeSource, scheme)
	assert.Equal(t, "handlers/main.lua", rel)
}

func TestParsePathUnknownSchemeIsReturnedVerbatim(t *testing.T) {
	scheme, rel := fs.ParsePath("foo:bar")
	assert.Equal(t, fs.Scheme("foo"), scheme)
	assert.Equal(t, "bar", rel)
}

func TestNormalizeLocalClampsEscape(t *testing.T) {
	assert.Equal(t, "etc/passwd", fs.NormalizeLocal("../../etc/passwd"))
	assert.Equal(t, "a/b", fs.NormalizeLocal("a/./b"))
}

func TestNormalizeExternalIsAbsoluteAndClean(t *testing.T) {
	assert.Equal(t, "/etc/passwd", fs.NormalizeExternal("etc/../etc/passwd"))
	assert.Equal(t, "/var/log", fs.NormalizeExternal("/var/log/"))
}
