package sharedtable_test

import (
	"testing"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/sharedtable"
	"github.com/stretchr/testify/assert"
)

func TestSetGetAndDeleteOnNil(t *testing.T) {
	tbl := sharedtable.New()
	tbl.Set("a", int64(1))
	v, ok := tbl.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	tbl.Set("a", nil)
	_, ok = tbl.Get("a")
	assert.False(t, ok)
}

func TestArrayFlagStableIdentity(t *testing.T) {
	tbl := sharedtable.New()
	tbl.SetArray(true)
	assert.True(t, tbl.IsArray())
	tbl.SetArray(false)
	assert.False(t, tbl.IsArray())
}

func TestDeepCopyNested(t *testing.T) {
	inner := sharedtable.New()
	inner.Set("x", int64(2))
	outer := sharedtable.New()
	outer.Set("inner", inner)
	outer.Set("y", "hi")

	cp := outer.DeepCopy()
	innerCopy, ok := cp["inner"].(map[string]sharedtable.Value)
	assert.True(t, ok)
	assert.Equal(t, int64(2), innerCopy["x"])
	assert.Equal(t, "hi", cp["y"])
}

func TestDeepCopyBreaksCycle(t *testing.T) {
	a := sharedtable.New()
	b := sharedtable.New()
	a.Set("b", b)
	b.Set("a", a)

	cp := a.DeepCopy()
	bCopy := cp["b"].(map[string]sharedtable.Value)
	_, isCycle := bCopy["a"].(sharedtable.CycleMarker)
	assert.True(t, isCycle)
}

func TestDeepCopyStrictErrorsOnCycle(t *testing.T) {
	a := sharedtable.New()
	b := sharedtable.New()
	a.Set("b", b)
	b.Set("a", a)

	_, err := a.DeepCopyStrict()
	assert.True(t, hiveerr.Is(err, hiveerr.CycleDetected))
}
