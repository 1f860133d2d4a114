package sandbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/spf13/afero"

	"github.com/cuemby/hive/pkg/sandbox"
)

func newGlobalEnvState(t *testing.T) *lua.LState {
	t.Helper()
	sb := sandbox.New(0, afero.NewMemMapFs())
	t.Cleanup(sb.Close)
	return sb.L
}

func TestPCallReturnsHostErrorUnchanged(t *testing.T) {
	L := newGlobalEnvState(t)
	require.NoError(t, L.DoString(`
		local ok, err = pcall(function()
			error({status = 404, message = "not found"})
		end)
		assert(ok == false)
		assert(err.status == 404)
		assert(err.message == "not found")
	`))
}

func TestAssertRaisesGivenMessage(t *testing.T) {
	L := newGlobalEnvState(t)
	require.NoError(t, L.DoString(`
		local ok, err = pcall(function()
			assert(false, "boom")
		end)
		assert(ok == false)
		assert(err == "boom")
	`))
}

func TestAssertPassesThroughTruthy(t *testing.T) {
	L := newGlobalEnvState(t)
	require.NoError(t, L.DoString(`
		local a, b = assert(1, 2)
		assert(a == 1)
		assert(b == 2)
	`))
}

func TestBindPartiallyApplies(t *testing.T) {
	L := newGlobalEnvState(t)
	require.NoError(t, L.DoString(`
		local function add(a, b, c) return a + b + c end
		local add5 = bind(add, 2, 3)
		assert(add5(10) == 15)
	`))
}

func TestNestedPCallPreservesHostErrorType(t *testing.T) {
	L := newGlobalEnvState(t)
	require.NoError(t, L.DoString(`
		local function inner()
			error({status = 500})
		end
		local ok1, err1 = pcall(function()
			local ok2, err2 = pcall(inner)
			assert(ok2 == false)
			error(err2)
		end)
		assert(ok1 == false)
		assert(err1.status == 500)
	`))
}

func TestTopLevelUncaughtErrorSurfacesAsApiError(t *testing.T) {
	L := newGlobalEnvState(t)
	err := L.DoString(`error({status = 400, message = "bad"})`)
	require.Error(t, err)
	assert.IsType(t, &lua.ApiError{}, err)
}
