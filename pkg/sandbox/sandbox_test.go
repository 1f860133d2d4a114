package sandbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/source"
	mocks_source "github.com/cuemby/hive/pkg/source/mocks"
)

const counterScript = `
local shared = require("shared")
local json = require("json")
local counter = 0

return {
	paths = {"/counter", "/counter/*"},
	start = function()
		counter = 10
	end,
	stop = function()
		counter = -1
	end,
	handle = function(req)
		counter = counter + 1
		return json.stringify({count = counter, path = req.path})
	end,
}
`

func newSandboxAndLocalFS(t *testing.T) (*sandbox.Sandbox, afero.Fs) {
	t.Helper()
	root := afero.NewMemMapFs()
	sb := sandbox.New(0, root)
	t.Cleanup(sb.Close)
	return sb, afero.NewMemMapFs()
}

func TestPreCreateAndFinishThenRequest(t *testing.T) {
	sb, localFS := newSandboxAndLocalFS(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(counterScript)})

	pre, err := sb.PreCreateService(ctx, "counter", src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/counter", "/counter/*"}, pre.Paths)

	h := sb.FinishCreateService("counter", pre)

	require.NoError(t, sb.RunStart(ctx, h, localFS, permission.Empty(), src))

	resp, err := sb.RunRequest(ctx, h, localFS, permission.Empty(), src, sandbox.Request{
		Method: "GET", Path: "/counter",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), `"count":11`)

	require.NoError(t, sb.RunStop(ctx, h, localFS, permission.Empty(), src))
}

func TestRunRequestUnknownHandleFails(t *testing.T) {
	sb, localFS := newSandboxAndLocalFS(t)
	ctx := context.Background()
	_, err := sb.RunRequest(ctx, sandbox.Handle{}, localFS, permission.Empty(), nil, sandbox.Request{})
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServiceNotFound))
}

func TestEnsureCompiledIsIdempotentPerSandbox(t *testing.T) {
	sb, localFS := newSandboxAndLocalFS(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(counterScript)})

	h1, err := sb.EnsureCompiled(ctx, "counter", src)
	require.NoError(t, err)
	h2, err := sb.EnsureCompiled(ctx, "counter", src)
	require.NoError(t, err)

	resp1, err := sb.RunRequest(ctx, h1, localFS, permission.Empty(), src, sandbox.Request{Path: "/counter"})
	require.NoError(t, err)
	resp2, err := sb.RunRequest(ctx, h2, localFS, permission.Empty(), src, sandbox.Request{Path: "/counter"})
	require.NoError(t, err)

	assert.Contains(t, string(resp1.Body), `"count":1`)
	assert.Contains(t, string(resp2.Body), `"count":2`)
}

// TestPreCreateServiceSurfacesSourceGetError drives PreCreateService
// against a mocked Source whose Get fails, standing in for a
// remote-backed Source (e.g. one fetching over the network) without
// a real implementation: PreCreateService must wrap the failure as
// ServicePathNotFound rather than a raw I/O error.
func TestPreCreateServiceSurfacesSourceGetError(t *testing.T) {
	sb, _ := newSandboxAndLocalFS(t)
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	mockSrc := mocks_source.NewMockSource(ctrl)
	mockSrc.EXPECT().Get(ctx, "main.lua").Return(nil, errors.New("connection reset"))

	_, err := sb.PreCreateService(ctx, "remote", mockSrc)
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServicePathNotFound))
}

func TestScriptErrorSurfacesAsScriptCustom(t *testing.T) {
	sb, localFS := newSandboxAndLocalFS(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(`
		return {
			paths = {"/boom"},
			handle = function(req)
				error({status = 418, message = "teapot"})
			end,
		}
	`)})

	h, err := sb.EnsureCompiled(ctx, "boom", src)
	require.NoError(t, err)

	_, err = sb.RunRequest(ctx, h, localFS, permission.Empty(), src, sandbox.Request{Path: "/boom"})
	require.Error(t, err)
	herr, ok := hiveerr.As(err)
	require.True(t, ok)
	assert.Equal(t, hiveerr.ScriptCustom, herr.Kind)
	assert.Equal(t, 418, herr.StatusHint)
}
