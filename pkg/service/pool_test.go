package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/service"
	"github.com/cuemby/hive/pkg/source"
)

const echoScript = `
local fs = require("fs")
return {
	paths = {"/echo"},
	start = function()
		local f = fs.open("local:started.txt", "w")
		f:write("yes")
		f:close()
	end,
	handle = function(req)
		return "echo:" .. req.body
	end,
}
`

func newTestPool(t *testing.T) (*service.Pool, afero.Fs) {
	t.Helper()
	root := afero.NewMemMapFs()
	sboxes, err := sandbox.NewPool(context.Background(), 2, root)
	require.NoError(t, err)
	t.Cleanup(sboxes.Close)
	return service.NewPool(sboxes, root), root
}

func TestCreateStartDispatchStopRemove(t *testing.T) {
	pool, root := newTestPool(t)
	ctx := context.Background()

	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})
	rec, err := pool.Create(ctx, "echo", src, permission.Empty())
	require.NoError(t, err)
	assert.Equal(t, service.Name("echo"), rec.Name)

	view, ok := pool.Get("echo")
	require.True(t, ok)
	assert.True(t, view.Running)

	require.NoError(t, pool.Start(ctx, "echo"))

	exists, err := afero.Exists(root, "echo/started.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	resp, err := pool.Dispatch(ctx, "echo", sandbox.Request{Method: "GET", Path: "/echo", Body: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(resp.Body))

	require.NoError(t, pool.Stop(ctx, "echo"))
	view, ok = pool.Get("echo")
	require.True(t, ok)
	assert.False(t, view.Running)

	_, err = pool.Dispatch(ctx, "echo", sandbox.Request{Method: "GET", Path: "/echo"})
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServiceStopped))

	_, err = pool.Remove("echo")
	require.NoError(t, err)
	_, ok = pool.Get("echo")
	assert.False(t, ok)
}

// TestStartAfterCreateRunsHookThenRejectsRepeat exercises the two
// halves of the Create/Start relationship: Create installs the entry
// as Running without running the start hook, so the first Start must
// still run it; a second Start with no intervening Stop must fail
// ServiceRunning.
func TestStartAfterCreateRunsHookThenRejectsRepeat(t *testing.T) {
	pool, root := newTestPool(t)
	ctx := context.Background()

	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})
	_, err := pool.Create(ctx, "echo", src, permission.Empty())
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx, "echo"))
	exists, err := afero.Exists(root, "echo/started.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	err = pool.Start(ctx, "echo")
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServiceRunning))
}

func TestCreateDuplicateNameFails(t *testing.T) {
	pool, _ := newTestPool(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})

	_, err := pool.Create(ctx, "echo", src, permission.Empty())
	require.NoError(t, err)

	_, err = pool.Create(ctx, "echo", src, permission.Empty())
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServiceExists))
}

func TestRemoveWhileRunningFails(t *testing.T) {
	pool, _ := newTestPool(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})

	_, err := pool.Create(ctx, "echo", src, permission.Empty())
	require.NoError(t, err)

	_, err = pool.Remove("echo")
	require.Error(t, err)
	assert.True(t, hiveerr.Is(err, hiveerr.ServiceRunning))
}

// TestDirSourceChangeInvalidatesCompiledCopy exercises the hot-reload
// loop: a directory-backed service's compiled copy is forgotten in
// every Sandbox once its bundle changes on disk, so the next dispatch
// recompiles and picks up the edited handler.
func TestDirSourceChangeInvalidatesCompiledCopy(t *testing.T) {
	pool, _ := newTestPool(t)
	ctx := context.Background()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(mainPath, []byte(`
		return {paths = {"/greet"}, handle = function(req) return "v1" end}
	`), 0o644))

	src, err := source.NewDirSource(dir)
	require.NoError(t, err)

	_, err = pool.Create(ctx, "greet", src, permission.Empty())
	require.NoError(t, err)

	resp, err := pool.Dispatch(ctx, "greet", sandbox.Request{Method: "GET", Path: "/greet"})
	require.NoError(t, err)
	assert.Equal(t, "v1", string(resp.Body))

	require.NoError(t, os.WriteFile(mainPath, []byte(`
		return {paths = {"/greet"}, handle = function(req) return "v2" end}
	`), 0o644))

	require.Eventually(t, func() bool {
		resp, err := pool.Dispatch(ctx, "greet", sandbox.Request{Method: "GET", Path: "/greet"})
		return err == nil && string(resp.Body) == "v2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatchEachSandboxCompilesIndependently(t *testing.T) {
	pool, _ := newTestPool(t)
	ctx := context.Background()
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})

	_, err := pool.Create(ctx, "echo", src, permission.Empty())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		resp, err := pool.Dispatch(ctx, "echo", sandbox.Request{Method: "GET", Path: "/echo", Body: []byte("x")})
		require.NoError(t, err)
		assert.Equal(t, "echo:x", string(resp.Body))
	}
}
