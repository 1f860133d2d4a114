package httpfront_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/httpfront"
	"github.com/cuemby/hive/pkg/permission"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/service"
	"github.com/cuemby/hive/pkg/source"
)

const echoScript = `
return {
	paths = {"/echo"},
	handle = function(req)
		return {status = 200, body = "echo:" .. req.body}
	end,
}
`

func newTestServer(t *testing.T) *service.Pool {
	t.Helper()
	root := afero.NewMemMapFs()
	sboxes, err := sandbox.NewPool(context.Background(), 2, root)
	require.NoError(t, err)
	t.Cleanup(sboxes.Close)

	pool := service.NewPool(sboxes, root)
	src := source.NewMapSource(map[string][]byte{"main.lua": []byte(echoScript)})
	_, err = pool.Create(context.Background(), "echo", src, permission.Empty())
	require.NoError(t, err)
	return pool
}

func TestHandleDispatchesToRunningService(t *testing.T) {
	pool := newTestServer(t)
	srv := httpfront.New(pool)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo:", rec.Body.String())
}

func TestHandleUnknownPathReturns404(t *testing.T) {
	pool := newTestServer(t)
	srv := httpfront.New(pool)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStoppedServiceReturns404(t *testing.T) {
	pool := newTestServer(t)
	require.NoError(t, pool.Stop(context.Background(), "echo"))
	srv := httpfront.New(pool)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
