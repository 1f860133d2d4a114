package source

import (
	"bytes"
	"context"
	"sync"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// MapSource is an in-memory bundle: path -> file contents. Used by
// tests and by the admin API's inline-bundle creation path, where a
// service's scripts are uploaded directly in the create request
// instead of being read from a directory.
type MapSource struct {
	mu    *sync.RWMutex
	files map[string][]byte
}

// NewMapSource builds a MapSource from a path -> contents map. The
// map is copied; later mutation of the caller's map has no effect.
func NewMapSource(files map[string][]byte) *MapSource {
	cp := make(map[string][]byte, len(files))
	for k, v := range files {
		cpv := make([]byte, len(v))
		copy(cpv, v)
		cp[k] = cpv
	}
	return &MapSource{mu: &sync.RWMutex{}, files: cp}
}

func (m *MapSource) Clone() Source {
	return &MapSource{mu: m.mu, files: m.files}
}

func (m *MapSource) Get(_ context.Context, path string) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contents, ok := m.files[path]
	if !ok {
		return nil, hiveerr.New(hiveerr.ServicePathNotFound, "file not found in source").
			WithDetail(map[string]string{"path": path})
	}
	return &memFile{Reader: bytes.NewReader(contents)}, nil
}

type memFile struct {
	*bytes.Reader
}

func (m *memFile) Close() error { return nil }
