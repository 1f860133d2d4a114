package hiveerr_test

import (
	"fmt"
	"testing"

	"github.com/cuemby/hive/pkg/hiveerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUnwrapsWrappedCause(t *testing.T) {
	inner := hiveerr.ServiceNotFoundErr("echo")
	outer := fmt.Errorf("create failed: %w", inner)

	assert.True(t, hiveerr.Is(outer, hiveerr.ServiceNotFound))
	assert.False(t, hiveerr.Is(outer, hiveerr.ServiceExists))
}

func TestAsRecoversDetail(t *testing.T) {
	err := hiveerr.ServiceExistsErr("fs1")
	he, ok := hiveerr.As(err)
	require.True(t, ok)
	assert.Equal(t, hiveerr.ServiceExists, he.Kind)
	assert.Equal(t, map[string]string{"name": "fs1"}, he.Detail)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := hiveerr.Wrap(hiveerr.IO, "failed to write", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
