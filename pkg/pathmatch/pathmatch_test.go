package pathmatch_test

import (
	"testing"

	"github.com/cuemby/hive/pkg/pathmatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralMatch(t *testing.T) {
	m, err := pathmatch.Compile("/echo")
	require.NoError(t, err)
	_, ok := m.Match("/echo")
	assert.True(t, ok)
	_, ok = m.Match("/echo/extra")
	assert.False(t, ok)
}

func TestWildcardSegment(t *testing.T) {
	m := pathmatch.MustCompile("/fs1/*")
	_, ok := m.Match("/fs1/a.txt")
	assert.True(t, ok)
	_, ok = m.Match("/fs1/a/b.txt")
	assert.False(t, ok)
}

func TestDoubleWildcardCapturesRest(t *testing.T) {
	m := pathmatch.MustCompile("/static/**")
	rest, ok := m.Match("/static/css/app.css")
	assert.True(t, ok)
	assert.Equal(t, "css/app.css", rest)
}

func TestCompileRejectsRelativePattern(t *testing.T) {
	_, err := pathmatch.Compile("echo")
	assert.Error(t, err)
}
