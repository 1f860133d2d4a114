package rescontext_test

import (
	"errors"
	"testing"

	"github.com/cuemby/hive/pkg/rescontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	name   string
	closed *[]string
	failer bool
}

func (f *fakeResource) Close() error {
	*f.closed = append(*f.closed, f.name)
	if f.failer {
		return errors.New("boom")
	}
	return nil
}

func TestDrainReleasesInLIFOOrder(t *testing.T) {
	ctx := rescontext.New()
	var closed []string
	ctx.Register(&fakeResource{name: "a", closed: &closed})
	ctx.Register(&fakeResource{name: "b", closed: &closed})
	ctx.Register(&fakeResource{name: "c", closed: &closed})

	errs := ctx.Drain()
	assert.Empty(t, errs)
	assert.Equal(t, []string{"c", "b", "a"}, closed)
	assert.Zero(t, ctx.Len())
}

func TestExplicitReleaseSkipsDrain(t *testing.T) {
	ctx := rescontext.New()
	var closed []string
	h := ctx.Register(&fakeResource{name: "a", closed: &closed})
	h.Release()

	errs := ctx.Drain()
	assert.Empty(t, errs)
	assert.Empty(t, closed)
}

func TestDrainCollectsErrorsWithoutStopping(t *testing.T) {
	ctx := rescontext.New()
	var closed []string
	ctx.Register(&fakeResource{name: "a", closed: &closed, failer: true})
	ctx.Register(&fakeResource{name: "b", closed: &closed, failer: true})

	errs := ctx.Drain()
	require.Len(t, errs, 2)
	assert.Equal(t, []string{"b", "a"}, closed)
}

func TestRegisterAfterDrainPanics(t *testing.T) {
	ctx := rescontext.New()
	ctx.Drain()
	assert.Panics(t, func() {
		ctx.Register(&fakeResource{name: "late", closed: &[]string{}})
	})
}
