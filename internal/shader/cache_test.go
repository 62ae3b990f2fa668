package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/gpu/gputest"
	"mini-gfx/internal/log"
)

func TestLoadDefaults(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, 0, log.Discard())
	require.NoError(t, c.LoadDefaults())
	assert.Equal(t, len(defaultSources), c.Len())

	batched := c.MustGet(PositionTextureColorNoMVP)
	assert.True(t, batched.UsesBuiltin(UniformPMatrix))
	assert.False(t, batched.UsesBuiltin(UniformMVPMatrix))
	assert.False(t, batched.HasUserUniforms())

	ucolor := c.MustGet(PositionUColor)
	assert.True(t, ucolor.HasUserUniforms())
	_, ok := ucolor.Uniform("u_color")
	assert.True(t, ok)
}

func TestGetUnknown(t *testing.T) {
	c := NewCache(gputest.New(), 4, nil)
	_, err := c.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownProgram)
	assert.Panics(t, func() { c.MustGet("nope") })
}

func TestEvictionReleasesAndRebuilds(t *testing.T) {
	dev := gputest.New()
	c := NewCache(dev, 1, log.Discard())
	c.Register("a", defaultSources[PositionColor])
	c.Register("b", defaultSources[PositionUColor])

	a, err := c.Get("a")
	require.NoError(t, err)
	oldA := a.Handle()

	_, err = c.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, a.Handle(), "evicted program is released")
	assert.NotContains(t, dev.Programs, oldA)

	a2, err := c.Get("a")
	require.NoError(t, err)
	assert.NotZero(t, a2.Handle())
}

func TestReloadOnRecreate(t *testing.T) {
	dev := gputest.New()
	lc := gpu.NewLifecycle()
	c := NewCache(dev, 8, log.Discard())
	require.NoError(t, c.LoadDefaults())
	c.Listen(lc)

	p := c.MustGet(PositionTextureColor)
	old := p.Handle()

	dev.LoseContext()
	lc.Recreated()

	assert.NotEqual(t, old, p.Handle())
	assert.Contains(t, dev.Programs, p.Handle())
	assert.Equal(t, len(defaultSources), len(dev.Programs))

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Empty(t, dev.Programs)
	assert.Zero(t, lc.Len())
}
