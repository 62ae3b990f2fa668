package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/gpu/gputest"
	"mini-gfx/internal/log"
)

func TestNewBufferRejectsEmpty(t *testing.T) {
	dev := gputest.New()
	_, err := gpu.NewVertexBuffer(dev, 0, 10, false)
	require.ErrorIs(t, err, gpu.ErrInvalidSize)
	_, err = gpu.NewIndexBuffer(dev, gpu.IndexUint16, 0, false)
	require.ErrorIs(t, err, gpu.ErrInvalidSize)
	assert.Empty(t, dev.Buffers)
}

func TestVertexBufferUsage(t *testing.T) {
	dev := gputest.New()
	static, err := gpu.NewVertexBuffer(dev, 8, 4, false)
	require.NoError(t, err)
	dynamic, err := gpu.NewVertexBuffer(dev, 8, 4, true)
	require.NoError(t, err)

	assert.Equal(t, gpu.StaticDraw, dev.Buffers[static.Handle()].Usage)
	assert.Equal(t, gpu.DynamicDraw, dev.Buffers[dynamic.Handle()].Usage)
	assert.Len(t, dev.BufferBytes(static.Handle()), 32)
	assert.Equal(t, 32, static.Size())
}

func TestUpdateVerticesClamps(t *testing.T) {
	dev := gputest.New()
	vb, err := gpu.NewVertexBuffer(dev, 2, 4, false, gpu.WithShadowCopy(true), gpu.WithLogger(log.Discard()))
	require.NoError(t, err)

	data := []byte{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}

	// Overflow is clamped to the remaining capacity.
	require.True(t, vb.UpdateVertices(data, 5, 2))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 1, 2, 2}, dev.BufferBytes(vb.Handle()))

	// Negative begin is treated as zero.
	require.True(t, vb.UpdateVertices(data[8:], 1, -3))
	assert.Equal(t, []byte{5, 5, 0, 0, 1, 1, 2, 2}, dev.BufferBytes(vb.Handle()))

	// Starting past the end changes nothing.
	assert.False(t, vb.UpdateVertices(data, 1, 4))
	assert.Equal(t, dev.BufferBytes(vb.Handle()), vb.ShadowCopy())
}

func TestShadowCopySurvivesContextLoss(t *testing.T) {
	dev := gputest.New()
	lc := gpu.NewLifecycle()
	vb, err := gpu.NewVertexBuffer(dev, 4, 2, true, gpu.WithShadowCopy(true), gpu.WithLifecycle(lc))
	require.NoError(t, err)
	plain, err := gpu.NewIndexBuffer(dev, gpu.IndexUint16, 2, false, gpu.WithShadowCopy(false), gpu.WithLifecycle(lc))
	require.NoError(t, err)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.True(t, vb.UpdateVertices(want, 2, 0))
	require.True(t, plain.UpdateIndices([]byte{9, 0, 10, 0}, 2, 0))
	old := vb.Handle()

	dev.LoseContext()
	lc.Recreated()

	assert.NotEqual(t, old, vb.Handle())
	assert.True(t, dev.IsBuffer(vb.Handle()))
	assert.Equal(t, want, dev.BufferBytes(vb.Handle()))
	// Without a shadow copy the storage comes back, the contents do not.
	assert.Equal(t, []byte{0, 0, 0, 0}, dev.BufferBytes(plain.Handle()))
}

func TestMapShadowUploadsOnUnmap(t *testing.T) {
	dev := gputest.New()
	vb, err := gpu.NewVertexBuffer(dev, 1, 4, true, gpu.WithShadowCopy(true))
	require.NoError(t, err)

	m := vb.Map()
	copy(m, []byte{4, 3, 2, 1})
	assert.Equal(t, []byte{0, 0, 0, 0}, dev.BufferBytes(vb.Handle()))
	vb.Unmap()
	assert.Equal(t, []byte{4, 3, 2, 1}, dev.BufferBytes(vb.Handle()))
	assert.Equal(t, []byte{4, 3, 2, 1}, vb.ShadowCopy())
}

func TestMapWithoutShadow(t *testing.T) {
	dev := gputest.New()
	ib, err := gpu.NewIndexBuffer(dev, gpu.IndexUint32, 2, true, gpu.WithShadowCopy(false))
	require.NoError(t, err)
	require.True(t, ib.UpdateIndices([]byte{1, 0, 0, 0, 2, 0, 0, 0}, 2, 0))

	m := ib.Map()
	require.Len(t, m, 8)
	copy(m, []byte{7, 0, 0, 0})
	ib.Unmap()

	// The dynamic buffer was orphaned, so bytes not written are gone.
	assert.Equal(t, []byte{7, 0, 0, 0, 0, 0, 0, 0}, dev.BufferBytes(ib.Handle()))
	assert.Equal(t, gpu.UnsignedInt, ib.DataType())
	assert.Nil(t, ib.ShadowCopy())
}

func TestDoubleMapPanics(t *testing.T) {
	dev := gputest.New()
	vb, err := gpu.NewVertexBuffer(dev, 4, 1, true)
	require.NoError(t, err)
	vb.Map()
	assert.Panics(t, func() { vb.Map() })
	vb.Unmap()
	assert.NotPanics(t, func() { vb.Map() })
}

func TestReleaseIsIdempotent(t *testing.T) {
	dev := gputest.New()
	lc := gpu.NewLifecycle()
	vb, err := gpu.NewVertexBuffer(dev, 4, 1, false, gpu.WithLifecycle(lc))
	require.NoError(t, err)
	require.Equal(t, 1, lc.Len())

	vb.Release()
	vb.Release()
	assert.Zero(t, vb.Handle())
	assert.Empty(t, dev.Buffers)
	assert.Zero(t, lc.Len())
}
