package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/gpu/gputest"
)

func TestLifecycleOrderAndCancel(t *testing.T) {
	lc := gpu.NewLifecycle()
	var got []int
	lc.OnRecreate(func() { got = append(got, 1) })
	cancel := lc.OnRecreate(func() { got = append(got, 2) })
	lc.OnRecreate(func() { got = append(got, 3) })

	lc.Recreated()
	assert.Equal(t, []int{1, 2, 3}, got)

	cancel()
	cancel()
	got = nil
	lc.Recreated()
	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, 2, lc.Len())
}

func newQuadData(t *testing.T, dev *gputest.Device, lc *gpu.Lifecycle) (*gpu.VertexData, *gpu.VertexBuffer, *gpu.IndexBuffer) {
	t.Helper()
	vb, err := gpu.NewVertexBuffer(dev, 24, 4, false, gpu.WithLifecycle(lc))
	require.NoError(t, err)
	ib, err := gpu.NewIndexBuffer(dev, gpu.IndexUint16, 6, false, gpu.WithLifecycle(lc))
	require.NoError(t, err)

	vd := gpu.NewVertexData(dev, lc)
	require.True(t, vd.SetStream(vb, gpu.VertexStreamAttribute{Semantic: gpu.AttribPosition, Type: gpu.Float, Size: 3}))
	require.True(t, vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 12, Semantic: gpu.AttribColor, Type: gpu.UnsignedByte, Size: 4, Normalize: true}))
	require.True(t, vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 16, Semantic: gpu.AttribTexCoord, Type: gpu.Float, Size: 2}))
	vd.SetIndexBuffer(ib)
	return vd, vb, ib
}

func TestVertexDataBuildsVertexArray(t *testing.T) {
	dev := gputest.New()
	vd, vb, ib := newQuadData(t, dev, nil)

	assert.False(t, vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 20, Semantic: gpu.AttribNormal, Type: gpu.Float, Size: 3}),
		"attribute running past the vertex")
	assert.Equal(t, 3, vd.StreamCount())

	vd.Use()
	require.Len(t, dev.VertexArrays, 1)
	var vao *gputest.VertexArray
	for _, v := range dev.VertexArrays {
		vao = v
	}
	assert.Equal(t, ib.Handle(), vao.Elements)
	col := vao.Attribs[gpu.AttribColor]
	assert.True(t, col.Enabled)
	assert.True(t, col.Normalized)
	assert.Equal(t, vb.Handle(), col.Buffer)
	assert.EqualValues(t, 24, col.Stride)
	assert.Equal(t, 12, col.Offset)

	// A second Use reuses the array.
	vd.Use()
	assert.Len(t, dev.VertexArrays, 1)
}

func TestVertexDataRebuiltAfterContextLoss(t *testing.T) {
	dev := gputest.New()
	lc := gpu.NewLifecycle()
	vd, vb, _ := newQuadData(t, dev, lc)
	vd.Use()

	dev.LoseContext()
	lc.Recreated()
	vd.Use()

	require.Len(t, dev.VertexArrays, 1)
	for _, v := range dev.VertexArrays {
		assert.Equal(t, vb.Handle(), v.Attribs[gpu.AttribPosition].Buffer)
	}
}

func TestPrimitiveDraw(t *testing.T) {
	dev := gputest.New()
	vd, _, ib := newQuadData(t, dev, nil)

	p := gpu.NewPrimitive(vd, gpu.Triangles, 3, 3)
	p.Draw()
	require.Len(t, dev.Draws, 1)
	d := dev.Draws[0]
	assert.True(t, d.Indexed)
	assert.EqualValues(t, 3, d.Count)
	assert.Equal(t, 6, d.Offset)
	assert.Equal(t, gpu.UnsignedShort, d.IndexType)
	assert.Equal(t, ib.Handle(), d.IndexBuffer)
	assert.Zero(t, dev.BoundVAO)

	vd.SetIndexBuffer(nil)
	p.SetRange(0, 4)
	p.Draw()
	require.Len(t, dev.Draws, 2)
	assert.False(t, dev.Draws[1].Indexed)
	assert.EqualValues(t, 4, dev.Draws[1].Count)

	p.SetRange(0, 0)
	p.Draw()
	assert.Len(t, dev.Draws, 2)
}
