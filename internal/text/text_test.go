package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu/gputest"
	"mini-gfx/internal/render"
)

func newTestAtlas(t *testing.T) (*Atlas, *gputest.Device) {
	t.Helper()
	dev := gputest.New()
	a, err := NewAtlas(dev, nil, 24)
	require.NoError(t, err)
	return a, dev
}

func TestAtlasBakesASCII(t *testing.T) {
	a, dev := newTestAtlas(t)

	w, h := a.Size()
	assert.Equal(t, 512, w)
	assert.Zero(t, h&(h-1), "height %d is a power of two", h)
	tex := dev.Textures[a.Texture().Handle()]
	require.NotNil(t, tex)
	assert.EqualValues(t, w, tex.Width)
	assert.EqualValues(t, h, tex.Height)

	g, ok := a.Glyph('A')
	require.True(t, ok)
	assert.Positive(t, g.Width)
	assert.Positive(t, g.Height)
	assert.Positive(t, g.Advance)

	space, ok := a.Glyph(' ')
	require.True(t, ok)
	assert.Zero(t, space.Width)
	assert.Positive(t, space.Advance)

	_, ok = a.Glyph('é')
	assert.False(t, ok)
	assert.Positive(t, a.LineHeight())

	// Some pixel of 'A' is covered, and coverage is premultiplied white.
	covered := false
	for y := g.AtlasY; y < g.AtlasY+g.Height && !covered; y++ {
		for x := g.AtlasX; x < g.AtlasX+g.Width; x++ {
			p := tex.Pixels[(y*w+x)*4:][:4]
			if p[3] > 0 {
				assert.Equal(t, []byte{p[3], p[3], p[3], p[3]}, []byte(p))
				covered = true
				break
			}
		}
	}
	assert.True(t, covered)
}

func TestLayout(t *testing.T) {
	a, _ := newTestAtlas(t)
	gA, _ := a.Glyph('A')
	gSpace, _ := a.Glyph(' ')

	quads := a.Layout(nil, "A A", 10, 100, 2, render.White)
	require.Len(t, quads, 2, "spaces take room but no quad")

	first := quads[0]
	assert.InDelta(t, 10+float32(gA.BearingX)*2, first.BL.Pos[0], 1e-4)
	assert.InDelta(t, 100+float32(gA.BearingY-gA.Height)*2, first.BL.Pos[1], 1e-4)
	assert.InDelta(t, float32(gA.Width)*2, first.BR.Pos[0]-first.BL.Pos[0], 1e-4)
	assert.InDelta(t, 100+float32(gA.BearingY)*2, first.TL.Pos[1], 1e-4)

	step := float32(gA.Advance+gSpace.Advance) * 2
	assert.InDelta(t, step, quads[1].BL.Pos[0]-first.BL.Pos[0], 1e-4)

	w, h := a.Size()
	assert.InDelta(t, float32(gA.AtlasX)/float32(w), first.TL.UV[0], 1e-6)
	assert.InDelta(t, float32(gA.AtlasY)/float32(h), first.TL.UV[1], 1e-6)
	assert.InDelta(t, float32(gA.AtlasY+gA.Height)/float32(h), first.BL.UV[1], 1e-6)
}

func TestMeasure(t *testing.T) {
	a, _ := newTestAtlas(t)
	gA, _ := a.Glyph('A')
	gB, _ := a.Glyph('B')

	width, lines := a.Measure("AB\nA", 1)
	assert.Equal(t, 2, lines)
	assert.Equal(t, float32(gA.Advance+gB.Advance), width)

	quads := a.Layout(nil, "A\nA", 0, 100, 1, render.White)
	require.Len(t, quads, 2)
	assert.Equal(t, quads[0].BL.Pos[0], quads[1].BL.Pos[0])
	assert.InDelta(t, float32(a.LineHeight()), quads[0].BL.Pos[1]-quads[1].BL.Pos[1], 1e-4)
}

func TestLabelBatchesIntoOneDraw(t *testing.T) {
	a, dev := newTestAtlas(t)
	r := render.New(dev, render.Options{})
	require.NoError(t, r.InitGLView())
	dev.ResetRecords()

	l := NewLabel(a, nil)
	l.SetStyle(1, render.Black)
	l.SetText("draws: 12", 4, 20)
	n := l.QuadCount()
	assert.Equal(t, 8, n)

	cmd := l.Command(10)
	cmd.SetMaterialID(render.GenerateMaterialID(0, a.Texture().Handle(), render.BlendAlphaPremultiplied))
	r.AddCommand(cmd)
	r.Render()

	require.Len(t, dev.Draws, 1)
	assert.EqualValues(t, n*6, dev.Draws[0].Count)
	assert.Equal(t, a.Texture().Handle(), dev.Draws[0].Texture)

	a.Release()
	assert.Empty(t, dev.Textures)
}
