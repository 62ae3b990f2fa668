package gpu_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/gpu/gputest"
)

func TestTextureFromImage(t *testing.T) {
	dev := gputest.New()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})

	tex, err := gpu.NewTexture2D(dev, img)
	require.NoError(t, err)
	got := dev.Textures[tex.Handle()]
	require.NotNil(t, got)
	assert.EqualValues(t, 3, got.Width)
	assert.EqualValues(t, 2, got.Height)
	// Stored premultiplied.
	assert.Equal(t, []byte{128, 0, 0, 128}, got.Pixels[:4])
	assert.Equal(t, gpu.DefaultTextureParams, got.Params)
}

func TestTexturePowerOfTwoAndRecreate(t *testing.T) {
	dev := gputest.New()
	lc := gpu.NewLifecycle()
	img := image.NewRGBA(image.Rect(0, 0, 5, 3))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	tex, err := gpu.NewTexture2D(dev, img, gpu.WithPowerOfTwo(), gpu.WithMipmaps(), gpu.WithTextureLifecycle(lc))
	require.NoError(t, err)
	assert.Equal(t, 8, tex.Width())
	assert.Equal(t, 4, tex.Height())
	assert.True(t, dev.Textures[tex.Handle()].Mipmapped)

	dev.LoseContext()
	lc.Recreated()
	got := dev.Textures[tex.Handle()]
	require.NotNil(t, got)
	assert.Len(t, got.Pixels, 8*4*4)
	assert.True(t, got.Mipmapped)

	tex.Release()
	assert.Empty(t, dev.Textures)
	assert.Zero(t, lc.Len())
}

func TestTextureRejectsEmptyImage(t *testing.T) {
	_, err := gpu.NewTexture2D(gputest.New(), image.NewRGBA(image.Rectangle{}))
	assert.ErrorIs(t, err, gpu.ErrInvalidSize)
}

func TestLoadTexture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:], []byte{255, 0, 0, 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	dev := gputest.New()
	tex, err := gpu.LoadTexture(dev, path)
	require.NoError(t, err)
	got := dev.Textures[tex.Handle()]
	require.NotNil(t, got)
	assert.Equal(t, img.Pix, got.Pixels)

	_, err = gpu.LoadTexture(dev, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
