package gpu

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultTextureParams matches what sprite textures usually want: linear
// filtering, clamped edges.
var DefaultTextureParams = TextureParams{
	MinFilter: Linear,
	MagFilter: Linear,
	WrapS:     ClampToEdge,
	WrapT:     ClampToEdge,
}

type textureOptions struct {
	params     TextureParams
	mipmaps    bool
	powerOfTwo bool
	lifecycle  *Lifecycle
}

type TextureOption func(*textureOptions)

func WithTextureParams(p TextureParams) TextureOption {
	return func(o *textureOptions) { o.params = p }
}

// WithMipmaps generates the mipmap chain after every upload.
func WithMipmaps() TextureOption {
	return func(o *textureOptions) { o.mipmaps = true }
}

// WithPowerOfTwo resamples the image up to the next power-of-two size.
// Texture coordinates stay normalized, so sprites keep their extents.
func WithPowerOfTwo() TextureOption {
	return func(o *textureOptions) { o.powerOfTwo = true }
}

// WithTextureLifecycle keeps the pixels in memory and uploads them again
// whenever lc reports a recreated context.
func WithTextureLifecycle(lc *Lifecycle) TextureOption {
	return func(o *textureOptions) { o.lifecycle = lc }
}

// Texture2D is an RGBA8 texture. Pixels are premultiplied by alpha, which
// is how image.RGBA stores them.
type Texture2D struct {
	dev    Device
	handle Handle
	width  int
	height int
	params TextureParams
	mips   bool
	pixels []byte
	cancel func()
}

// NewTexture2D converts img to RGBA and uploads it.
func NewTexture2D(dev Device, img image.Image, opts ...TextureOption) (*Texture2D, error) {
	o := textureOptions{params: DefaultTextureParams}
	for _, opt := range opts {
		opt(&o)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("texture from %v image: %w", b.Size(), ErrInvalidSize)
	}

	var rgba *image.RGBA
	if o.powerOfTwo && (!isPowerOfTwo(b.Dx()) || !isPowerOfTwo(b.Dy())) {
		rgba = image.NewRGBA(image.Rect(0, 0, nextPowerOfTwo(b.Dx()), nextPowerOfTwo(b.Dy())))
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, b, draw.Src, nil)
	} else if m, ok := img.(*image.RGBA); ok && m.Rect.Min == (image.Point{}) && m.Stride == 4*b.Dx() {
		rgba = m
	} else {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	t := &Texture2D{
		dev:    dev,
		width:  rgba.Rect.Dx(),
		height: rgba.Rect.Dy(),
		params: o.params,
		mips:   o.mipmaps,
		pixels: rgba.Pix,
	}
	t.Recreate()
	if o.lifecycle != nil {
		t.cancel = o.lifecycle.OnRecreate(t.Recreate)
	} else {
		t.pixels = nil
	}
	return t, nil
}

// LoadTexture decodes an image file (png, jpeg, bmp, tiff or webp) into a
// texture.
func LoadTexture(dev Device, path string, opts ...TextureOption) (*Texture2D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return NewTexture2D(dev, img, opts...)
}

// Recreate generates a new native texture and uploads the retained pixels.
// Without retained pixels the contents are undefined.
func (t *Texture2D) Recreate() {
	t.handle = t.dev.GenTexture()
	t.dev.BindTexture(0, t.handle)
	t.dev.TexParameters(t.params)
	t.dev.TexImage2D(int32(t.width), int32(t.height), t.pixels)
	if t.mips {
		t.dev.GenerateMipmap()
	}
	t.dev.BindTexture(0, 0)
}

func (t *Texture2D) Handle() Handle { return t.handle }

func (t *Texture2D) Width() int { return t.width }

func (t *Texture2D) Height() int { return t.height }

func (t *Texture2D) Params() TextureParams { return t.params }

// PremultipliedAlpha is always true for textures built from image.Image.
func (t *Texture2D) PremultipliedAlpha() bool { return true }

func (t *Texture2D) SetParams(p TextureParams) {
	t.params = p
	t.dev.BindTexture(0, t.handle)
	t.dev.TexParameters(p)
	t.dev.BindTexture(0, 0)
}

// GenerateMipmaps builds the mipmap chain now and after every recreate.
func (t *Texture2D) GenerateMipmaps() {
	t.mips = true
	t.dev.BindTexture(0, t.handle)
	t.dev.GenerateMipmap()
	t.dev.BindTexture(0, 0)
}

// Bind binds the texture to the given unit.
func (t *Texture2D) Bind(unit uint32) {
	t.dev.BindTexture(unit, t.handle)
}

func (t *Texture2D) Release() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.handle != 0 {
		t.dev.DeleteTexture(t.handle)
		t.handle = 0
	}
	t.pixels = nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
