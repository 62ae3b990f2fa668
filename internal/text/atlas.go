// Package text bakes a font into a texture atlas and lays strings out as
// quads for the renderer's quad batch.
package text

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"mini-gfx/internal/gpu"
)

// Glyph describes a single character's placement and metrics within the
// atlas
type Glyph struct {
	// Pixel coordinates of the glyph in the atlas image (top-left origin)
	AtlasX, AtlasY int
	Width, Height  int
	// Offset of the glyph's top-left corner from the pen position on the
	// baseline, y up
	BearingX, BearingY int
	Advance            int
}

type Atlas struct {
	tex        *gpu.Texture2D
	w, h       int
	glyphs     map[rune]Glyph
	lineHeight int
}

const (
	atlasWidth = 512
	padding    = 1
)

// NewAtlas bakes the printable ASCII range of an OpenType font at the given
// pixel size. A nil fontData selects Go Regular.
func NewAtlas(dev gpu.Device, fontData []byte, pixels int, opts ...gpu.TextureOption) (*Atlas, error) {
	if fontData == nil {
		fontData = goregular.TTF
	}
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(pixels), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	defer func() { _ = face.Close() }()

	type baked struct {
		r    rune
		dr   image.Rectangle
		mask image.Image
		mp   image.Point
		adv  fixed.Int26_6
	}
	var all []baked
	for r := rune(32); r <= 126; r++ {
		dr, mask, mp, adv, ok := face.Glyph(fixed.P(0, 0), r)
		if !ok {
			continue
		}
		all = append(all, baked{r, dr, mask, mp, adv})
	}

	// Simple row packer: fixed width, rows as tall as their tallest glyph.
	glyphs := make(map[rune]Glyph, len(all))
	x, y, rowH := 0, 0, 0
	for _, b := range all {
		g := Glyph{
			Width:    b.dr.Dx(),
			Height:   b.dr.Dy(),
			BearingX: b.dr.Min.X,
			BearingY: -b.dr.Min.Y,
			Advance:  int(math.Round(float64(b.adv) / 64)),
		}
		if g.Width > 0 && g.Height > 0 {
			if x+g.Width > atlasWidth {
				x = 0
				y += rowH + padding
				rowH = 0
			}
			g.AtlasX, g.AtlasY = x, y
			x += g.Width + padding
			rowH = max(rowH, g.Height)
		}
		glyphs[b.r] = g
	}
	// Round height up to a power of two
	h := 1
	for h < y+rowH {
		h <<= 1
	}

	img := image.NewRGBA(image.Rect(0, 0, atlasWidth, h))
	for _, b := range all {
		g := glyphs[b.r]
		if g.Width == 0 || g.Height == 0 || b.mask == nil {
			continue
		}
		// White glyphs, premultiplied: every channel carries the coverage.
		for gy := range g.Height {
			for gx := range g.Width {
				_, _, _, a := b.mask.At(b.mp.X+gx, b.mp.Y+gy).RGBA()
				v := uint8(a >> 8)
				img.SetRGBA(g.AtlasX+gx, g.AtlasY+gy, color.RGBA{v, v, v, v})
			}
		}
	}

	tex, err := gpu.NewTexture2D(dev, img, opts...)
	if err != nil {
		return nil, fmt.Errorf("font atlas: %w", err)
	}
	m := face.Metrics()
	return &Atlas{
		tex:        tex,
		w:          atlasWidth,
		h:          h,
		glyphs:     glyphs,
		lineHeight: m.Height.Round(),
	}, nil
}

func (a *Atlas) Texture() *gpu.Texture2D { return a.tex }

func (a *Atlas) Size() (w, h int) { return a.w, a.h }

func (a *Atlas) LineHeight() int { return a.lineHeight }

// Glyph returns the metrics of r.
func (a *Atlas) Glyph(r rune) (Glyph, bool) {
	g, ok := a.glyphs[r]
	return g, ok
}

func (a *Atlas) Release() {
	a.tex.Release()
}
