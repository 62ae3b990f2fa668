package text

import (
	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/render"
)

// Layout appends to dst one quad per visible glyph of s, starting with the
// pen at (x, y) on the baseline. y grows upwards. Runes missing from the
// atlas are skipped; '\n' starts a new line below.
func (a *Atlas) Layout(dst []render.Quad, s string, x, y, scale float32, c render.Color4B) []render.Quad {
	fw, fh := float32(a.w), float32(a.h)
	penX := x
	for _, r := range s {
		if r == '\n' {
			penX = x
			y -= float32(a.lineHeight) * scale
			continue
		}
		g, ok := a.glyphs[r]
		if !ok {
			continue
		}
		if g.Width > 0 && g.Height > 0 {
			w, h := float32(g.Width)*scale, float32(g.Height)*scale
			gx := penX + float32(g.BearingX)*scale
			gy := y + float32(g.BearingY-g.Height)*scale
			u0, v0 := float32(g.AtlasX)/fw, float32(g.AtlasY)/fh
			u1, v1 := float32(g.AtlasX+g.Width)/fw, float32(g.AtlasY+g.Height)/fh
			dst = append(dst, render.RectQuad(gx, gy, w, h, c, u0, v0, u1, v1))
		}
		penX += float32(g.Advance) * scale
	}
	return dst
}

// Measure returns the width of the longest line of s and the number of
// lines.
func (a *Atlas) Measure(s string, scale float32) (width float32, lines int) {
	lines = 1
	var line float32
	for _, r := range s {
		if r == '\n' {
			width = max(width, line)
			line = 0
			lines++
			continue
		}
		if g, ok := a.glyphs[r]; ok {
			line += float32(g.Advance) * scale
		}
	}
	return max(width, line), lines
}

// Label is a line of text drawn through the quad batch. Its command and
// quad storage are reused between frames.
type Label struct {
	atlas   *Atlas
	program render.Program
	quads   []render.Quad
	cmd     render.QuadCommand
	scale   float32
	color   render.Color4B
}

func NewLabel(atlas *Atlas, program render.Program) *Label {
	return &Label{atlas: atlas, program: program, scale: 1, color: render.White}
}

func (l *Label) SetStyle(scale float32, c render.Color4B) {
	l.scale, l.color = scale, c
}

// SetText lays out s with its first baseline at (x, y).
func (l *Label) SetText(s string, x, y float32) {
	l.quads = l.atlas.Layout(l.quads[:0], s, x, y, l.scale, l.color)
}

func (l *Label) QuadCount() int { return len(l.quads) }

// Command returns the label's quad command, ready to submit. It stays
// valid until the next SetText.
func (l *Label) Command(order float32) *render.QuadCommand {
	l.cmd.Init(order, l.program, l.atlas.tex.Handle(), render.BlendAlphaPremultiplied, l.quads, mgl32.Ident4())
	return &l.cmd
}
