package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/config"
	"mini-gfx/internal/gpu"
	"mini-gfx/internal/log"
	"mini-gfx/internal/profiling"
	"mini-gfx/internal/render"
	"mini-gfx/internal/shader"
	"mini-gfx/internal/text"
)

const (
	spriteSize = 24
	starCount  = 300
	hexRadius  = 60
)

type sprite struct {
	pos, vel mgl32.Vec2
	quads    [1]render.Quad
	cmd      render.QuadCommand
}

// colorVertex is the layout of the mesh buffers: position and color.
type colorVertex struct {
	Pos   mgl32.Vec3
	Color render.Color4B
}

type scene struct {
	dev      gpu.Device
	lg       *log.Logger
	renderer *render.Renderer
	paused   bool
	elapsed  float64

	checker *gpu.Texture2D
	white   *gpu.Texture2D
	atlas   *text.Atlas

	spriteProg  *shader.Program
	meshProg    *shader.Program
	outlineProg *shader.Program
	starProg    *shader.Program

	sprites []sprite
	culled  int

	// Minimap panel, drawn in its own queue.
	panelQueue int
	panelQuad  [1]render.Quad
	panelBg    render.QuadCommand
	hex        *gpu.Primitive
	hexOutline *gpu.Primitive
	hexMesh    render.MeshCommand
	insetOn    *render.CustomCommand
	insetOff   *render.CustomCommand

	stars     *gpu.Primitive
	starBatch *render.BatchCommand

	statsLabel *text.Label
	buffers    []interface{ Release() }
	vertexData []*gpu.VertexData
}

func newScene(dev gpu.Device, lc *gpu.Lifecycle, programs *shader.Cache, r *render.Renderer, lg *log.Logger, sprites int) (*scene, error) {
	s := &scene{dev: dev, lg: lg, renderer: r}
	var err error

	if s.checker, err = gpu.NewTexture2D(dev, checkerImage(32, 32, 4),
		gpu.WithMipmaps(), gpu.WithTextureLifecycle(lc),
		gpu.WithTextureParams(gpu.TextureParams{MinFilter: gpu.LinearMipmapLinear, MagFilter: gpu.Linear, WrapS: gpu.Repeat, WrapT: gpu.Repeat})); err != nil {
		return nil, err
	}
	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	white.SetRGBA(0, 0, color.RGBA{255, 255, 255, 255})
	if s.white, err = gpu.NewTexture2D(dev, white, gpu.WithTextureLifecycle(lc)); err != nil {
		return nil, err
	}
	if s.atlas, err = text.NewAtlas(dev, nil, 18, gpu.WithTextureLifecycle(lc)); err != nil {
		return nil, err
	}

	for _, p := range []struct {
		dst **shader.Program
		key string
	}{
		{&s.spriteProg, shader.PositionTextureColorNoMVP},
		{&s.meshProg, shader.PositionColor},
		{&s.outlineProg, shader.PositionUColor},
		{&s.starProg, shader.PositionTextureColor},
	} {
		if *p.dst, err = programs.Get(p.key); err != nil {
			return nil, err
		}
	}
	s.outlineProg.Use()
	s.outlineProg.SetUniformVec4(s.outlineProg.UniformLocation("u_color"), mgl32.Vec4{1, 0.8, 0.2, 1})

	s.initSprites(sprites)
	if err := s.initPanel(lc); err != nil {
		return nil, err
	}
	if err := s.initStars(lc); err != nil {
		return nil, err
	}
	s.statsLabel = text.NewLabel(s.atlas, s.spriteProg)
	return s, nil
}

func checkerImage(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.RGBA{230, 120, 60, 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{250, 240, 220, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func (s *scene) initSprites(n int) {
	size := s.renderer.WinSize()
	if size == (mgl32.Vec2{}) {
		size = mgl32.Vec2{900, 600}
	}
	s.sprites = make([]sprite, n)
	for i := range s.sprites {
		sp := &s.sprites[i]
		sp.pos = mgl32.Vec2{rand.Float32() * size[0], rand.Float32() * size[1]}
		angle := rand.Float64() * 2 * math.Pi
		speed := 40 + rand.Float64()*160
		sp.vel = mgl32.Vec2{float32(math.Cos(angle) * speed), float32(math.Sin(angle) * speed)}
		tint := render.Color4B{uint8(128 + rand.IntN(128)), uint8(128 + rand.IntN(128)), uint8(128 + rand.IntN(128)), 255}
		sp.quads[0] = render.RectQuad(-spriteSize/2, -spriteSize/2, spriteSize, spriteSize, tint, 0, 0, 1, 1)
	}
}

func (s *scene) initPanel(lc *gpu.Lifecycle) error {
	s.panelQueue = s.renderer.Groups().Acquire()

	verts := make([]colorVertex, 0, 8)
	verts = append(verts, colorVertex{Color: render.White})
	for i := range 7 {
		a := float64(i) * math.Pi / 3
		c := render.Color4B{uint8(127 + 127*math.Cos(a)), uint8(127 + 127*math.Sin(a)), 200, 255}
		verts = append(verts, colorVertex{Pos: mgl32.Vec3{float32(hexRadius * math.Cos(a)), float32(hexRadius * math.Sin(a)), 0}, Color: c})
	}
	vb, err := gpu.NewVertexBuffer(s.dev, 16, len(verts), false, gpu.WithLifecycle(lc), gpu.WithLogger(s.lg))
	if err != nil {
		return fmt.Errorf("hexagon buffer: %w", err)
	}
	s.buffers = append(s.buffers, vb)
	vb.UpdateVertices(gpu.AsBytes(verts), len(verts), 0)

	vd := gpu.NewVertexData(s.dev, lc)
	vd.SetStream(vb, gpu.VertexStreamAttribute{Semantic: gpu.AttribPosition, Type: gpu.Float, Size: 3})
	vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 12, Semantic: gpu.AttribColor, Type: gpu.UnsignedByte, Size: 4, Normalize: true})
	s.vertexData = append(s.vertexData, vd)

	s.hex = gpu.NewPrimitive(vd, gpu.TriangleFan, 0, len(verts))
	s.hexOutline = gpu.NewPrimitive(vd, gpu.LineLoop, 1, 6)

	// The panel is drawn with the full-window projection into the bottom
	// right quarter of the framebuffer.
	s.insetOn = render.NewCustomCommand(-1, func() {
		size := s.renderer.WinSize()
		s.dev.Viewport(int32(size[0]*3/4), 0, int32(size[0]/4), int32(size[1]/4))
	})
	s.insetOff = render.NewCustomCommand(1, func() {
		size := s.renderer.WinSize()
		s.renderer.Viewport(int(size[0]), int(size[1]))
	})
	return nil
}

func (s *scene) initStars(lc *gpu.Lifecycle) error {
	size := mgl32.Vec2{2048, 2048}
	quads := make([]render.Quad, starCount)
	for i := range quads {
		d := 1 + rand.Float32()*2
		c := uint8(90 + rand.IntN(120))
		quads[i] = render.RectQuad(rand.Float32()*size[0], rand.Float32()*size[1], d, d, render.Color4B{c, c, c, c}, 0, 0, 1, 1)
	}
	vb, err := gpu.NewVertexBuffer(s.dev, 24, starCount*4, false, gpu.WithLifecycle(lc), gpu.WithShadowCopy(true))
	if err != nil {
		return fmt.Errorf("star buffer: %w", err)
	}
	ib, err := gpu.NewIndexBuffer(s.dev, gpu.IndexUint16, starCount*6, false, gpu.WithLifecycle(lc), gpu.WithShadowCopy(true))
	if err != nil {
		vb.Release()
		return fmt.Errorf("star indices: %w", err)
	}
	s.buffers = append(s.buffers, vb, ib)
	vb.UpdateVertices(gpu.AsBytes(quads), starCount*4, 0)

	idx := make([]uint16, 0, starCount*6)
	for i := range starCount {
		v := uint16(i * 4)
		idx = append(idx, v, v+1, v+2, v+3, v+2, v+1)
	}
	ib.UpdateIndices(gpu.AsBytes(idx), len(idx), 0)

	vd := gpu.NewVertexData(s.dev, lc)
	vd.SetStream(vb, gpu.VertexStreamAttribute{Semantic: gpu.AttribPosition, Type: gpu.Float, Size: 3})
	vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 12, Semantic: gpu.AttribColor, Type: gpu.UnsignedByte, Size: 4, Normalize: true})
	vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: 16, Semantic: gpu.AttribTexCoord, Type: gpu.Float, Size: 2})
	vd.SetIndexBuffer(ib)
	s.vertexData = append(s.vertexData, vd)

	s.stars = gpu.NewPrimitive(vd, gpu.Triangles, 0, starCount*6)
	s.starBatch = render.NewBatchCommand(-10, s.starProg, s.white.Handle(), render.BlendAdditive, s.stars, mgl32.Ident4())
	return nil
}

func (s *scene) TogglePause() {
	s.paused = !s.paused
	s.lg.Info("scene paused", slog.Bool("paused", s.paused))
}

func (s *scene) Update(dt float64) {
	defer profiling.Track("scene.Update")()
	if s.paused {
		return
	}
	s.elapsed += dt
	size := s.renderer.WinSize()
	// Sprites roam a margin past the window edges so culling has work.
	lo := mgl32.Vec2{-100, -100}
	hi := size.Add(mgl32.Vec2{100, 100})
	fdt := float32(dt)
	for i := range s.sprites {
		sp := &s.sprites[i]
		sp.pos = sp.pos.Add(sp.vel.Mul(fdt))
		for k := range 2 {
			if sp.pos[k] < lo[k] && sp.vel[k] < 0 || sp.pos[k] > hi[k] && sp.vel[k] > 0 {
				sp.vel[k] = -sp.vel[k]
			}
		}
	}
}

// spriteCorner moves a sprite transform from the sprite's center to the
// bottom left corner of its quad, where culling boxes start.
var spriteCorner = mgl32.Translate3D(-spriteSize/2, -spriteSize/2, 0)

func spriteVisible(r *render.Renderer, mv mgl32.Mat4) bool {
	return r.CheckVisibility(mv.Mul4(spriteCorner), mgl32.Vec2{spriteSize, spriteSize})
}

func (s *scene) Submit(r *render.Renderer) {
	defer profiling.Track("scene.Submit")()

	s.starBatch.SetGlobalOrder(-10)
	r.AddCommand(s.starBatch)

	s.culled = 0
	for i := range s.sprites {
		sp := &s.sprites[i]
		mv := mgl32.Translate3D(sp.pos[0], sp.pos[1], 0)
		if !spriteVisible(r, mv) {
			s.culled++
			continue
		}
		sp.cmd.Init(0, s.spriteProg, s.checker.Handle(), render.BlendAlphaPremultiplied, sp.quads[:], mv)
		r.AddCommand(&sp.cmd)
	}

	s.submitPanel(r)

	if config.ShowStats() {
		st := r.Stats()
		size := r.WinSize()
		s.statsLabel.SetText(fmt.Sprintf("draws %d  quads %d  flushes %d\nculled %d\n%s",
			st.DrawCalls, st.Quads, st.Flushes, s.culled, profiling.TopN(3)), 8, size[1]-20)
		r.AddCommand(s.statsLabel.Command(100))
	}
}

func (s *scene) submitPanel(r *render.Renderer) {
	size := r.WinSize()
	r.AddCommand(render.NewGroupCommand(50, s.panelQueue))
	r.PushGroup(s.panelQueue)
	defer r.PopGroup()

	r.AddCommand(s.insetOn)
	s.panelQuad[0] = render.RectQuad(0, 0, size[0], size[1], render.Color4B{20, 30, 50, 230}, 0, 0, 1, 1)
	s.panelBg.Init(0, s.spriteProg, s.white.Handle(), render.BlendAlphaPremultiplied, s.panelQuad[:], mgl32.Ident4())
	r.AddCommand(&s.panelBg)

	center := mgl32.Translate3D(size[0]/2, size[1]/2, 0)
	spin := center.Mul4(mgl32.HomogRotate3DZ(float32(s.elapsed))).Mul4(mgl32.Scale3D(3, 3, 1))
	s.hexMesh.Init(0, s.meshProg, 0, render.BlendDisable, s.hex, spin)
	r.AddCommand(&s.hexMesh)
	r.AddCommand(render.NewPrimitiveCommand(0, s.outlineProg, 0, render.BlendDisable, s.hexOutline, spin))
	r.AddCommand(s.insetOff)
}

func (s *scene) Release() {
	s.renderer.Groups().Release(s.panelQueue)
	for _, vd := range s.vertexData {
		vd.Release()
	}
	for _, b := range s.buffers {
		b.Release()
	}
	s.atlas.Release()
	s.white.Release()
	s.checker.Release()
}
