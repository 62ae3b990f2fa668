// Package render collects draw commands into ordered queues and draws them
// once per frame, merging runs of quads that share a material into single
// draw calls.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/log"
	"mini-gfx/internal/profiling"
)

// Programming errors. The renderer panics with these (wrapped) rather
// than returning them.
var (
	ErrRendering       = errors.New("render: commands cannot change while rendering")
	ErrInvalidQueue    = errors.New("render: invalid render queue")
	ErrIndexOutOfRange = errors.New("render: command index out of range")
	ErrPopRootQueue    = errors.New("render: cannot pop the root queue")
	ErrNilCommand      = errors.New("render: nil command")
)

const (
	// DefaultQuadCapacity is the number of quads the staging buffer holds.
	DefaultQuadCapacity = 512
	// MaxQuadCapacity keeps every vertex addressable with 16-bit indices.
	MaxQuadCapacity = 65536/4 - 1
)

// Phase is where the renderer is in a frame.
type Phase int

const (
	Idle Phase = iota
	Sorting
	Visiting
	Flushing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Sorting:
		return "sorting"
	case Visiting:
		return "visiting"
	case Flushing:
		return "flushing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type Options struct {
	// QuadCapacity is clamped to [1, MaxQuadCapacity]; zero means
	// DefaultQuadCapacity.
	QuadCapacity int
	// ShadowCopy keeps CPU copies of the renderer's buffers.
	ShadowCopy bool
	// Lifecycle, if set, rebuilds the renderer's GPU objects after a
	// context loss.
	Lifecycle *gpu.Lifecycle
	Logger    *log.Logger
	Timers    *profiling.Timers
}

type batchEntry struct {
	cmd   *QuadCommand
	quads int
}

// Renderer owns the render queues and the quad staging buffer. It is not
// safe for concurrent use; every method must run on the thread that owns
// the graphics context.
type Renderer struct {
	dev    gpu.Device
	lg     *log.Logger
	lc     *gpu.Lifecycle
	timers *profiling.Timers
	shadow bool

	queues []*RenderQueue
	stack  []int
	groups *GroupCommandManager
	phase  Phase
	// visiting holds the queues on the current group path.
	visiting []int

	capacity     int
	verts        []Vertex
	quadCount    int
	batched      []batchEntry
	lastMaterial MaterialID
	lastMesh     *MeshCommand

	vb       *gpu.VertexBuffer
	ib       *gpu.IndexBuffer
	vd       *gpu.VertexData
	glView   bool
	cancelLC func()

	frame   Frame
	winSize mgl32.Vec2
	stats   Stats
}

func New(dev gpu.Device, opts Options) *Renderer {
	capacity := opts.QuadCapacity
	if capacity == 0 {
		capacity = DefaultQuadCapacity
	}
	capacity = max(1, min(capacity, MaxQuadCapacity))

	timers := opts.Timers
	if timers == nil {
		timers = profiling.Default
	}

	r := &Renderer{
		dev:      dev,
		lg:       opts.Logger,
		lc:       opts.Lifecycle,
		timers:   timers,
		shadow:   opts.ShadowCopy,
		queues:   []*RenderQueue{{}},
		stack:    []int{0},
		capacity: capacity,
		verts:    make([]Vertex, capacity*4),
		frame:    Frame{Device: dev, Projection: mgl32.Ident4()},
	}
	r.groups = newGroupCommandManager(r)
	return r
}

// InitGLView creates the GPU buffers. Until it is called Render only
// discards the submitted commands.
func (r *Renderer) InitGLView() error {
	if r.glView {
		return nil
	}
	bopts := []gpu.BufferOption{gpu.WithShadowCopy(r.shadow), gpu.WithLogger(r.lg)}
	if r.lc != nil {
		bopts = append(bopts, gpu.WithLifecycle(r.lc))
	}

	vb, err := gpu.NewVertexBuffer(r.dev, vertexSize, r.capacity*4, true, bopts...)
	if err != nil {
		return fmt.Errorf("quad vertex buffer: %w", err)
	}
	ib, err := gpu.NewIndexBuffer(r.dev, gpu.IndexUint16, r.capacity*6, false, bopts...)
	if err != nil {
		vb.Release()
		return fmt.Errorf("quad index buffer: %w", err)
	}
	ib.UpdateIndices(gpu.AsBytes(quadIndices(r.capacity)), r.capacity*6, 0)

	vd := gpu.NewVertexData(r.dev, r.lc)
	vd.SetStream(vb, gpu.VertexStreamAttribute{Semantic: gpu.AttribPosition, Type: gpu.Float, Size: 3})
	vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: vertexColorOff, Semantic: gpu.AttribColor, Type: gpu.UnsignedByte, Size: 4, Normalize: true})
	vd.SetStream(vb, gpu.VertexStreamAttribute{Offset: vertexUVOff, Semantic: gpu.AttribTexCoord, Type: gpu.Float, Size: 2})
	vd.SetIndexBuffer(ib)

	r.vb, r.ib, r.vd = vb, ib, vd
	if r.lc != nil && !r.shadow {
		// Without shadow copies the indices are gone with the context.
		r.cancelLC = r.lc.OnRecreate(r.refillIndices)
	}
	r.glView = true
	r.lg.Info("renderer ready", slog.Int("quad_capacity", r.capacity), slog.Bool("shadow_copy", r.shadow))
	return nil
}

func (r *Renderer) refillIndices() {
	r.ib.UpdateIndices(gpu.AsBytes(quadIndices(r.capacity)), r.capacity*6, 0)
	r.lg.Debug("renderer buffers recreated")
}

// quadIndices returns two triangles per quad, 0,1,2 and 3,2,1, which cover
// the TL, BL, TR, BR vertices of Quad.
func quadIndices(quads int) []uint16 {
	idx := make([]uint16, quads*6)
	for i := range quads {
		v := uint16(i * 4)
		copy(idx[i*6:], []uint16{v, v + 1, v + 2, v + 3, v + 2, v + 1})
	}
	return idx
}

// Dispose releases the GPU objects. Commands may still be submitted;
// Render discards them until InitGLView is called again.
func (r *Renderer) Dispose() {
	if !r.glView {
		return
	}
	if r.cancelLC != nil {
		r.cancelLC()
		r.cancelLC = nil
	}
	r.vd.Release()
	r.vb.Release()
	r.ib.Release()
	r.vd, r.vb, r.ib = nil, nil, nil
	r.glView = false
}

func (r *Renderer) mustNotRender(op string) {
	if r.phase != Idle {
		panic(fmt.Errorf("%s during %s: %w", op, r.phase, ErrRendering))
	}
}

func (r *Renderer) queue(id int) *RenderQueue {
	if id < 0 || id >= len(r.queues) {
		panic(fmt.Errorf("%w: %d of %d", ErrInvalidQueue, id, len(r.queues)))
	}
	return r.queues[id]
}

// AddCommand appends cmd to the queue on top of the group stack.
func (r *Renderer) AddCommand(cmd Command) {
	r.AddCommandToQueue(cmd, r.stack[len(r.stack)-1])
}

func (r *Renderer) AddCommandToQueue(cmd Command, queueID int) {
	r.mustNotRender("AddCommand")
	if cmd == nil {
		panic(ErrNilCommand)
	}
	r.queue(queueID).PushBack(cmd)
}

// PushGroup sends subsequent AddCommand calls to queue id.
func (r *Renderer) PushGroup(id int) {
	r.mustNotRender("PushGroup")
	r.queue(id)
	r.stack = append(r.stack, id)
}

func (r *Renderer) PopGroup() {
	r.mustNotRender("PopGroup")
	if len(r.stack) == 1 {
		panic(ErrPopRootQueue)
	}
	r.stack = r.stack[:len(r.stack)-1]
}

// CreateRenderQueue adds an empty queue and returns its id. Ids stay valid
// for the renderer's lifetime.
func (r *Renderer) CreateRenderQueue() int {
	r.queues = append(r.queues, &RenderQueue{})
	return len(r.queues) - 1
}

func (r *Renderer) Queue(id int) *RenderQueue { return r.queue(id) }

func (r *Renderer) QueueCount() int { return len(r.queues) }

// CurrentQueue returns the id AddCommand appends to.
func (r *Renderer) CurrentQueue() int { return r.stack[len(r.stack)-1] }

func (r *Renderer) Groups() *GroupCommandManager { return r.groups }

func (r *Renderer) Phase() Phase { return r.phase }

func (r *Renderer) IsRendering() bool { return r.phase != Idle }

func (r *Renderer) Capacity() int { return r.capacity }

// Stats returns the counts of the last Render.
func (r *Renderer) Stats() Stats { return r.stats }

func (r *Renderer) SetProjection(m mgl32.Mat4) { r.frame.Projection = m }

func (r *Renderer) Projection() mgl32.Mat4 { return r.frame.Projection }

// SetElapsed sets the time, in seconds, fed to the time uniforms.
func (r *Renderer) SetElapsed(seconds float32) { r.frame.Elapsed = seconds }

// SetWinSize sets the viewport size used for culling.
func (r *Renderer) SetWinSize(w, h float32) { r.winSize = mgl32.Vec2{w, h} }

func (r *Renderer) WinSize() mgl32.Vec2 { return r.winSize }

// CheckVisibility reports whether a size-sized box at transform may be on
// screen with the current projection and window size. Until SetProjection
// is called, transform is taken to be in window pixels.
func (r *Renderer) CheckVisibility(transform mgl32.Mat4, size mgl32.Vec2) bool {
	proj := r.frame.Projection
	if proj == mgl32.Ident4() && r.winSize[0] > 0 && r.winSize[1] > 0 {
		proj = mgl32.Ortho2D(0, r.winSize[0], 0, r.winSize[1])
	}
	return CheckVisibility(proj, transform, size, r.winSize)
}

// Clear sets the clear color and clears the framebuffer.
func (r *Renderer) Clear(c mgl32.Vec4) {
	r.dev.Clear(c[0], c[1], c[2], c[3])
}

// Viewport sets the GL viewport to the whole framebuffer.
func (r *Renderer) Viewport(width, height int) {
	r.dev.Viewport(0, 0, int32(width), int32(height))
}

// Render sorts every queue, draws the root queue and everything reachable
// from it, and empties all queues.
func (r *Renderer) Render() {
	r.mustNotRender("Render")
	defer r.timers.Track("render.Render")()
	r.stats = Stats{}

	if r.glView {
		r.phase = Sorting
		stop := r.timers.Track("render.Sort")
		for _, q := range r.queues {
			q.Sort()
		}
		stop()

		r.phase = Visiting
		stop = r.timers.Track("render.Visit")
		r.visiting = r.visiting[:0]
		r.visitRenderQueue(0)
		stop()

		r.phase = Flushing
		r.flush()
	}
	r.clean()
	r.phase = Idle
	if r.lg.DebugEnabled() {
		r.lg.Debug("frame rendered", slog.Any("stats", r.stats))
	}
}

// Clean empties every queue and resets the batching state.
func (r *Renderer) Clean() {
	r.mustNotRender("Clean")
	r.clean()
}

func (r *Renderer) clean() {
	for _, q := range r.queues {
		q.Clear()
	}
	clear(r.batched)
	r.batched = r.batched[:0]
	r.quadCount = 0
	r.lastMaterial = MaterialIDDoNotBatch
	r.lastMesh = nil
}

func (r *Renderer) visitRenderQueue(id int) {
	q := r.queue(id)
	if slices.Contains(r.visiting, id) {
		panic(fmt.Errorf("%w: group cycle through queue %d", ErrInvalidQueue, id))
	}
	r.visiting = append(r.visiting, id)

	for i := range q.Len() {
		r.stats.Commands++
		switch cmd := q.At(i).(type) {
		case *QuadCommand:
			r.flush3D()
			r.batchQuads(cmd)
		case *GroupCommand:
			r.flush()
			r.visitRenderQueue(cmd.QueueID())
			r.flush()
		case *CustomCommand:
			r.flush()
			cmd.Execute()
			r.lastMaterial = MaterialIDDoNotBatch
		case *BatchCommand:
			r.flush()
			cmd.Execute(&r.frame)
			r.countPrimitive(cmd.primitive)
			r.lastMaterial = MaterialIDDoNotBatch
		case *PrimitiveCommand:
			r.flush()
			cmd.Execute(&r.frame)
			r.countPrimitive(cmd.primitive)
			r.lastMaterial = MaterialIDDoNotBatch
		case *MeshCommand:
			r.flush2D()
			if r.lastMesh == nil || r.lastMesh.MaterialID() != cmd.MaterialID() {
				r.flush3D()
				cmd.PreBatchDraw(&r.frame)
				r.lastMesh = cmd
			}
			cmd.BatchDraw(&r.frame)
			r.countPrimitive(cmd.primitive)
			r.lastMaterial = MaterialIDDoNotBatch
		default:
			r.lg.Error("unknown render command", slog.String("type", q.At(i).Type().String()))
		}
	}
	r.visiting = r.visiting[:len(r.visiting)-1]
}

func (r *Renderer) countPrimitive(p *gpu.Primitive) {
	if p == nil || p.Count() <= 0 {
		return
	}
	r.stats.DrawCalls++
	r.stats.Vertices += p.Count()
}

func (r *Renderer) flush() {
	r.flush2D()
	r.flush3D()
}

func (r *Renderer) flush2D() {
	r.drawBatchedQuads()
}

// flush3D ends the current run of same-material meshes.
func (r *Renderer) flush3D() {
	if r.lastMesh != nil {
		r.lastMesh.PostBatchDraw(&r.frame)
		r.lastMesh = nil
	}
}
