package gpu

import (
	"fmt"
	"log/slog"
	"runtime"

	"mini-gfx/internal/log"
)

// DefaultShadowCopy reports whether new buffers keep a CPU copy of their
// contents unless told otherwise. Android drops every GL object when the
// application is backgrounded, so buffers there must be able to restore
// themselves.
var DefaultShadowCopy = runtime.GOOS == "android"

type bufferOptions struct {
	shadowCopy bool
	lifecycle  *Lifecycle
	lg         *log.Logger
}

type BufferOption func(*bufferOptions)

// WithShadowCopy overrides DefaultShadowCopy for one buffer.
func WithShadowCopy(enabled bool) BufferOption {
	return func(o *bufferOptions) { o.shadowCopy = enabled }
}

// WithLifecycle makes the buffer regenerate its handle, re-uploading the
// shadow copy if it has one, whenever lc reports a recreated context.
func WithLifecycle(lc *Lifecycle) BufferOption {
	return func(o *bufferOptions) { o.lifecycle = lc }
}

func WithLogger(lg *log.Logger) BufferOption {
	return func(o *bufferOptions) { o.lg = lg }
}

// buffer holds what vertex and index buffers have in common: a native
// handle, a fixed element count and stride and an optional shadow copy.
type buffer struct {
	dev      Device
	lg       *log.Logger
	kind     string
	target   BufferTarget
	handle   Handle
	elemSize int
	count    int
	usage    Usage
	shadow   []byte
	mapped   bool
	lc       *Lifecycle
	cancel   func()
}

func newBuffer(dev Device, kind string, target BufferTarget, elemSize, count int, dynamic bool, opts []BufferOption) (buffer, error) {
	if elemSize <= 0 || count <= 0 {
		return buffer{}, fmt.Errorf("%s with %d elements of %d bytes: %w", kind, count, elemSize, ErrInvalidSize)
	}
	o := bufferOptions{shadowCopy: DefaultShadowCopy}
	for _, opt := range opts {
		opt(&o)
	}

	b := buffer{
		dev:      dev,
		lg:       o.lg,
		lc:       o.lifecycle,
		kind:     kind,
		target:   target,
		elemSize: elemSize,
		count:    count,
		usage:    StaticDraw,
	}
	if dynamic {
		b.usage = DynamicDraw
	}
	if o.shadowCopy {
		b.shadow = make([]byte, b.Size())
	}
	return b, nil
}

// listen must run once b has reached its final address.
func (b *buffer) listen() {
	if b.lc != nil {
		b.cancel = b.lc.OnRecreate(b.Recreate)
	}
}

// Size returns the buffer size in bytes.
func (b *buffer) Size() int {
	return b.elemSize * b.count
}

// Handle returns the native buffer name; zero after Release.
func (b *buffer) Handle() Handle {
	return b.handle
}

func (b *buffer) Dynamic() bool {
	return b.usage == DynamicDraw
}

func (b *buffer) ShadowCopyEnabled() bool {
	return b.shadow != nil
}

// ShadowCopy returns the CPU mirror of the buffer contents, or nil if the
// buffer has none. The slice must not be modified.
func (b *buffer) ShadowCopy() []byte {
	return b.shadow
}

// Recreate generates a fresh native buffer of the same size. With a shadow
// copy the previous contents are uploaded; otherwise they are undefined.
func (b *buffer) Recreate() {
	b.handle = b.dev.GenBuffer()
	b.dev.BindBuffer(b.target, b.handle)
	b.dev.BufferData(b.target, b.Size(), b.shadow, b.usage)
	b.dev.BindBuffer(b.target, 0)
	b.mapped = false

	if !b.dev.IsBuffer(b.handle) {
		b.lg.Error("buffer recreate failed", slog.String("kind", b.kind), slog.Int("size", b.Size()))
	} else {
		b.lg.Debug("buffer recreated", slog.String("kind", b.kind),
			slog.Int("elements", b.count), slog.Int("element_size", b.elemSize))
	}
}

// Map returns the whole buffer as writable memory. A dynamic buffer is
// orphaned first so the driver can hand out fresh storage instead of
// waiting for draws still reading the old contents. Buffers with a shadow
// copy hand out the shadow itself and upload it on Unmap, which keeps the
// copy authoritative.
func (b *buffer) Map() []byte {
	if b.mapped {
		panic(fmt.Sprintf("gpu: %s %d is already mapped", b.kind, b.handle))
	}
	b.mapped = true
	if b.shadow != nil {
		return b.shadow
	}

	b.dev.BindBuffer(b.target, b.handle)
	if b.usage == DynamicDraw {
		b.dev.BufferData(b.target, b.Size(), nil, b.usage)
	}
	return b.dev.MapBuffer(b.target, b.Size())
}

func (b *buffer) Unmap() {
	if !b.mapped {
		return
	}
	b.mapped = false
	if b.shadow != nil {
		b.dev.BindBuffer(b.target, b.handle)
		b.dev.BufferData(b.target, b.Size(), b.shadow, b.usage)
	} else if !b.dev.UnmapBuffer(b.target) {
		b.lg.Warn("buffer contents lost while mapped", slog.String("kind", b.kind))
	}
	b.dev.BindBuffer(b.target, 0)
}

// update copies count elements of data starting at element begin. Out of
// range requests are clamped and logged.
func (b *buffer) update(data []byte, count, begin int) bool {
	if count <= 0 || len(data) == 0 {
		return false
	}
	if begin < 0 {
		b.lg.Error("buffer update with negative begin; using 0", slog.String("kind", b.kind), slog.Int("begin", begin))
		begin = 0
	}
	if begin >= b.count {
		b.lg.Error("buffer update starts past the end", slog.String("kind", b.kind), slog.Int("begin", begin))
		return false
	}
	if count+begin > b.count {
		b.lg.Error("buffer update exceeds capacity; clamping", slog.String("kind", b.kind),
			slog.Int("count", count), slog.Int("begin", begin), slog.Int("capacity", b.count))
		count = b.count - begin
	}
	n := count * b.elemSize
	if n > len(data) {
		b.lg.Error("buffer update with short data", slog.String("kind", b.kind),
			slog.Int("want_bytes", n), slog.Int("have_bytes", len(data)))
		n = len(data) - len(data)%b.elemSize
		if n == 0 {
			return false
		}
	}
	data = data[:n]
	offset := begin * b.elemSize

	if b.shadow != nil {
		copy(b.shadow[offset:], data)
	}
	b.dev.BindBuffer(b.target, b.handle)
	b.dev.BufferSubData(b.target, offset, data)
	b.dev.BindBuffer(b.target, 0)
	return true
}

// Release deletes the native buffer and stops listening for context
// recreation. It is safe to call more than once.
func (b *buffer) Release() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.handle != 0 && b.dev.IsBuffer(b.handle) {
		b.dev.DeleteBuffer(b.handle)
	}
	b.handle = 0
}

// VertexBuffer is an array buffer of fixed-size vertices.
type VertexBuffer struct {
	buffer
}

// NewVertexBuffer allocates room for vertexCount vertices of sizePerVertex
// bytes each.
func NewVertexBuffer(dev Device, sizePerVertex, vertexCount int, dynamic bool, opts ...BufferOption) (*VertexBuffer, error) {
	b, err := newBuffer(dev, "vertex buffer", ArrayBuffer, sizePerVertex, vertexCount, dynamic, opts)
	if err != nil {
		return nil, err
	}
	vb := &VertexBuffer{buffer: b}
	vb.Recreate()
	vb.listen()
	return vb, nil
}

func (vb *VertexBuffer) SizePerVertex() int { return vb.elemSize }

func (vb *VertexBuffer) VertexCount() int { return vb.count }

// UpdateVertices copies count vertices from verts into the buffer starting
// at vertex begin.
func (vb *VertexBuffer) UpdateVertices(verts []byte, count, begin int) bool {
	return vb.update(verts, count, begin)
}

type IndexType int

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

// IndexBuffer is an element array buffer of 16 or 32 bit indices.
type IndexBuffer struct {
	buffer
	typ IndexType
}

func NewIndexBuffer(dev Device, typ IndexType, indexCount int, dynamic bool, opts ...BufferOption) (*IndexBuffer, error) {
	size := 2
	if typ == IndexUint32 {
		size = 4
	}
	b, err := newBuffer(dev, "index buffer", ElementArrayBuffer, size, indexCount, dynamic, opts)
	if err != nil {
		return nil, err
	}
	ib := &IndexBuffer{buffer: b, typ: typ}
	ib.Recreate()
	ib.listen()
	return ib, nil
}

func (ib *IndexBuffer) Type() IndexType { return ib.typ }

// DataType returns the component type to pass to DrawElements.
func (ib *IndexBuffer) DataType() DataType {
	if ib.typ == IndexUint32 {
		return UnsignedInt
	}
	return UnsignedShort
}

func (ib *IndexBuffer) SizePerIndex() int { return ib.elemSize }

func (ib *IndexBuffer) IndexCount() int { return ib.count }

func (ib *IndexBuffer) UpdateIndices(indices []byte, count, begin int) bool {
	return ib.update(indices, count, begin)
}
