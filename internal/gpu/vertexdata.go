package gpu

import "sort"

// Fixed attribute locations bound to the well-known attribute names before
// every program link.
const (
	AttribPosition uint32 = iota
	AttribColor
	AttribTexCoord
	AttribNormal
	AttribBlendWeight
	AttribBlendIndex
)

// VertexStreamAttribute describes one attribute inside an interleaved
// vertex: where it sits and how it is laid out.
type VertexStreamAttribute struct {
	Offset    int
	Semantic  uint32
	Type      DataType
	Size      int32
	Normalize bool
}

type vertexStream struct {
	buffer *VertexBuffer
	attr   VertexStreamAttribute
}

// VertexData is a vertex declaration: a set of attribute streams, each
// reading from a vertex buffer, plus an optional index buffer, captured
// in a vertex array object that is built on first use.
type VertexData struct {
	dev     Device
	streams map[uint32]vertexStream
	indices *IndexBuffer
	vao     Handle
	cancel  func()
}

// NewVertexData returns an empty declaration. With a non-nil lifecycle the
// vertex array object is rebuilt after a context loss; register the
// buffers it references on the same lifecycle first.
func NewVertexData(dev Device, lc *Lifecycle) *VertexData {
	vd := &VertexData{dev: dev, streams: make(map[uint32]vertexStream)}
	if lc != nil {
		vd.cancel = lc.OnRecreate(vd.Recreate)
	}
	return vd
}

// SetStream adds or replaces the stream for attr.Semantic. It reports
// whether the attribute fits inside one vertex of vb.
func (vd *VertexData) SetStream(vb *VertexBuffer, attr VertexStreamAttribute) bool {
	if vb == nil || attr.Offset < 0 || attr.Offset+int(attr.Size)*attr.Type.Size() > vb.SizePerVertex() {
		return false
	}
	vd.streams[attr.Semantic] = vertexStream{buffer: vb, attr: attr}
	vd.invalidate()
	return true
}

func (vd *VertexData) RemoveStream(semantic uint32) {
	delete(vd.streams, semantic)
	vd.invalidate()
}

// Stream returns the attribute layout registered for semantic.
func (vd *VertexData) Stream(semantic uint32) (VertexStreamAttribute, bool) {
	s, ok := vd.streams[semantic]
	return s.attr, ok
}

func (vd *VertexData) StreamCount() int {
	return len(vd.streams)
}

func (vd *VertexData) SetIndexBuffer(ib *IndexBuffer) {
	vd.indices = ib
	vd.invalidate()
}

func (vd *VertexData) IndexBuffer() *IndexBuffer {
	return vd.indices
}

// invalidate drops the vertex array object so the next Use rebuilds it.
func (vd *VertexData) invalidate() {
	if vd.vao != 0 {
		vd.dev.DeleteVertexArray(vd.vao)
		vd.vao = 0
	}
}

// Use binds the vertex array object, building it first if needed.
func (vd *VertexData) Use() {
	if vd.vao == 0 {
		vd.build()
	}
	vd.dev.BindVertexArray(vd.vao)
}

func (vd *VertexData) build() {
	vd.vao = vd.dev.GenVertexArray()
	vd.dev.BindVertexArray(vd.vao)

	semantics := make([]uint32, 0, len(vd.streams))
	for s := range vd.streams {
		semantics = append(semantics, s)
	}
	sort.Slice(semantics, func(i, j int) bool { return semantics[i] < semantics[j] })

	for _, sem := range semantics {
		s := vd.streams[sem]
		vd.dev.EnableVertexAttribArray(sem)
		vd.dev.BindBuffer(ArrayBuffer, s.buffer.Handle())
		vd.dev.VertexAttribPointer(sem, s.attr.Size, s.attr.Type, s.attr.Normalize,
			int32(s.buffer.SizePerVertex()), s.attr.Offset)
	}
	if vd.indices != nil {
		vd.dev.BindBuffer(ElementArrayBuffer, vd.indices.Handle())
	}

	vd.dev.BindVertexArray(0)
	vd.dev.BindBuffer(ArrayBuffer, 0)
}

// Disable unbinds the vertex array object.
func (vd *VertexData) Disable() {
	vd.dev.BindVertexArray(0)
}

// Recreate forgets the vertex array object of a lost context; the next
// Use builds a new one against the recreated buffers.
func (vd *VertexData) Recreate() {
	vd.vao = 0
}

// Release deletes the vertex array object and stops listening for context
// recreation.
func (vd *VertexData) Release() {
	if vd.cancel != nil {
		vd.cancel()
		vd.cancel = nil
	}
	vd.invalidate()
}
