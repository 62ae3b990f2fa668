package gpu

// Primitive draws a range of a vertex declaration, through its index
// buffer when it has one.
type Primitive struct {
	data  *VertexData
	typ   PrimitiveType
	start int
	count int
}

// NewPrimitive draws count elements starting at start. The index buffer,
// if any, is the one set on data.
func NewPrimitive(data *VertexData, typ PrimitiveType, start, count int) *Primitive {
	return &Primitive{data: data, typ: typ, start: start, count: count}
}

func (p *Primitive) VertexData() *VertexData { return p.data }

func (p *Primitive) Type() PrimitiveType { return p.typ }

func (p *Primitive) Start() int { return p.start }

func (p *Primitive) Count() int { return p.count }

func (p *Primitive) SetRange(start, count int) {
	p.start, p.count = start, count
}

// Draw issues one draw call. Nothing is drawn for an empty range.
func (p *Primitive) Draw() {
	if p.data == nil || p.count <= 0 {
		return
	}
	dev := p.data.dev
	p.data.Use()
	if ib := p.data.IndexBuffer(); ib != nil {
		dev.DrawElements(p.typ, int32(p.count), ib.DataType(), p.start*ib.SizePerIndex())
	} else {
		dev.DrawArrays(p.typ, int32(p.start), int32(p.count))
	}
	p.data.Disable()
}
