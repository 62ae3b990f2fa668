package render

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/gpu"
)

type CommandType int

const (
	UnknownCommand CommandType = iota
	QuadCommandType
	MeshCommandType
	GroupCommandType
	CustomCommandType
	BatchCommandType
	PrimitiveCommandType
)

func (t CommandType) String() string {
	switch t {
	case QuadCommandType:
		return "quad"
	case MeshCommandType:
		return "mesh"
	case GroupCommandType:
		return "group"
	case CustomCommandType:
		return "custom"
	case BatchCommandType:
		return "batch"
	case PrimitiveCommandType:
		return "primitive"
	default:
		return fmt.Sprintf("CommandType(%d)", int(t))
	}
}

// Command is a draw request. The set of commands is closed: only the types
// in this package implement it.
type Command interface {
	Type() CommandType
	// GlobalOrder places the command relative to others in its queue:
	// negative orders draw first, zero in submission order, positive last.
	GlobalOrder() float32
	command()
}

type commandBase struct {
	globalOrder float32
}

func (c *commandBase) GlobalOrder() float32 { return c.globalOrder }

func (c *commandBase) SetGlobalOrder(order float32) { c.globalOrder = order }

func (*commandBase) command() {}

// Program is the part of a shader program the renderer drives.
type Program interface {
	Handle() gpu.Handle
	Use()
	SetUniformsForBuiltins(projection, modelView mgl32.Mat4, elapsed float32)
	HasUserUniforms() bool
}

// MaterialID identifies the program, texture and blend state a command
// draws with. Adjacent quad commands with equal IDs share a draw call.
type MaterialID uint32

// MaterialIDDoNotBatch never matches the current material, so a quad
// command carrying it always starts a new draw call.
const MaterialIDDoNotBatch MaterialID = 0

// GenerateMaterialID hashes the state a command draws with. The result is
// never MaterialIDDoNotBatch.
func GenerateMaterialID(program gpu.Handle, texture gpu.Handle, blend BlendFunc) MaterialID {
	var buf [16]byte
	b := binary.LittleEndian.AppendUint32(buf[:0], program)
	b = binary.LittleEndian.AppendUint32(b, texture)
	b = binary.LittleEndian.AppendUint32(b, uint32(blend.Src))
	b = binary.LittleEndian.AppendUint32(b, uint32(blend.Dst))
	h := xxhash.Sum64(b)
	id := MaterialID(uint32(h) ^ uint32(h>>32))
	if id == MaterialIDDoNotBatch {
		id = 1
	}
	return id
}

// BlendFunc is a source/destination blend factor pair.
type BlendFunc struct {
	Src, Dst gpu.BlendFactor
}

var (
	BlendDisable               = BlendFunc{gpu.One, gpu.Zero}
	BlendAlphaPremultiplied    = BlendFunc{gpu.One, gpu.OneMinusSrcAlpha}
	BlendAlphaNonPremultiplied = BlendFunc{gpu.SrcAlpha, gpu.OneMinusSrcAlpha}
	BlendAdditive              = BlendFunc{gpu.SrcAlpha, gpu.One}
)

// apply sets the blend state on dev; One/Zero turns blending off.
func (b BlendFunc) apply(dev gpu.Device) {
	if b == BlendDisable {
		dev.Disable(gpu.Blend)
		return
	}
	dev.Enable(gpu.Blend)
	dev.BlendFunc(b.Src, b.Dst)
}

type Color4B struct {
	R, G, B, A uint8
}

var (
	White = Color4B{255, 255, 255, 255}
	Black = Color4B{0, 0, 0, 255}
)

// Vertex is the interleaved layout of the quad batch: position, color,
// texture coordinates. 24 bytes.
type Vertex struct {
	Pos   mgl32.Vec3
	Color Color4B
	UV    mgl32.Vec2
}

const (
	vertexSize     = 24
	vertexColorOff = 12
	vertexUVOff    = 16
)

// Quad is four vertices in the order the shared index pattern expects.
type Quad struct {
	TL, BL, TR, BR Vertex
}

// RectQuad returns an axis-aligned quad with its bottom-left corner at
// (x, y), textured with the (u0,v0)-(u1,v1) region.
func RectQuad(x, y, w, h float32, c Color4B, u0, v0, u1, v1 float32) Quad {
	return Quad{
		TL: Vertex{Pos: mgl32.Vec3{x, y + h, 0}, Color: c, UV: mgl32.Vec2{u0, v0}},
		BL: Vertex{Pos: mgl32.Vec3{x, y, 0}, Color: c, UV: mgl32.Vec2{u0, v1}},
		TR: Vertex{Pos: mgl32.Vec3{x + w, y + h, 0}, Color: c, UV: mgl32.Vec2{u1, v0}},
		BR: Vertex{Pos: mgl32.Vec3{x + w, y, 0}, Color: c, UV: mgl32.Vec2{u1, v1}},
	}
}

// Frame is the renderer state handed to commands that draw themselves.
type Frame struct {
	Device     gpu.Device
	Projection mgl32.Mat4
	Elapsed    float32
}

// QuadCommand draws quads given in model space. They are moved to world
// space by the model-view matrix while being batched.
type QuadCommand struct {
	commandBase
	materialID MaterialID
	program    Program
	texture    gpu.Handle
	blend      BlendFunc
	quads      []Quad
	mv         mgl32.Mat4
	uniforms   func()
}

func NewQuadCommand(order float32, program Program, texture gpu.Handle, blend BlendFunc, quads []Quad, mv mgl32.Mat4) *QuadCommand {
	c := &QuadCommand{}
	c.Init(order, program, texture, blend, quads, mv)
	return c
}

// Init resets the command for reuse. The quads slice is referenced, not
// copied, and must stay unchanged until the frame is rendered.
func (c *QuadCommand) Init(order float32, program Program, texture gpu.Handle, blend BlendFunc, quads []Quad, mv mgl32.Mat4) {
	c.globalOrder = order
	c.program = program
	c.texture = texture
	c.blend = blend
	c.quads = quads
	c.mv = mv
	c.materialID = quadMaterialID(program, texture, blend)
}

func quadMaterialID(program Program, texture gpu.Handle, blend BlendFunc) MaterialID {
	if program == nil || program.HasUserUniforms() {
		return MaterialIDDoNotBatch
	}
	return GenerateMaterialID(program.Handle(), texture, blend)
}

func (*QuadCommand) Type() CommandType { return QuadCommandType }

func (c *QuadCommand) MaterialID() MaterialID { return c.materialID }

// SetMaterialID overrides the generated ID.
func (c *QuadCommand) SetMaterialID(id MaterialID) { c.materialID = id }

func (c *QuadCommand) Program() Program { return c.program }

func (c *QuadCommand) Texture() gpu.Handle { return c.texture }

func (c *QuadCommand) Blend() BlendFunc { return c.blend }

func (c *QuadCommand) Quads() []Quad { return c.quads }

func (c *QuadCommand) QuadCount() int { return len(c.quads) }

func (c *QuadCommand) ModelView() mgl32.Mat4 { return c.mv }

// SetUniformCallback sets a function run after the built-in uniforms
// whenever this command's material is applied. Programs with user
// uniforms never batch, so each such command gets its own call.
func (c *QuadCommand) SetUniformCallback(fn func()) { c.uniforms = fn }

// useMaterial binds everything the batched quads of c draw with. The
// vertices are already in world space, so the model-view is identity.
func (c *QuadCommand) useMaterial(f *Frame) {
	f.Device.BindTexture(0, c.texture)
	c.blend.apply(f.Device)
	if c.program != nil {
		c.program.Use()
		c.program.SetUniformsForBuiltins(f.Projection, mgl32.Ident4(), f.Elapsed)
	}
	if c.uniforms != nil {
		c.uniforms()
	}
}

// MeshCommand draws a primitive with its own transform. Consecutive mesh
// commands with the same material ID skip the state setup of all but the
// first.
type MeshCommand struct {
	commandBase
	materialID MaterialID
	program    Program
	texture    gpu.Handle
	blend      BlendFunc
	depthTest  bool
	cullFace   bool
	primitive  *gpu.Primitive
	mv         mgl32.Mat4
	uniforms   func()
}

func NewMeshCommand(order float32, program Program, texture gpu.Handle, blend BlendFunc, primitive *gpu.Primitive, mv mgl32.Mat4) *MeshCommand {
	c := &MeshCommand{}
	c.Init(order, program, texture, blend, primitive, mv)
	return c
}

func (c *MeshCommand) Init(order float32, program Program, texture gpu.Handle, blend BlendFunc, primitive *gpu.Primitive, mv mgl32.Mat4) {
	c.globalOrder = order
	c.program = program
	c.texture = texture
	c.blend = blend
	c.primitive = primitive
	c.mv = mv
	var ph gpu.Handle
	if program != nil {
		ph = program.Handle()
	}
	c.materialID = GenerateMaterialID(ph, texture, blend)
}

func (*MeshCommand) Type() CommandType { return MeshCommandType }

func (c *MeshCommand) MaterialID() MaterialID { return c.materialID }

func (c *MeshCommand) SetMaterialID(id MaterialID) { c.materialID = id }

func (c *MeshCommand) SetDepthTest(on bool) { c.depthTest = on }

func (c *MeshCommand) SetCullFace(on bool) { c.cullFace = on }

// SetUniformCallback sets a function run before every draw of this
// command, after the built-in uniforms, to upload per-draw user uniforms.
func (c *MeshCommand) SetUniformCallback(fn func()) { c.uniforms = fn }

func (c *MeshCommand) ModelView() mgl32.Mat4 { return c.mv }

func (c *MeshCommand) Primitive() *gpu.Primitive { return c.primitive }

// PreBatchDraw binds the state shared by a run of same-material meshes.
func (c *MeshCommand) PreBatchDraw(f *Frame) {
	f.Device.BindTexture(0, c.texture)
	c.blend.apply(f.Device)
	if c.depthTest {
		f.Device.Enable(gpu.DepthTest)
	}
	if c.cullFace {
		f.Device.Enable(gpu.CullFace)
	}
	if c.program != nil {
		c.program.Use()
	}
}

// BatchDraw uploads this command's transform and draws it.
func (c *MeshCommand) BatchDraw(f *Frame) {
	if c.program != nil {
		c.program.SetUniformsForBuiltins(f.Projection, c.mv, f.Elapsed)
	}
	if c.uniforms != nil {
		c.uniforms()
	}
	if c.primitive != nil {
		c.primitive.Draw()
	}
}

// PostBatchDraw restores the state PreBatchDraw changed.
func (c *MeshCommand) PostBatchDraw(f *Frame) {
	if c.depthTest {
		f.Device.Disable(gpu.DepthTest)
	}
	if c.cullFace {
		f.Device.Disable(gpu.CullFace)
	}
}

// GroupCommand renders another queue in its place.
type GroupCommand struct {
	commandBase
	queueID int
}

func NewGroupCommand(order float32, queueID int) *GroupCommand {
	return &GroupCommand{commandBase: commandBase{globalOrder: order}, queueID: queueID}
}

func (*GroupCommand) Type() CommandType { return GroupCommandType }

func (c *GroupCommand) QueueID() int { return c.queueID }

// CustomCommand runs arbitrary drawing code in order with the batched
// geometry around it.
type CustomCommand struct {
	commandBase
	fn func()
}

func NewCustomCommand(order float32, fn func()) *CustomCommand {
	return &CustomCommand{commandBase: commandBase{globalOrder: order}, fn: fn}
}

func (*CustomCommand) Type() CommandType { return CustomCommandType }

func (c *CustomCommand) SetFunc(fn func()) { c.fn = fn }

func (c *CustomCommand) Execute() {
	if c.fn != nil {
		c.fn()
	}
}

// drawState is what batch and primitive commands bind before drawing.
type drawState struct {
	program   Program
	texture   gpu.Handle
	blend     BlendFunc
	primitive *gpu.Primitive
	mv        mgl32.Mat4
}

func (s *drawState) execute(f *Frame) {
	if s.primitive == nil {
		return
	}
	f.Device.BindTexture(0, s.texture)
	s.blend.apply(f.Device)
	if s.program != nil {
		s.program.Use()
		s.program.SetUniformsForBuiltins(f.Projection, s.mv, f.Elapsed)
	}
	s.primitive.Draw()
}

// BatchCommand draws a prebuilt buffer of quads, such as a sprite atlas
// whose geometry changes rarely, in one call.
type BatchCommand struct {
	commandBase
	drawState
}

func NewBatchCommand(order float32, program Program, texture gpu.Handle, blend BlendFunc, atlas *gpu.Primitive, mv mgl32.Mat4) *BatchCommand {
	return &BatchCommand{
		commandBase: commandBase{globalOrder: order},
		drawState:   drawState{program: program, texture: texture, blend: blend, primitive: atlas, mv: mv},
	}
}

func (*BatchCommand) Type() CommandType { return BatchCommandType }

func (c *BatchCommand) Execute(f *Frame) { c.execute(f) }

// PrimitiveCommand draws a primitive of any topology with its own
// transform.
type PrimitiveCommand struct {
	commandBase
	drawState
}

func NewPrimitiveCommand(order float32, program Program, texture gpu.Handle, blend BlendFunc, primitive *gpu.Primitive, mv mgl32.Mat4) *PrimitiveCommand {
	return &PrimitiveCommand{
		commandBase: commandBase{globalOrder: order},
		drawState:   drawState{program: program, texture: texture, blend: blend, primitive: primitive, mv: mv},
	}
}

func (*PrimitiveCommand) Type() CommandType { return PrimitiveCommandType }

func (c *PrimitiveCommand) Execute(f *Frame) { c.execute(f) }
