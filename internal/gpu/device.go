package gpu

import (
	"errors"
	"unsafe"
)

// Handle names a native graphics object: buffer, texture, shader, program
// or vertex array. Zero is never a valid object.
type Handle = uint32

var ErrInvalidSize = errors.New("gpu: buffer size must be positive")

type BufferTarget uint32

const (
	ArrayBuffer BufferTarget = iota + 1
	ElementArrayBuffer
)

type Usage uint32

const (
	StaticDraw Usage = iota + 1
	DynamicDraw
)

type ShaderStage uint32

const (
	VertexShader ShaderStage = iota + 1
	FragmentShader
)

type DataType uint32

const (
	Byte DataType = iota + 1
	UnsignedByte
	Short
	UnsignedShort
	Int
	UnsignedInt
	Float
)

// Size returns the size in bytes of one component of type t.
func (t DataType) Size() int {
	switch t {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	default:
		return 4
	}
}

type PrimitiveType uint32

const (
	Points PrimitiveType = iota + 1
	Lines
	LineStrip
	LineLoop
	Triangles
	TriangleStrip
	TriangleFan
)

type BlendFactor uint32

const (
	Zero BlendFactor = iota + 1
	One
	SrcColor
	OneMinusSrcColor
	SrcAlpha
	OneMinusSrcAlpha
	DstColor
	OneMinusDstColor
	DstAlpha
	OneMinusDstAlpha
)

type Capability uint32

const (
	Blend Capability = iota + 1
	DepthTest
	CullFace
	ScissorTest
)

type TextureFilter uint32

const (
	Nearest TextureFilter = iota + 1
	Linear
	NearestMipmapNearest
	LinearMipmapNearest
	LinearMipmapLinear
)

type TextureWrap uint32

const (
	ClampToEdge TextureWrap = iota + 1
	Repeat
	MirroredRepeat
)

// TextureParams are the sampling parameters applied to the bound 2D texture.
type TextureParams struct {
	MinFilter, MagFilter TextureFilter
	WrapS, WrapT         TextureWrap
}

// ActiveVariable describes an active attribute or uniform reported by a
// linked program.
type ActiveVariable struct {
	Name string
	Size int32
	Type uint32
}

// Device is the narrow slice of the graphics API used by the buffer,
// texture, program and renderer code. All calls must come from the thread
// that owns the graphics context.
type Device interface {
	GenBuffer() Handle
	DeleteBuffer(h Handle)
	IsBuffer(h Handle) bool
	BindBuffer(target BufferTarget, h Handle)
	// BufferData (re)allocates the bound buffer; nil data leaves the contents
	// undefined.
	BufferData(target BufferTarget, size int, data []byte, usage Usage)
	BufferSubData(target BufferTarget, offset int, data []byte)
	// MapBuffer maps the bound buffer write-only and returns size writable
	// bytes, valid until UnmapBuffer.
	MapBuffer(target BufferTarget, size int) []byte
	UnmapBuffer(target BufferTarget) bool

	GenVertexArray() Handle
	DeleteVertexArray(h Handle)
	BindVertexArray(h Handle)
	EnableVertexAttribArray(index uint32)
	DisableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, typ DataType, normalized bool, stride int32, offset int)

	GenTexture() Handle
	DeleteTexture(h Handle)
	BindTexture(unit uint32, h Handle)
	// TexImage2D uploads tightly packed RGBA8 pixels to the texture bound
	// on the active unit.
	TexImage2D(width, height int32, pixels []byte)
	TexParameters(p TextureParams)
	GenerateMipmap()

	CreateShader(stage ShaderStage) Handle
	ShaderSource(h Handle, sources ...string)
	CompileShader(h Handle) bool
	ShaderInfoLog(h Handle) string
	ShaderSourceText(h Handle) string
	DeleteShader(h Handle)

	CreateProgram() Handle
	AttachShader(program, shader Handle)
	BindAttribLocation(program Handle, index uint32, name string)
	LinkProgram(program Handle) bool
	ProgramInfoLog(program Handle) string
	ActiveAttributes(program Handle) []ActiveVariable
	ActiveUniforms(program Handle) []ActiveVariable
	AttribLocation(program Handle, name string) int32
	UniformLocation(program Handle, name string) int32
	UseProgram(program Handle)
	DeleteProgram(program Handle)

	// Uniformiv uploads len(v)/components vectors of the given width (1-4).
	Uniformiv(location int32, components int, v []int32)
	Uniformfv(location int32, components int, v []float32)
	// UniformMatrixfv uploads len(v)/(dim*dim) column-major matrices.
	UniformMatrixfv(location int32, dim int, v []float32)

	Enable(c Capability)
	Disable(c Capability)
	BlendFunc(src, dst BlendFactor)
	Viewport(x, y, width, height int32)
	Clear(r, g, b, a float32)
	DrawElements(mode PrimitiveType, count int32, typ DataType, offset int)
	DrawArrays(mode PrimitiveType, first, count int32)

	// Error returns and clears the oldest pending error code; zero means
	// no error.
	Error() uint32
}

// AsBytes reinterprets a slice of plain-data values as its backing bytes.
func AsBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
