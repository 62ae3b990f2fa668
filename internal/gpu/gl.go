package gpu

import (
	"log/slog"
	"strings"
	"unsafe"

	"mini-gfx/internal/log"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// GLDevice implements Device on top of an OpenGL 4.1 core context. The
// context must be current on the calling thread; gl.Init must already
// have been called.
type GLDevice struct {
	lg *log.Logger
	// checkErrors polls glGetError after state-changing calls.
	checkErrors bool
}

func NewGLDevice(lg *log.Logger, checkErrors bool) *GLDevice {
	return &GLDevice{lg: lg, checkErrors: checkErrors}
}

func (d *GLDevice) check(op string) {
	if !d.checkErrors {
		return
	}
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		d.lg.Error("OpenGL error", slog.String("op", op), slog.String("code", glErrorString(e)))
	}
}

func glErrorString(e uint32) string {
	switch e {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	default:
		return "unknown"
	}
}

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return gl.Ptr(&b[0])
}

func glTarget(t BufferTarget) uint32 {
	if t == ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func glUsage(u Usage) uint32 {
	if u == DynamicDraw {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

func glType(t DataType) uint32 {
	switch t {
	case Byte:
		return gl.BYTE
	case UnsignedByte:
		return gl.UNSIGNED_BYTE
	case Short:
		return gl.SHORT
	case UnsignedShort:
		return gl.UNSIGNED_SHORT
	case Int:
		return gl.INT
	case UnsignedInt:
		return gl.UNSIGNED_INT
	default:
		return gl.FLOAT
	}
}

func glMode(m PrimitiveType) uint32 {
	switch m {
	case Points:
		return gl.POINTS
	case Lines:
		return gl.LINES
	case LineStrip:
		return gl.LINE_STRIP
	case LineLoop:
		return gl.LINE_LOOP
	case TriangleStrip:
		return gl.TRIANGLE_STRIP
	case TriangleFan:
		return gl.TRIANGLE_FAN
	default:
		return gl.TRIANGLES
	}
}

func glBlendFactor(f BlendFactor) uint32 {
	switch f {
	case Zero:
		return gl.ZERO
	case One:
		return gl.ONE
	case SrcColor:
		return gl.SRC_COLOR
	case OneMinusSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	case SrcAlpha:
		return gl.SRC_ALPHA
	case OneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case DstColor:
		return gl.DST_COLOR
	case OneMinusDstColor:
		return gl.ONE_MINUS_DST_COLOR
	case DstAlpha:
		return gl.DST_ALPHA
	default:
		return gl.ONE_MINUS_DST_ALPHA
	}
}

func glCapability(c Capability) uint32 {
	switch c {
	case DepthTest:
		return gl.DEPTH_TEST
	case CullFace:
		return gl.CULL_FACE
	case ScissorTest:
		return gl.SCISSOR_TEST
	default:
		return gl.BLEND
	}
}

func glFilter(f TextureFilter) int32 {
	switch f {
	case Linear:
		return gl.LINEAR
	case NearestMipmapNearest:
		return gl.NEAREST_MIPMAP_NEAREST
	case LinearMipmapNearest:
		return gl.LINEAR_MIPMAP_NEAREST
	case LinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.NEAREST
	}
}

func glWrap(w TextureWrap) int32 {
	switch w {
	case Repeat:
		return gl.REPEAT
	case MirroredRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.CLAMP_TO_EDGE
	}
}

// Buffers

func (d *GLDevice) GenBuffer() Handle {
	var h uint32
	gl.GenBuffers(1, &h)
	return h
}

func (d *GLDevice) DeleteBuffer(h Handle) {
	gl.DeleteBuffers(1, &h)
}

func (d *GLDevice) IsBuffer(h Handle) bool {
	return gl.IsBuffer(h)
}

func (d *GLDevice) BindBuffer(target BufferTarget, h Handle) {
	gl.BindBuffer(glTarget(target), h)
}

func (d *GLDevice) BufferData(target BufferTarget, size int, data []byte, usage Usage) {
	gl.BufferData(glTarget(target), size, ptr(data), glUsage(usage))
	d.check("BufferData")
}

func (d *GLDevice) BufferSubData(target BufferTarget, offset int, data []byte) {
	gl.BufferSubData(glTarget(target), offset, len(data), ptr(data))
	d.check("BufferSubData")
}

func (d *GLDevice) MapBuffer(target BufferTarget, size int) []byte {
	p := gl.MapBuffer(glTarget(target), gl.WRITE_ONLY)
	d.check("MapBuffer")
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

func (d *GLDevice) UnmapBuffer(target BufferTarget) bool {
	return gl.UnmapBuffer(glTarget(target))
}

// Vertex arrays

func (d *GLDevice) GenVertexArray() Handle {
	var h uint32
	gl.GenVertexArrays(1, &h)
	return h
}

func (d *GLDevice) DeleteVertexArray(h Handle) {
	gl.DeleteVertexArrays(1, &h)
}

func (d *GLDevice) BindVertexArray(h Handle) {
	gl.BindVertexArray(h)
}

func (d *GLDevice) EnableVertexAttribArray(index uint32) {
	gl.EnableVertexAttribArray(index)
}

func (d *GLDevice) DisableVertexAttribArray(index uint32) {
	gl.DisableVertexAttribArray(index)
}

func (d *GLDevice) VertexAttribPointer(index uint32, size int32, typ DataType, normalized bool, stride int32, offset int) {
	gl.VertexAttribPointerWithOffset(index, size, glType(typ), normalized, stride, uintptr(offset))
	d.check("VertexAttribPointer")
}

// Textures

func (d *GLDevice) GenTexture() Handle {
	var h uint32
	gl.GenTextures(1, &h)
	return h
}

func (d *GLDevice) DeleteTexture(h Handle) {
	gl.DeleteTextures(1, &h)
}

func (d *GLDevice) BindTexture(unit uint32, h Handle) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, h)
}

func (d *GLDevice) TexImage2D(width, height int32, pixels []byte) {
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, width, height, 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr(pixels))
	d.check("TexImage2D")
}

func (d *GLDevice) TexParameters(p TextureParams) {
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, glFilter(p.MinFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, glFilter(p.MagFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, glWrap(p.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, glWrap(p.WrapT))
}

func (d *GLDevice) GenerateMipmap() {
	gl.GenerateMipmap(gl.TEXTURE_2D)
}

// Shaders and programs

func (d *GLDevice) CreateShader(stage ShaderStage) Handle {
	if stage == FragmentShader {
		return gl.CreateShader(gl.FRAGMENT_SHADER)
	}
	return gl.CreateShader(gl.VERTEX_SHADER)
}

func (d *GLDevice) ShaderSource(h Handle, sources ...string) {
	cs := make([]string, len(sources))
	for i, s := range sources {
		cs[i] = s + "\x00"
	}
	csources, free := gl.Strs(cs...)
	gl.ShaderSource(h, int32(len(cs)), csources, nil)
	free()
}

func (d *GLDevice) CompileShader(h Handle) bool {
	gl.CompileShader(h)
	var status int32
	gl.GetShaderiv(h, gl.COMPILE_STATUS, &status)
	return status == gl.TRUE
}

func (d *GLDevice) ShaderInfoLog(h Handle) string {
	var logLength int32
	gl.GetShaderiv(h, gl.INFO_LOG_LENGTH, &logLength)
	if logLength < 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetShaderInfoLog(h, logLength, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (d *GLDevice) ShaderSourceText(h Handle) string {
	var length int32
	gl.GetShaderiv(h, gl.SHADER_SOURCE_LENGTH, &length)
	if length < 1 {
		return ""
	}
	src := strings.Repeat("\x00", int(length+1))
	gl.GetShaderSource(h, length, nil, gl.Str(src))
	return strings.TrimRight(src, "\x00")
}

func (d *GLDevice) DeleteShader(h Handle) {
	gl.DeleteShader(h)
}

func (d *GLDevice) CreateProgram() Handle {
	return gl.CreateProgram()
}

func (d *GLDevice) AttachShader(program, shader Handle) {
	gl.AttachShader(program, shader)
	d.check("AttachShader")
}

func (d *GLDevice) BindAttribLocation(program Handle, index uint32, name string) {
	gl.BindAttribLocation(program, index, gl.Str(name+"\x00"))
}

func (d *GLDevice) LinkProgram(program Handle) bool {
	gl.LinkProgram(program)
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	return status == gl.TRUE
}

func (d *GLDevice) ProgramInfoLog(program Handle) string {
	var logLength int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
	if logLength < 1 {
		return ""
	}
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (d *GLDevice) ActiveAttributes(program Handle) []ActiveVariable {
	var count, maxLen int32
	gl.GetProgramiv(program, gl.ACTIVE_ATTRIBUTES, &count)
	gl.GetProgramiv(program, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, &maxLen)
	return activeVariables(count, maxLen, func(i uint32, name *uint8, size *int32, typ *uint32) {
		gl.GetActiveAttrib(program, i, maxLen, nil, size, typ, name)
	})
}

func (d *GLDevice) ActiveUniforms(program Handle) []ActiveVariable {
	var count, maxLen int32
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	return activeVariables(count, maxLen, func(i uint32, name *uint8, size *int32, typ *uint32) {
		gl.GetActiveUniform(program, i, maxLen, nil, size, typ, name)
	})
}

func activeVariables(count, maxLen int32, query func(i uint32, name *uint8, size *int32, typ *uint32)) []ActiveVariable {
	if count <= 0 || maxLen <= 0 {
		return nil
	}
	vars := make([]ActiveVariable, 0, count)
	buf := make([]uint8, maxLen+1)
	for i := range uint32(count) {
		var v ActiveVariable
		clear(buf)
		query(i, &buf[0], &v.Size, &v.Type)
		v.Name = gl.GoStr(&buf[0])
		vars = append(vars, v)
	}
	return vars
}

func (d *GLDevice) AttribLocation(program Handle, name string) int32 {
	return gl.GetAttribLocation(program, gl.Str(name+"\x00"))
}

func (d *GLDevice) UniformLocation(program Handle, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *GLDevice) UseProgram(program Handle) {
	gl.UseProgram(program)
}

func (d *GLDevice) DeleteProgram(program Handle) {
	gl.DeleteProgram(program)
}

func (d *GLDevice) Uniformiv(location int32, components int, v []int32) {
	if len(v) == 0 {
		return
	}
	count := int32(len(v) / components)
	switch components {
	case 1:
		gl.Uniform1iv(location, count, &v[0])
	case 2:
		gl.Uniform2iv(location, count, &v[0])
	case 3:
		gl.Uniform3iv(location, count, &v[0])
	default:
		gl.Uniform4iv(location, count, &v[0])
	}
	d.check("Uniformiv")
}

func (d *GLDevice) Uniformfv(location int32, components int, v []float32) {
	if len(v) == 0 {
		return
	}
	count := int32(len(v) / components)
	switch components {
	case 1:
		gl.Uniform1fv(location, count, &v[0])
	case 2:
		gl.Uniform2fv(location, count, &v[0])
	case 3:
		gl.Uniform3fv(location, count, &v[0])
	default:
		gl.Uniform4fv(location, count, &v[0])
	}
	d.check("Uniformfv")
}

func (d *GLDevice) UniformMatrixfv(location int32, dim int, v []float32) {
	if len(v) == 0 {
		return
	}
	count := int32(len(v) / (dim * dim))
	switch dim {
	case 2:
		gl.UniformMatrix2fv(location, count, false, &v[0])
	case 3:
		gl.UniformMatrix3fv(location, count, false, &v[0])
	default:
		gl.UniformMatrix4fv(location, count, false, &v[0])
	}
	d.check("UniformMatrixfv")
}

// State and drawing

func (d *GLDevice) Enable(c Capability) {
	gl.Enable(glCapability(c))
}

func (d *GLDevice) Disable(c Capability) {
	gl.Disable(glCapability(c))
}

func (d *GLDevice) BlendFunc(src, dst BlendFactor) {
	gl.BlendFunc(glBlendFactor(src), glBlendFactor(dst))
}

func (d *GLDevice) Viewport(x, y, width, height int32) {
	gl.Viewport(x, y, width, height)
}

func (d *GLDevice) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *GLDevice) DrawElements(mode PrimitiveType, count int32, typ DataType, offset int) {
	gl.DrawElementsWithOffset(glMode(mode), count, glType(typ), uintptr(offset))
	d.check("DrawElements")
}

func (d *GLDevice) DrawArrays(mode PrimitiveType, first, count int32) {
	gl.DrawArrays(glMode(mode), first, count)
	d.check("DrawArrays")
}

func (d *GLDevice) Error() uint32 {
	return gl.GetError()
}
