// Package gputest provides an in-memory gpu.Device that records what is
// asked of it, for tests that must run without a graphics context.
package gputest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mini-gfx/internal/gpu"
)

// GL enum values reported as the Type of reflected variables.
const (
	TypeInt       uint32 = 0x1404
	TypeFloat     uint32 = 0x1406
	TypeVec2      uint32 = 0x8B50
	TypeVec3      uint32 = 0x8B51
	TypeVec4      uint32 = 0x8B52
	TypeIVec2     uint32 = 0x8B53
	TypeIVec3     uint32 = 0x8B54
	TypeIVec4     uint32 = 0x8B55
	TypeBool      uint32 = 0x8B56
	TypeMat2      uint32 = 0x8B5A
	TypeMat3      uint32 = 0x8B5B
	TypeMat4      uint32 = 0x8B5C
	TypeSampler2D uint32 = 0x8B5E
)

var glslTypes = map[string]uint32{
	"int": TypeInt, "float": TypeFloat, "bool": TypeBool,
	"vec2": TypeVec2, "vec3": TypeVec3, "vec4": TypeVec4,
	"ivec2": TypeIVec2, "ivec3": TypeIVec3, "ivec4": TypeIVec4,
	"mat2": TypeMat2, "mat3": TypeMat3, "mat4": TypeMat4,
	"sampler2D": TypeSampler2D,
}

type Buffer struct {
	Data  []byte
	Usage gpu.Usage
}

type AttribPointer struct {
	Buffer     gpu.Handle
	Size       int32
	Type       gpu.DataType
	Normalized bool
	Stride     int32
	Offset     int
	Enabled    bool
}

type VertexArray struct {
	Attribs  map[uint32]AttribPointer
	Elements gpu.Handle
}

type Texture struct {
	Width, Height int32
	Pixels        []byte
	Params        gpu.TextureParams
	Mipmapped     bool
}

type Shader struct {
	Stage    gpu.ShaderStage
	Source   string
	Compiled bool
	Log      string
}

type Program struct {
	Shaders  []gpu.Handle
	Bindings map[string]uint32
	Linked   bool
	Log      string
	Attribs  []gpu.ActiveVariable
	Uniforms []gpu.ActiveVariable

	attribLocs  map[string]int32
	uniformLocs map[string]int32
	locNames    map[int32]string
}

// Upload is one uniform upload.
type Upload struct {
	Program  gpu.Handle
	Location int32
	Name     string
	Ints     []int32
	Floats   []float32
	Matrix   bool
}

// Draw is one draw call together with the state it ran against.
type Draw struct {
	Mode         gpu.PrimitiveType
	Indexed      bool
	Count        int32
	First        int32
	IndexType    gpu.DataType
	Offset       int
	Program      gpu.Handle
	VertexArray  gpu.Handle
	VertexBuffer gpu.Handle
	IndexBuffer  gpu.Handle
	Texture      gpu.Handle
	Blend        [2]gpu.BlendFactor
	BlendEnabled bool
}

// Device implements gpu.Device in memory. Compiling a shader whose source
// contains "#error" fails, as does every link while FailLink is set.
type Device struct {
	FailLink bool
	// Errors are returned, oldest first, by Error.
	Errors []uint32

	Buffers      map[gpu.Handle]*Buffer
	VertexArrays map[gpu.Handle]*VertexArray
	Textures     map[gpu.Handle]*Texture
	Shaders      map[gpu.Handle]*Shader
	Programs     map[gpu.Handle]*Program

	Draws     []Draw
	Uploads   []Upload
	Viewports [][4]int32
	Clears    int
	// Orphans counts BufferData calls made without data.
	Orphans int

	Caps      map[gpu.Capability]bool
	Blend     [2]gpu.BlendFactor
	Current   gpu.Handle
	BoundVAO  gpu.Handle
	UseCalls  int
	BindCalls int

	bound  map[gpu.BufferTarget]gpu.Handle
	units  map[uint32]gpu.Handle
	active uint32
	mapped map[gpu.BufferTarget][]byte
	nextID gpu.Handle
}

var _ gpu.Device = (*Device)(nil)

func New() *Device {
	d := &Device{}
	d.reset()
	return d
}

func (d *Device) reset() {
	d.Buffers = make(map[gpu.Handle]*Buffer)
	d.VertexArrays = make(map[gpu.Handle]*VertexArray)
	d.Textures = make(map[gpu.Handle]*Texture)
	d.Shaders = make(map[gpu.Handle]*Shader)
	d.Programs = make(map[gpu.Handle]*Program)
	d.Caps = make(map[gpu.Capability]bool)
	d.bound = make(map[gpu.BufferTarget]gpu.Handle)
	d.units = make(map[uint32]gpu.Handle)
	d.mapped = make(map[gpu.BufferTarget][]byte)
	d.Current, d.BoundVAO = 0, 0
}

// LoseContext drops every object, as a platform does when it destroys the
// graphics context. Handles are not reused afterwards.
func (d *Device) LoseContext() {
	d.reset()
}

// ResetRecords clears the recorded draws, uploads and call counters.
func (d *Device) ResetRecords() {
	d.Draws = nil
	d.Uploads = nil
	d.Viewports = nil
	d.Clears = 0
	d.Orphans = 0
	d.UseCalls = 0
	d.BindCalls = 0
}

func (d *Device) gen() gpu.Handle {
	d.nextID++
	return d.nextID
}

// Buffers

func (d *Device) GenBuffer() gpu.Handle {
	h := d.gen()
	d.Buffers[h] = &Buffer{}
	return h
}

func (d *Device) DeleteBuffer(h gpu.Handle) {
	delete(d.Buffers, h)
	for t, b := range d.bound {
		if b == h {
			d.bound[t] = 0
		}
	}
}

func (d *Device) IsBuffer(h gpu.Handle) bool {
	_, ok := d.Buffers[h]
	return ok
}

func (d *Device) BindBuffer(target gpu.BufferTarget, h gpu.Handle) {
	d.bound[target] = h
	if target == gpu.ElementArrayBuffer && d.BoundVAO != 0 {
		if vao := d.VertexArrays[d.BoundVAO]; vao != nil {
			vao.Elements = h
		}
	}
}

func (d *Device) boundBuffer(target gpu.BufferTarget) *Buffer {
	b := d.Buffers[d.bound[target]]
	if b == nil {
		panic(fmt.Sprintf("gputest: no buffer bound to target %d", target))
	}
	return b
}

func (d *Device) BufferData(target gpu.BufferTarget, size int, data []byte, usage gpu.Usage) {
	b := d.boundBuffer(target)
	if data == nil {
		d.Orphans++
	}
	b.Data = make([]byte, size)
	copy(b.Data, data)
	b.Usage = usage
}

func (d *Device) BufferSubData(target gpu.BufferTarget, offset int, data []byte) {
	b := d.boundBuffer(target)
	if offset+len(data) > len(b.Data) {
		panic(fmt.Sprintf("gputest: BufferSubData [%d,%d) outside %d bytes", offset, offset+len(data), len(b.Data)))
	}
	copy(b.Data[offset:], data)
}

func (d *Device) MapBuffer(target gpu.BufferTarget, size int) []byte {
	d.boundBuffer(target)
	m := make([]byte, size)
	d.mapped[target] = m
	return m
}

func (d *Device) UnmapBuffer(target gpu.BufferTarget) bool {
	m, ok := d.mapped[target]
	if !ok {
		return false
	}
	delete(d.mapped, target)
	copy(d.boundBuffer(target).Data, m)
	return true
}

// BufferBytes returns the contents of buffer h.
func (d *Device) BufferBytes(h gpu.Handle) []byte {
	if b := d.Buffers[h]; b != nil {
		return b.Data
	}
	return nil
}

// Vertex arrays

func (d *Device) GenVertexArray() gpu.Handle {
	h := d.gen()
	d.VertexArrays[h] = &VertexArray{Attribs: make(map[uint32]AttribPointer)}
	return h
}

func (d *Device) DeleteVertexArray(h gpu.Handle) {
	delete(d.VertexArrays, h)
	if d.BoundVAO == h {
		d.BoundVAO = 0
	}
}

func (d *Device) BindVertexArray(h gpu.Handle) {
	d.BoundVAO = h
}

func (d *Device) vao() *VertexArray {
	if v := d.VertexArrays[d.BoundVAO]; v != nil {
		return v
	}
	panic("gputest: vertex attribute call without a bound vertex array")
}

func (d *Device) EnableVertexAttribArray(index uint32) {
	v := d.vao()
	a := v.Attribs[index]
	a.Enabled = true
	v.Attribs[index] = a
}

func (d *Device) DisableVertexAttribArray(index uint32) {
	v := d.vao()
	a := v.Attribs[index]
	a.Enabled = false
	v.Attribs[index] = a
}

func (d *Device) VertexAttribPointer(index uint32, size int32, typ gpu.DataType, normalized bool, stride int32, offset int) {
	v := d.vao()
	a := v.Attribs[index]
	a.Buffer = d.bound[gpu.ArrayBuffer]
	a.Size, a.Type, a.Normalized, a.Stride, a.Offset = size, typ, normalized, stride, offset
	v.Attribs[index] = a
}

// Textures

func (d *Device) GenTexture() gpu.Handle {
	h := d.gen()
	d.Textures[h] = &Texture{}
	return h
}

func (d *Device) DeleteTexture(h gpu.Handle) {
	delete(d.Textures, h)
	for u, t := range d.units {
		if t == h {
			d.units[u] = 0
		}
	}
}

func (d *Device) BindTexture(unit uint32, h gpu.Handle) {
	d.active = unit
	d.units[unit] = h
	d.BindCalls++
}

// BoundTexture returns the texture bound on unit.
func (d *Device) BoundTexture(unit uint32) gpu.Handle {
	return d.units[unit]
}

func (d *Device) texture() *Texture {
	t := d.Textures[d.units[d.active]]
	if t == nil {
		panic("gputest: texture call without a bound texture")
	}
	return t
}

func (d *Device) TexImage2D(width, height int32, pixels []byte) {
	t := d.texture()
	t.Width, t.Height = width, height
	t.Pixels = append([]byte(nil), pixels...)
	t.Mipmapped = false
}

func (d *Device) TexParameters(p gpu.TextureParams) {
	d.texture().Params = p
}

func (d *Device) GenerateMipmap() {
	d.texture().Mipmapped = true
}

// Shaders

func (d *Device) CreateShader(stage gpu.ShaderStage) gpu.Handle {
	h := d.gen()
	d.Shaders[h] = &Shader{Stage: stage}
	return h
}

func (d *Device) ShaderSource(h gpu.Handle, sources ...string) {
	d.Shaders[h].Source = strings.Join(sources, "")
}

func (d *Device) CompileShader(h gpu.Handle) bool {
	s := d.Shaders[h]
	if i := strings.Index(s.Source, "#error"); i >= 0 {
		line := s.Source[i:]
		if j := strings.IndexByte(line, '\n'); j >= 0 {
			line = line[:j]
		}
		s.Compiled = false
		s.Log = "ERROR: 0:1: '" + line + "'"
		return false
	}
	s.Compiled = true
	s.Log = ""
	return true
}

func (d *Device) ShaderInfoLog(h gpu.Handle) string {
	return d.Shaders[h].Log
}

func (d *Device) ShaderSourceText(h gpu.Handle) string {
	return d.Shaders[h].Source
}

func (d *Device) DeleteShader(h gpu.Handle) {
	delete(d.Shaders, h)
}

// Programs

func (d *Device) CreateProgram() gpu.Handle {
	h := d.gen()
	d.Programs[h] = &Program{Bindings: make(map[string]uint32)}
	return h
}

func (d *Device) AttachShader(program, shader gpu.Handle) {
	p := d.Programs[program]
	p.Shaders = append(p.Shaders, shader)
}

func (d *Device) BindAttribLocation(program gpu.Handle, index uint32, name string) {
	d.Programs[program].Bindings[name] = index
}

var declRE = regexp.MustCompile(`(?m)^[ \t]*(?:layout\s*\([^)]*\)\s*)?(attribute|in|uniform)\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*;[^\n]*$`)

type decl struct {
	kind, typ, name string
	size            int32
}

// reflectSource finds the declarations in src and reports which of them are
// referenced outside their own declaration, the way a compiler drops unused
// inputs.
func reflectSource(src string) (decls []decl, active map[string]bool) {
	body := declRE.ReplaceAllString(src, "")
	active = make(map[string]bool)
	for _, m := range declRE.FindAllStringSubmatch(src, -1) {
		d := decl{kind: m[1], typ: m[2], name: m[3], size: 1}
		if m[4] != "" {
			n, _ := strconv.Atoi(m[4])
			d.size = int32(n)
		}
		decls = append(decls, d)
		if regexp.MustCompile(`\b` + regexp.QuoteMeta(d.name) + `\b`).MatchString(body) {
			active[d.name] = true
		}
	}
	return decls, active
}

func (d *Device) LinkProgram(program gpu.Handle) bool {
	p := d.Programs[program]
	p.Linked = false
	p.Attribs, p.Uniforms = nil, nil
	p.attribLocs = make(map[string]int32)
	p.uniformLocs = make(map[string]int32)
	p.locNames = make(map[int32]string)

	if d.FailLink {
		p.Log = "error: linking with uncompiled/unspecialized shader"
		return false
	}
	for _, sh := range p.Shaders {
		s := d.Shaders[sh]
		if s == nil || !s.Compiled {
			p.Log = "error: linking with uncompiled shader"
			return false
		}
	}

	used := make(map[uint32]bool)
	for _, idx := range p.Bindings {
		used[idx] = true
	}
	var next uint32
	var loc int32
	seen := make(map[string]bool)
	for _, sh := range p.Shaders {
		s := d.Shaders[sh]
		decls, active := reflectSource(s.Source)
		for _, dc := range decls {
			if !active[dc.name] || seen[dc.kind+dc.name] {
				continue
			}
			isAttrib := dc.kind == "attribute" || (dc.kind == "in" && s.Stage == gpu.VertexShader)
			switch {
			case isAttrib:
				seen[dc.kind+dc.name] = true
				idx, ok := p.Bindings[dc.name]
				if !ok {
					for used[next] {
						next++
					}
					idx = next
					used[idx] = true
				}
				p.attribLocs[dc.name] = int32(idx)
				p.Attribs = append(p.Attribs, gpu.ActiveVariable{Name: dc.name, Size: dc.size, Type: glslTypes[dc.typ]})
			case dc.kind == "uniform":
				seen[dc.kind+dc.name] = true
				name := dc.name
				if dc.size > 1 {
					name += "[0]"
				}
				p.Uniforms = append(p.Uniforms, gpu.ActiveVariable{Name: name, Size: dc.size, Type: glslTypes[dc.typ]})
				p.uniformLocs[dc.name] = loc
				p.uniformLocs[name] = loc
				p.locNames[loc] = dc.name
				loc += dc.size
			}
		}
	}
	p.Linked = true
	p.Log = ""
	return true
}

func (d *Device) ProgramInfoLog(program gpu.Handle) string {
	return d.Programs[program].Log
}

func (d *Device) ActiveAttributes(program gpu.Handle) []gpu.ActiveVariable {
	return d.Programs[program].Attribs
}

func (d *Device) ActiveUniforms(program gpu.Handle) []gpu.ActiveVariable {
	return d.Programs[program].Uniforms
}

func (d *Device) AttribLocation(program gpu.Handle, name string) int32 {
	if l, ok := d.Programs[program].attribLocs[name]; ok {
		return l
	}
	return -1
}

func (d *Device) UniformLocation(program gpu.Handle, name string) int32 {
	if l, ok := d.Programs[program].uniformLocs[name]; ok {
		return l
	}
	return -1
}

func (d *Device) UseProgram(program gpu.Handle) {
	d.Current = program
	d.UseCalls++
}

func (d *Device) DeleteProgram(program gpu.Handle) {
	delete(d.Programs, program)
	if d.Current == program {
		d.Current = 0
	}
}

func (d *Device) record(u Upload) {
	if p := d.Programs[d.Current]; p != nil {
		u.Name = p.locNames[u.Location]
	}
	u.Program = d.Current
	d.Uploads = append(d.Uploads, u)
}

func (d *Device) Uniformiv(location int32, components int, v []int32) {
	d.record(Upload{Location: location, Ints: append([]int32(nil), v...)})
}

func (d *Device) Uniformfv(location int32, components int, v []float32) {
	d.record(Upload{Location: location, Floats: append([]float32(nil), v...)})
}

func (d *Device) UniformMatrixfv(location int32, dim int, v []float32) {
	d.record(Upload{Location: location, Floats: append([]float32(nil), v...), Matrix: true})
}

// UploadsOf returns the uploads made to the named uniform of program.
func (d *Device) UploadsOf(program gpu.Handle, name string) []Upload {
	var out []Upload
	for _, u := range d.Uploads {
		if u.Program == program && u.Name == name {
			out = append(out, u)
		}
	}
	return out
}

// State and drawing

func (d *Device) Enable(c gpu.Capability)  { d.Caps[c] = true }
func (d *Device) Disable(c gpu.Capability) { d.Caps[c] = false }

func (d *Device) BlendFunc(src, dst gpu.BlendFactor) {
	d.Blend = [2]gpu.BlendFactor{src, dst}
}

func (d *Device) Viewport(x, y, width, height int32) {
	d.Viewports = append(d.Viewports, [4]int32{x, y, width, height})
}

func (d *Device) Clear(r, g, b, a float32) {
	d.Clears++
}

func (d *Device) draw(dr Draw) {
	dr.Program = d.Current
	dr.VertexArray = d.BoundVAO
	dr.Texture = d.units[0]
	dr.Blend = d.Blend
	dr.BlendEnabled = d.Caps[gpu.Blend]
	if v := d.VertexArrays[d.BoundVAO]; v != nil {
		dr.VertexBuffer = v.Attribs[gpu.AttribPosition].Buffer
		dr.IndexBuffer = v.Elements
	} else {
		dr.VertexBuffer = d.bound[gpu.ArrayBuffer]
		dr.IndexBuffer = d.bound[gpu.ElementArrayBuffer]
	}
	d.Draws = append(d.Draws, dr)
}

func (d *Device) DrawElements(mode gpu.PrimitiveType, count int32, typ gpu.DataType, offset int) {
	d.draw(Draw{Mode: mode, Indexed: true, Count: count, IndexType: typ, Offset: offset})
}

func (d *Device) DrawArrays(mode gpu.PrimitiveType, first, count int32) {
	d.draw(Draw{Mode: mode, First: first, Count: count})
}

func (d *Device) Error() uint32 {
	if len(d.Errors) == 0 {
		return 0
	}
	e := d.Errors[0]
	d.Errors = d.Errors[1:]
	return e
}
