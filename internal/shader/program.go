// Package shader compiles and links GLSL programs, reflects their
// attributes and uniforms and skips redundant uniform uploads.
package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/log"
)

var (
	ErrCompile = errors.New("shader: compile failed")
	ErrLink    = errors.New("shader: link failed")
)

// Attribute names bound to fixed locations before linking.
const (
	AttribNamePosition    = "a_position"
	AttribNameColor       = "a_color"
	AttribNameTexCoord    = "a_texCoord"
	AttribNameNormal      = "a_normal"
	AttribNameBlendWeight = "a_blendWeight"
	AttribNameBlendIndex  = "a_blendIndex"
)

var fixedAttribs = []struct {
	name  string
	index uint32
}{
	{AttribNamePosition, gpu.AttribPosition},
	{AttribNameColor, gpu.AttribColor},
	{AttribNameTexCoord, gpu.AttribTexCoord},
	{AttribNameNormal, gpu.AttribNormal},
	{AttribNameBlendWeight, gpu.AttribBlendWeight},
	{AttribNameBlendIndex, gpu.AttribBlendIndex},
}

// Built-in uniforms, declared in every shader. Uniforms whose names start
// with BuiltinPrefix are not reported as user uniforms.
const (
	BuiltinPrefix = "GFX_"

	UniformPMatrix   = "GFX_PMatrix"
	UniformMVMatrix  = "GFX_MVMatrix"
	UniformMVPMatrix = "GFX_MVPMatrix"
	UniformTime      = "GFX_Time"
	UniformSinTime   = "GFX_SinTime"
	UniformCosTime   = "GFX_CosTime"
	UniformRandom01  = "GFX_Random01"
	UniformSampler0  = "GFX_Texture0"
	UniformSampler1  = "GFX_Texture1"
	UniformSampler2  = "GFX_Texture2"
	UniformSampler3  = "GFX_Texture3"
)

type builtin int

const (
	builtinP builtin = iota
	builtinMV
	builtinMVP
	builtinTime
	builtinSinTime
	builtinCosTime
	builtinRandom
	builtinSampler0
	builtinSampler1
	builtinSampler2
	builtinSampler3
	builtinCount
)

var builtinNames = [builtinCount]string{
	UniformPMatrix, UniformMVMatrix, UniformMVPMatrix,
	UniformTime, UniformSinTime, UniformCosTime, UniformRandom01,
	UniformSampler0, UniformSampler1, UniformSampler2, UniformSampler3,
}

const builtinDecls = `uniform mat4 GFX_PMatrix;
uniform mat4 GFX_MVMatrix;
uniform mat4 GFX_MVPMatrix;
uniform vec4 GFX_Time;
uniform vec4 GFX_SinTime;
uniform vec4 GFX_CosTime;
uniform vec4 GFX_Random01;
uniform sampler2D GFX_Texture0;
uniform sampler2D GFX_Texture1;
uniform sampler2D GFX_Texture2;
uniform sampler2D GFX_Texture3;
`

const defaultVersion = "#version 410 core\n"

type Attribute struct {
	Name  string
	Index int32
	Size  int32
	Type  uint32
}

type Uniform struct {
	Name     string
	Location int32
	Size     int32
	Type     uint32
}

// Source is the GLSL a program is built from. Sources omit the built-in
// declarations; a #version line is optional.
type Source struct {
	Vertex   string
	Fragment string
	Defines  []string
}

// Program is a linked vertex+fragment program.
type Program struct {
	dev gpu.Device
	lg  *log.Logger
	src Source

	handle gpu.Handle
	vert   gpu.Handle
	frag   gpu.Handle

	attribs  map[string]Attribute
	uniforms map[string]Uniform
	builtins [builtinCount]int32
	cache    uniformCache

	vertLog, fragLog, progLog string
}

type Option func(*Program)

func WithLogger(lg *log.Logger) Option {
	return func(p *Program) { p.lg = lg }
}

// WithDefines adds a #define line per entry to both shaders.
func WithDefines(defines ...string) Option {
	return func(p *Program) { p.src.Defines = append(p.src.Defines, defines...) }
}

// New returns a program with nothing compiled.
func New(dev gpu.Device, opts ...Option) *Program {
	p := &Program{dev: dev}
	for _, opt := range opts {
		opt(p)
	}
	p.clearReflection()
	return p
}

// NewWithSources compiles, links and locates the built-in uniforms.
func NewWithSources(dev gpu.Device, vertex, fragment string, opts ...Option) (*Program, error) {
	p := New(dev, opts...)
	if err := p.Compile(vertex, fragment); err != nil {
		return nil, err
	}
	if err := p.Link(); err != nil {
		return nil, err
	}
	p.UpdateUniforms()
	return p, nil
}

// NewFromFiles reads the two shader files and calls NewWithSources.
func NewFromFiles(dev gpu.Device, vertexPath, fragmentPath string, opts ...Option) (*Program, error) {
	vertexSource, err := os.ReadFile(vertexPath)
	if err != nil {
		return nil, fmt.Errorf("could not read vertex shader file: %w", err)
	}
	fragmentSource, err := os.ReadFile(fragmentPath)
	if err != nil {
		return nil, fmt.Errorf("could not read fragment shader file: %w", err)
	}
	return NewWithSources(dev, string(vertexSource), string(fragmentSource), opts...)
}

func (p *Program) clearReflection() {
	p.attribs = make(map[string]Attribute)
	p.uniforms = make(map[string]Uniform)
	p.cache = make(uniformCache)
	for i := range p.builtins {
		p.builtins[i] = -1
	}
}

// Compile compiles both stages and attaches them to a new program object.
// Linking is left to Link.
func (p *Program) Compile(vertex, fragment string) error {
	p.src.Vertex, p.src.Fragment = vertex, fragment
	p.handle = p.dev.CreateProgram()

	var err error
	p.vert, p.vertLog, err = p.compileShader(gpu.VertexShader, vertex)
	if err != nil {
		p.Release()
		return err
	}
	p.frag, p.fragLog, err = p.compileShader(gpu.FragmentShader, fragment)
	if err != nil {
		p.Release()
		return err
	}
	p.dev.AttachShader(p.handle, p.vert)
	p.dev.AttachShader(p.handle, p.frag)
	return nil
}

func (p *Program) compileShader(stage gpu.ShaderStage, source string) (gpu.Handle, string, error) {
	version, body := splitVersion(source)
	sh := p.dev.CreateShader(stage)
	p.dev.ShaderSource(sh, version, header(stage, p.src.Defines), body)
	ok := p.dev.CompileShader(sh)
	info := p.dev.ShaderInfoLog(sh)
	if !ok {
		p.lg.Error("shader compile failed", slog.String("stage", stageName(stage)),
			slog.String("source", p.dev.ShaderSourceText(sh)), slog.String("log", info))
		p.dev.DeleteShader(sh)
		return 0, info, fmt.Errorf("%s shader: %w: %s", stageName(stage), ErrCompile, info)
	}
	return sh, info, nil
}

func header(stage gpu.ShaderStage, defines []string) string {
	var b strings.Builder
	if stage == gpu.VertexShader {
		b.WriteString("precision highp float;\n")
	} else {
		b.WriteString("precision mediump float;\n")
	}
	for _, d := range defines {
		fmt.Fprintf(&b, "#define %s\n", d)
	}
	b.WriteString(builtinDecls)
	return b.String()
}

// splitVersion separates a leading #version line, which must stay first.
func splitVersion(src string) (version, body string) {
	trimmed := strings.TrimLeft(src, " \t\r\n")
	if !strings.HasPrefix(trimmed, "#version") {
		return defaultVersion, src
	}
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		return trimmed[:i+1], trimmed[i+1:]
	}
	return trimmed + "\n", ""
}

func stageName(s gpu.ShaderStage) string {
	if s == gpu.FragmentShader {
		return "fragment"
	}
	return "vertex"
}

// Link binds the fixed attribute locations, links and reflects the active
// attributes and user uniforms. The shader objects are deleted either way;
// on failure so is the program.
func (p *Program) Link() error {
	if p.handle == 0 {
		return fmt.Errorf("%w: nothing compiled", ErrLink)
	}
	for _, a := range fixedAttribs {
		p.dev.BindAttribLocation(p.handle, a.index, a.name)
	}
	ok := p.dev.LinkProgram(p.handle)
	p.progLog = p.dev.ProgramInfoLog(p.handle)

	p.deleteShaders()
	if !ok {
		p.lg.Error("program link failed", slog.Uint64("program", uint64(p.handle)), slog.String("log", p.progLog))
		p.dev.DeleteProgram(p.handle)
		p.handle = 0
		return fmt.Errorf("%w: %s", ErrLink, p.progLog)
	}

	p.clearReflection()
	p.parseAttributes()
	p.parseUniforms()
	return nil
}

func (p *Program) deleteShaders() {
	if p.vert != 0 {
		p.dev.DeleteShader(p.vert)
		p.vert = 0
	}
	if p.frag != 0 {
		p.dev.DeleteShader(p.frag)
		p.frag = 0
	}
}

func (p *Program) parseAttributes() {
	for _, v := range p.dev.ActiveAttributes(p.handle) {
		p.attribs[v.Name] = Attribute{
			Name:  v.Name,
			Index: p.dev.AttribLocation(p.handle, v.Name),
			Size:  v.Size,
			Type:  v.Type,
		}
	}
}

func (p *Program) parseUniforms() {
	for _, v := range p.dev.ActiveUniforms(p.handle) {
		if strings.HasPrefix(v.Name, BuiltinPrefix) {
			continue
		}
		name := v.Name
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		p.uniforms[name] = Uniform{
			Name:     name,
			Location: p.dev.UniformLocation(p.handle, name),
			Size:     v.Size,
			Type:     v.Type,
		}
	}
}

// UpdateUniforms looks up the built-in uniforms and points the sampler
// uniforms at texture units 0..3. Call it once after Link.
func (p *Program) UpdateUniforms() {
	if p.handle == 0 {
		return
	}
	for i, name := range builtinNames {
		p.builtins[i] = p.dev.UniformLocation(p.handle, name)
	}
	p.Use()
	for i := builtinSampler0; i <= builtinSampler3; i++ {
		p.SetUniformi(p.builtins[i], int32(i-builtinSampler0))
	}
}

func (p *Program) Use() {
	p.dev.UseProgram(p.handle)
}

// Handle returns the native program, zero if not linked.
func (p *Program) Handle() gpu.Handle { return p.handle }

func (p *Program) Attrib(name string) (Attribute, bool) {
	a, ok := p.attribs[name]
	return a, ok
}

func (p *Program) Attribs() map[string]Attribute { return p.attribs }

// Uniform looks up a user uniform. Arrays are keyed without "[0]".
func (p *Program) Uniform(name string) (Uniform, bool) {
	u, ok := p.uniforms[name]
	return u, ok
}

func (p *Program) Uniforms() map[string]Uniform { return p.uniforms }

// HasUserUniforms reports whether the program declares active uniforms
// other than the built-ins. Such programs carry per-draw state, so quads
// drawn with them are not batched.
func (p *Program) HasUserUniforms() bool { return len(p.uniforms) > 0 }

// UniformLocation returns the location of a user or built-in uniform, or
// -1.
func (p *Program) UniformLocation(name string) int32 {
	if u, ok := p.uniforms[name]; ok {
		return u.Location
	}
	for i, n := range builtinNames {
		if n == name {
			return p.builtins[i]
		}
	}
	if p.handle == 0 {
		return -1
	}
	return p.dev.UniformLocation(p.handle, name)
}

// UsesBuiltin reports whether the linked program reads the named built-in.
func (p *Program) UsesBuiltin(name string) bool {
	for i, n := range builtinNames {
		if n == name {
			return p.builtins[i] >= 0
		}
	}
	return false
}

// Uniform uploads. Each one is skipped when the location is invalid or the
// value matches the last one uploaded to it.

func (p *Program) SetUniformi(loc int32, v ...int32) {
	p.SetUniformiv(loc, len(v), v)
}

func (p *Program) SetUniformiv(loc int32, components int, v []int32) {
	if loc < 0 || components < 1 || components > 4 || len(v) == 0 {
		return
	}
	if p.cache.update(loc, gpu.AsBytes(v)) {
		p.dev.Uniformiv(loc, components, v)
	}
}

func (p *Program) SetUniformf(loc int32, v ...float32) {
	p.SetUniformfv(loc, len(v), v)
}

func (p *Program) SetUniformfv(loc int32, components int, v []float32) {
	if loc < 0 || components < 1 || components > 4 || len(v) == 0 {
		return
	}
	if p.cache.update(loc, gpu.AsBytes(v)) {
		p.dev.Uniformfv(loc, components, v)
	}
}

func (p *Program) SetUniformVec2(loc int32, v mgl32.Vec2) { p.SetUniformfv(loc, 2, v[:]) }

func (p *Program) SetUniformVec3(loc int32, v mgl32.Vec3) { p.SetUniformfv(loc, 3, v[:]) }

func (p *Program) SetUniformVec4(loc int32, v mgl32.Vec4) { p.SetUniformfv(loc, 4, v[:]) }

func (p *Program) SetUniformMat2(loc int32, m ...mgl32.Mat2) {
	p.setMatrix(loc, 2, gpu.AsBytes(m), func() []float32 { return flatten(m) })
}

func (p *Program) SetUniformMat3(loc int32, m ...mgl32.Mat3) {
	p.setMatrix(loc, 3, gpu.AsBytes(m), func() []float32 { return flatten(m) })
}

func (p *Program) SetUniformMat4(loc int32, m ...mgl32.Mat4) {
	p.setMatrix(loc, 4, gpu.AsBytes(m), func() []float32 { return flatten(m) })
}

func (p *Program) setMatrix(loc int32, dim int, raw []byte, values func() []float32) {
	if loc < 0 || len(raw) == 0 {
		return
	}
	if p.cache.update(loc, raw) {
		p.dev.UniformMatrixfv(loc, dim, values())
	}
}

func flatten[M mgl32.Mat2 | mgl32.Mat3 | mgl32.Mat4](ms []M) []float32 {
	var out []float32
	for _, m := range ms {
		switch m := any(m).(type) {
		case mgl32.Mat2:
			out = append(out, m[:]...)
		case mgl32.Mat3:
			out = append(out, m[:]...)
		case mgl32.Mat4:
			out = append(out, m[:]...)
		}
	}
	return out
}

// SetUniformsForBuiltins refreshes the built-in uniforms the program
// reads. elapsed is the time in seconds since the renderer started.
func (p *Program) SetUniformsForBuiltins(projection, modelView mgl32.Mat4, elapsed float32) {
	if loc := p.builtins[builtinP]; loc >= 0 {
		p.SetUniformMat4(loc, projection)
	}
	if loc := p.builtins[builtinMV]; loc >= 0 {
		p.SetUniformMat4(loc, modelView)
	}
	if loc := p.builtins[builtinMVP]; loc >= 0 {
		p.SetUniformMat4(loc, projection.Mul4(modelView))
	}
	if loc := p.builtins[builtinTime]; loc >= 0 {
		p.SetUniformf(loc, elapsed/10, elapsed, elapsed*2, elapsed*4)
	}
	if loc := p.builtins[builtinSinTime]; loc >= 0 {
		p.SetUniformf(loc, sin(elapsed/8), sin(elapsed/4), sin(elapsed/2), sin(elapsed))
	}
	if loc := p.builtins[builtinCosTime]; loc >= 0 {
		p.SetUniformf(loc, cos(elapsed/8), cos(elapsed/4), cos(elapsed/2), cos(elapsed))
	}
	if loc := p.builtins[builtinRandom]; loc >= 0 {
		p.SetUniformf(loc, rand.Float32(), rand.Float32(), rand.Float32(), rand.Float32())
	}
}

func sin(x float32) float32 { return float32(math.Sin(float64(x))) }
func cos(x float32) float32 { return float32(math.Cos(float64(x))) }

func (p *Program) VertexShaderLog() string { return p.vertLog }

func (p *Program) FragmentShaderLog() string { return p.fragLog }

func (p *Program) ProgramLog() string { return p.progLog }

func (p *Program) String() string {
	return fmt.Sprintf("<Program handle=%d attribs=%d uniforms=%d>", p.handle, len(p.attribs), len(p.uniforms))
}

// Release deletes the native objects. It is safe to call more than once.
func (p *Program) Release() {
	p.deleteShaders()
	if p.handle != 0 {
		p.dev.DeleteProgram(p.handle)
		p.handle = 0
	}
	p.clearReflection()
}

// Reset forgets native objects that died with the graphics context without
// deleting them.
func (p *Program) Reset() {
	p.handle, p.vert, p.frag = 0, 0, 0
	p.clearReflection()
}

// Reload rebuilds the program from its sources in the current context.
func (p *Program) Reload() error {
	p.Reset()
	if err := p.Compile(p.src.Vertex, p.src.Fragment); err != nil {
		return err
	}
	if err := p.Link(); err != nil {
		return err
	}
	p.UpdateUniforms()
	return nil
}
