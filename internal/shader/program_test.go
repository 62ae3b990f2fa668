package shader

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-gfx/internal/gpu"
	"mini-gfx/internal/gpu/gputest"
	"mini-gfx/internal/log"
)

const tintVert = `#version 410 core
in vec4 a_position;
in vec2 a_texCoord;
uniform vec4 u_tint;
uniform float u_weights[3];
out vec2 v_texCoord;
out vec4 v_tint;

void main() {
	gl_Position = GFX_MVPMatrix * a_position;
	v_texCoord = a_texCoord;
	v_tint = u_tint * (u_weights[0] + u_weights[1] + u_weights[2]);
}
`

const tintFrag = `in vec2 v_texCoord;
in vec4 v_tint;
out vec4 fragColor;

void main() {
	fragColor = v_tint * texture(GFX_Texture0, v_texCoord) * GFX_Time.y;
}
`

func TestLinkReflectsAttributesAndUniforms(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag, WithLogger(log.Discard()))
	require.NoError(t, err)
	require.NotZero(t, p.Handle())

	pos, ok := p.Attrib(AttribNamePosition)
	require.True(t, ok)
	assert.EqualValues(t, gpu.AttribPosition, pos.Index)
	tc, ok := p.Attrib(AttribNameTexCoord)
	require.True(t, ok)
	assert.EqualValues(t, gpu.AttribTexCoord, tc.Index)
	_, ok = p.Attrib(AttribNameColor)
	assert.False(t, ok, "unused attribute is not active")

	assert.True(t, p.HasUserUniforms())
	assert.Len(t, p.Uniforms(), 2)
	w, ok := p.Uniform("u_weights")
	require.True(t, ok, "array uniforms are keyed without the subscript")
	assert.EqualValues(t, 3, w.Size)
	assert.GreaterOrEqual(t, w.Location, int32(0))

	assert.True(t, p.UsesBuiltin(UniformMVPMatrix))
	assert.True(t, p.UsesBuiltin(UniformTime))
	assert.True(t, p.UsesBuiltin(UniformSampler0))
	assert.False(t, p.UsesBuiltin(UniformPMatrix))
	assert.False(t, p.UsesBuiltin(UniformRandom01))

	// Shader objects are gone once linked.
	assert.Empty(t, dev.Shaders)
}

func TestHeaderFollowsVersion(t *testing.T) {
	version, body := splitVersion("\n#version 330 core\nvoid main() {}\n")
	assert.Equal(t, "#version 330 core\n", version)
	assert.Equal(t, "void main() {}\n", body)

	version, body = splitVersion("void main() {}")
	assert.Equal(t, defaultVersion, version)
	assert.Equal(t, "void main() {}", body)

	h := header(gpu.FragmentShader, []string{"USE_FOG"})
	assert.Contains(t, h, "precision mediump float;")
	assert.Contains(t, h, "#define USE_FOG\n")
	assert.Contains(t, h, "uniform mat4 GFX_MVPMatrix;")
}

func TestSamplersBoundToUnits(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag)
	require.NoError(t, err)

	ups := dev.UploadsOf(p.Handle(), UniformSampler0)
	require.Len(t, ups, 1)
	assert.Equal(t, []int32{0}, ups[0].Ints)
	assert.Empty(t, dev.UploadsOf(p.Handle(), UniformSampler1), "inactive samplers are skipped")
}

func TestUniformCacheSkipsIdenticalUploads(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag)
	require.NoError(t, err)
	p.Use()
	dev.ResetRecords()

	loc := p.UniformLocation("u_tint")
	require.GreaterOrEqual(t, loc, int32(0))

	p.SetUniformVec4(loc, mgl32.Vec4{1, 0, 0, 1})
	p.SetUniformVec4(loc, mgl32.Vec4{1, 0, 0, 1})
	assert.Len(t, dev.UploadsOf(p.Handle(), "u_tint"), 1)

	p.SetUniformVec4(loc, mgl32.Vec4{0, 1, 0, 1})
	ups := dev.UploadsOf(p.Handle(), "u_tint")
	require.Len(t, ups, 2)
	assert.Equal(t, []float32{0, 1, 0, 1}, ups[1].Floats)

	// Invalid locations never reach the device.
	p.SetUniformf(-1, 3)
	assert.Len(t, dev.Uploads, 2)
}

func TestBuiltinsOnlyUploadedWhenUsed(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag)
	require.NoError(t, err)
	dev.ResetRecords()

	proj := mgl32.Ortho(0, 800, 0, 600, -1, 1)
	mv := mgl32.Translate3D(10, 20, 0)
	p.SetUniformsForBuiltins(proj, mv, 2)

	mvp := dev.UploadsOf(p.Handle(), UniformMVPMatrix)
	require.Len(t, mvp, 1)
	want := proj.Mul4(mv)
	assert.Equal(t, want[:], mvp[0].Floats)
	assert.True(t, mvp[0].Matrix)

	tm := dev.UploadsOf(p.Handle(), UniformTime)
	require.Len(t, tm, 1)
	assert.Equal(t, []float32{0.2, 2, 4, 8}, tm[0].Floats)

	assert.Empty(t, dev.UploadsOf(p.Handle(), UniformPMatrix))
	assert.Empty(t, dev.UploadsOf(p.Handle(), UniformMVMatrix))

	// Same transform and time again: nothing to upload.
	p.SetUniformsForBuiltins(proj, mv, 2)
	assert.Len(t, dev.UploadsOf(p.Handle(), UniformMVPMatrix), 1)
}

func TestCompileFailure(t *testing.T) {
	dev := gputest.New()
	_, err := NewWithSources(dev, "#error broken\nvoid main() {}", tintFrag, WithLogger(log.Discard()))
	require.ErrorIs(t, err, ErrCompile)
	assert.Empty(t, dev.Programs)
	assert.Empty(t, dev.Shaders)
}

func TestLinkFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailLink = true
	p := New(dev, WithLogger(log.Discard()))
	require.NoError(t, p.Compile(tintVert, tintFrag))
	err := p.Link()
	require.ErrorIs(t, err, ErrLink)
	assert.Zero(t, p.Handle())
	assert.NotEmpty(t, p.ProgramLog())
	assert.Empty(t, dev.Programs)
}

func TestReloadAfterContextLoss(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag)
	require.NoError(t, err)
	old := p.Handle()
	loc := p.UniformLocation("u_tint")
	p.SetUniformVec4(loc, mgl32.Vec4{1, 1, 1, 1})

	dev.LoseContext()
	require.NoError(t, p.Reload())
	assert.NotEqual(t, old, p.Handle())
	assert.True(t, p.HasUserUniforms())

	// The value cache went with the old program.
	p.Use()
	dev.ResetRecords()
	p.SetUniformVec4(p.UniformLocation("u_tint"), mgl32.Vec4{1, 1, 1, 1})
	assert.Len(t, dev.UploadsOf(p.Handle(), "u_tint"), 1)
}

func TestReleaseTwice(t *testing.T) {
	dev := gputest.New()
	p, err := NewWithSources(dev, tintVert, tintFrag)
	require.NoError(t, err)
	p.Release()
	p.Release()
	assert.Empty(t, dev.Programs)
	assert.Zero(t, p.Handle())
}
