package shader

// Keys of the programs LoadDefaults puts in a Cache.
const (
	// PositionTextureColorNoMVP draws vertices that are already in world
	// space, as the quad batcher writes them.
	PositionTextureColorNoMVP = "position_texture_color_no_mvp"
	PositionTextureColor      = "position_texture_color"
	PositionColor             = "position_color"
	// PositionUColor takes its color from the u_color uniform.
	PositionUColor = "position_ucolor"
)

var defaultSources = map[string]Source{
	PositionTextureColorNoMVP: {Vertex: positionTextureColorNoMVPVert, Fragment: positionTextureColorFrag},
	PositionTextureColor:      {Vertex: positionTextureColorVert, Fragment: positionTextureColorFrag},
	PositionColor:             {Vertex: positionColorVert, Fragment: colorFrag},
	PositionUColor:            {Vertex: positionUColorVert, Fragment: colorFrag},
}

const positionTextureColorNoMVPVert = `
in vec4 a_position;
in vec4 a_color;
in vec2 a_texCoord;

out vec4 v_color;
out vec2 v_texCoord;

void main() {
	gl_Position = GFX_PMatrix * a_position;
	v_color = a_color;
	v_texCoord = a_texCoord;
}
`

const positionTextureColorVert = `
in vec4 a_position;
in vec4 a_color;
in vec2 a_texCoord;

out vec4 v_color;
out vec2 v_texCoord;

void main() {
	gl_Position = GFX_MVPMatrix * a_position;
	v_color = a_color;
	v_texCoord = a_texCoord;
}
`

const positionTextureColorFrag = `
in vec4 v_color;
in vec2 v_texCoord;

out vec4 fragColor;

void main() {
	fragColor = v_color * texture(GFX_Texture0, v_texCoord);
}
`

const positionColorVert = `
in vec4 a_position;
in vec4 a_color;

out vec4 v_color;

void main() {
	gl_Position = GFX_MVPMatrix * a_position;
	v_color = a_color;
}
`

const positionUColorVert = `
in vec4 a_position;
uniform vec4 u_color;

out vec4 v_color;

void main() {
	gl_Position = GFX_MVPMatrix * a_position;
	v_color = u_color;
}
`

const colorFrag = `
in vec4 v_color;

out vec4 fragColor;

void main() {
	fragColor = v_color;
}
`
