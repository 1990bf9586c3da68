package opengl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// vertex shader: world-space positions, so only view-projection is needed
const vertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;

uniform mat4 viewProj;
uniform mat4 lightViewProj;

out vec3 fragNormal;
out vec4 fragLightSpacePos;

void main() {
    gl_Position       = viewProj * vec4(inPosition, 1.0);
    gl_PointSize      = 4.0;
    fragNormal        = inNormal;
    fragLightSpacePos = lightViewProj * vec4(inPosition, 1.0);
}
` + "\x00"

// fragment shader: ambient + one directional term, PCF shadow lookup
const fragSrc = `
#version 410 core
in vec3 fragNormal;
in vec4 fragLightSpacePos;

uniform vec4  baseColor;
uniform vec3  ambientColor;
uniform vec3  lightDir;
uniform vec3  lightColor;
uniform bool  unlit;

uniform sampler2DShadow shadowMap;
uniform bool            hasShadows;

out vec4 outColor;

float calcShadow() {
    vec3 p = fragLightSpacePos.xyz / fragLightSpacePos.w * 0.5 + 0.5;
    if (p.z > 1.0) return 1.0;
    vec2 ts = 1.0 / vec2(textureSize(shadowMap, 0));
    float shadow = 0.0;
    for (int x = -1; x <= 1; ++x) {
        for (int y = -1; y <= 1; ++y) {
            shadow += texture(shadowMap, vec3(p.xy + vec2(float(x), float(y)) * ts, p.z - 0.002));
        }
    }
    return shadow / 9.0;
}

void main() {
    if (unlit) {
        outColor = baseColor;
        return;
    }
    vec3  N    = normalize(fragNormal);
    float diff = abs(dot(N, -normalize(lightDir)));
    float sf   = hasShadows ? calcShadow() : 1.0;
    vec3  lit  = baseColor.rgb * (ambientColor + sf * diff * lightColor);
    outColor = vec4(lit, baseColor.a);
}
` + "\x00"

// depth-only vertex shader for the shadow map pass
const depthVertSrc = `
#version 410 core
layout(location = 0) in vec3 inPosition;
uniform mat4 lightViewProj;
void main() {
    gl_Position = lightViewProj * vec4(inPosition, 1.0);
}
` + "\x00"

const depthFragSrc = `
#version 410 core
void main() {}
` + "\x00"

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, fmt.Errorf("fragment: %w", err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)
	gl.DeleteShader(vert)
	gl.DeleteShader(frag)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", log)
	}
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return shader, nil
}

func uniform(prog uint32, name string) int32 {
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}
