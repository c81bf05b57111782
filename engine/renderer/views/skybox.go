package views

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/math"
	"github.com/spaghettifunk/skybox/engine/renderer/components"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

const (
	defaultFOV      float32 = 45.0
	defaultNearClip float32 = 0.1
	defaultFarClip  float32 = 1000.0
)

type RenderViewSkybox struct {
	Name             string
	FOV              float32
	NearClip         float32
	FarClip          float32
	CullMode         metadata.FaceCullMode
	ProjectionMatrix mgl32.Mat4
	WorldCamera      *components.Camera
	// Shader
	Shader *metadata.Shader
}

func NewRenderViewSkybox(config *metadata.RenderViewConfig, shader *metadata.Shader, camera *components.Camera) *RenderViewSkybox {
	vs := &RenderViewSkybox{
		Name:        config.Name,
		FOV:         math.DegToRad(defaultFOV),
		NearClip:    defaultNearClip,
		FarClip:     defaultFarClip,
		CullMode:    config.CullMode,
		Shader:      shader,
		WorldCamera: camera,
	}
	if config.FOV > 0 {
		vs.FOV = math.DegToRad(config.FOV)
	}
	if config.NearClip > 0 {
		vs.NearClip = config.NearClip
	}
	if config.FarClip > vs.NearClip {
		vs.FarClip = config.FarClip
	}
	width, height := config.Width, config.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}
	vs.OnResize(width, height)
	return vs
}

func (vs *RenderViewSkybox) OnResize(width, height uint32) {
	if width == 0 || height == 0 {
		// Minimized, keep the last projection.
		return
	}
	aspect := float32(width) / float32(height)
	vs.ProjectionMatrix = mgl32.Perspective(vs.FOV, aspect, vs.NearClip, vs.FarClip)
}

/**
 * @brief Builds the packet drawing a single skybox. The camera translation is
 * removed from the view matrix so the skybox always surrounds the viewer.
 * @param skybox The skybox to draw.
 * @param texture The converted cube texture or nil. A texture that is not a
 * cube yet is never bound.
 */
func (vs *RenderViewSkybox) BuildPacket(skybox *metadata.Skybox, texture *metadata.Texture) (*metadata.RenderViewPacket, error) {
	if skybox == nil || skybox.Geometry == nil {
		return nil, core.Wrapf(core.ErrInvalidHandle, "skybox view '%s' requires a spawned skybox", vs.Name)
	}
	if texture != nil && !texture.IsCube() {
		texture = nil
	}

	view := vs.WorldCamera.GetView()
	view.SetCol(3, mgl32.Vec4{0, 0, 0, 1})

	return &metadata.RenderViewPacket{
		ViewName:         vs.Name,
		ViewMatrix:       view,
		ProjectionMatrix: vs.ProjectionMatrix,
		ViewPosition:     vs.WorldCamera.GetPosition(),
		CustomShaderName: vs.Shader.Name,
		Geometries: []*metadata.GeometryRenderData{{
			Model:    skybox.Bundle.Rotation.Normalize().Mat4(),
			Geometry: skybox.Geometry,
		}},
		ExtendedData: &metadata.SkyboxPacketData{
			Skybox:  skybox,
			Texture: texture,
			Color:   skybox.Bundle.Material.Color,
		},
	}, nil
}
