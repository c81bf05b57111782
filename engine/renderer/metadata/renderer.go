package metadata

import "github.com/go-gl/mathgl/mgl32"

/** @brief Everything the renderer needs to draw a frame. */
type RenderPacket struct {
	DeltaTime   float64
	FrameNumber uint64
	Views       []*RenderViewPacket
}

type RenderViewPacket struct {
	/** @brief The name of the view this packet is associated with. */
	ViewName string
	/** @brief The current view matrix. */
	ViewMatrix mgl32.Mat4
	/** @brief The current projection matrix. */
	ProjectionMatrix mgl32.Mat4
	/** @brief The current view position, if applicable. */
	ViewPosition mgl32.Vec3
	/** @brief The Geometries to be drawn. */
	Geometries []*GeometryRenderData
	/** @brief The name of the custom shader to use, if applicable. */
	CustomShaderName string
	/** @brief Holds freeform data, typically understood both by the object and consuming view. */
	ExtendedData interface{}
}

type GeometryRenderData struct {
	Model    mgl32.Mat4
	Geometry *Geometry
}

type SkyboxPacketData struct {
	Skybox *Skybox
	/** @brief The converted cube texture, nil while it is still pending. */
	Texture *Texture
	/** @brief The final tint. */
	Color mgl32.Vec4
}

/**
 * @brief The uniform block of the skybox shader, in declaration order.
 * Model only ever holds the skybox rotation.
 */
type SkyboxUniforms struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	Model      mgl32.Mat4
	Color      mgl32.Vec4
}

// NewSkyboxUniforms fills the uniform block for one geometry of a skybox packet.
func NewSkyboxUniforms(packet *RenderViewPacket, geometry *GeometryRenderData, data *SkyboxPacketData) SkyboxUniforms {
	return SkyboxUniforms{
		Projection: packet.ProjectionMatrix,
		View:       packet.ViewMatrix,
		Model:      geometry.Model,
		Color:      data.Color,
	}
}
