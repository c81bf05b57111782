package renderer

import "github.com/spaghettifunk/skybox/engine/renderer/metadata"

/**
 * @brief The GPU side of the renderer. Implementations own every API specific
 * resource and store their handles in the InternalData of textures and
 * geometries.
 */
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	/** @brief Uploads the pixels and creates a view matching the texture's view descriptor. */
	TextureCreate(texture *metadata.Texture) error
	TextureDestroy(texture *metadata.Texture)
	CreateGeometry(geometry *metadata.Geometry) error
	DestroyGeometry(geometry *metadata.Geometry)
	/** @brief Draws the skybox geometries of a view. Data.Texture is nil for a color only skybox. */
	DrawSkybox(packet *metadata.RenderViewPacket, data *metadata.SkyboxPacketData) error
}
