package metadata

import "github.com/go-gl/mathgl/mgl32"

/** @brief The name of the unit cube mesh every skybox is drawn with. */
const SkyboxMeshName string = "skybox_cube"

var (
	// ColorWhite leaves the texture untinted.
	ColorWhite = mgl32.Vec4{1, 1, 1, 1}
	// ColorPink is the deliberately garish color of the default skybox material.
	ColorPink = mgl32.Vec4{1, 0.08, 0.58, 1}
)

/**
 * @brief Material for a skybox: a base color and an optional 6 layer
 * array texture. The texture color is multiplied by the base color.
 */
type SkyboxMaterial struct {
	/** @brief Base color. Multiplied with the texture color, or used alone without a texture. */
	Color mgl32.Vec4
	/** @brief The cube array texture. Nil for a color only skybox. */
	Cubemap *TextureMap
}

// DefaultSkyboxMaterial is pink without a texture, so a skybox nobody
// configured is hard to miss.
func DefaultSkyboxMaterial() SkyboxMaterial {
	return SkyboxMaterial{Color: ColorPink}
}

// NewSkyboxMaterialFromTexture creates an untinted textured material.
func NewSkyboxMaterialFromTexture(texture TextureHandle) SkyboxMaterial {
	return SkyboxMaterial{
		Color:   ColorWhite,
		Cubemap: NewCubemapTextureMap(texture),
	}
}

// NewSkyboxMaterialFromColor creates a color only material.
func NewSkyboxMaterialFromColor(color mgl32.Vec4) SkyboxMaterial {
	return SkyboxMaterial{Color: color}
}

// IsZero is true for a material that was never set.
func (m SkyboxMaterial) IsZero() bool {
	return m == SkyboxMaterial{}
}

func (m SkyboxMaterial) HasTexture() bool {
	return m.Cubemap != nil && m.Cubemap.Texture.IsValid()
}

/**
 * @brief Everything needed to spawn a skybox. Translation never applies to a
 * skybox, only the rotation is respected.
 */
type SkyboxBundle struct {
	Material SkyboxMaterial
	/** @brief Name of the mesh. Defaults to the unit cube. */
	Mesh string
	/** @brief Can be used to hide the skybox. */
	Visible bool
	/** @brief Orientation of the skybox. */
	Rotation mgl32.Quat
}

// NewSkyboxBundle uses defaults for everything except the material.
func NewSkyboxBundle(material SkyboxMaterial) SkyboxBundle {
	return SkyboxBundle{
		Material: material,
		Mesh:     SkyboxMeshName,
		Visible:  true,
		Rotation: mgl32.QuatIdent(),
	}
}

/** @brief A spawned skybox. */
type Skybox struct {
	ID       uint32
	Bundle   SkyboxBundle
	Geometry *Geometry
	/** @brief Synced to the renderer's current frame number when the skybox has been drawn that frame. */
	RenderFrameNumber uint64
}
