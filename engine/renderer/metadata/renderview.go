package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief The built in views. */
type RenderViewKnownType int

const (
	/** @brief A view which only renders the skybox. */
	RENDERER_VIEW_KNOWN_TYPE_SKYBOX RenderViewKnownType = 0x01
)

/** @brief The configuration of a render view. */
type RenderViewConfig struct {
	/** @brief The Name of the view. */
	Name string
	/** @brief The name of a custom shader to be used instead of the view's default. */
	CustomShaderName string
	/** @brief The Width of the view. Set to 0 for 100% Width. */
	Width uint32
	/** @brief The Height of the view. Set to 0 for 100% Height. */
	Height uint32
	/** @brief The known type of the view. Used to associate with view logic. */
	Type RenderViewKnownType
	/** @brief Vertical field of view in degrees. */
	FOV float32
	NearClip float32
	FarClip  float32
	CullMode FaceCullMode
}
