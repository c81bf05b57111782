package metadata

import (
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/spaghettifunk/skybox/engine/core"
)

/** @brief The number of layers of a skybox array texture. */
const SkyboxLayerCount uint32 = 6

/**
 * @brief An opaque reference to a texture owned by the texture system.
 * Handles are comparable and cheap to copy. A handle never keeps the
 * texture alive; it may resolve to nothing once the texture is unloaded.
 */
type TextureHandle struct {
	id uuid.UUID
}

// NewTextureHandle returns a fresh handle that does not compare equal to any other.
func NewTextureHandle() TextureHandle {
	return TextureHandle{id: uuid.New()}
}

// IsValid is false for the zero handle.
func (h TextureHandle) IsValid() bool {
	return h.id != uuid.Nil
}

func (h TextureHandle) String() string {
	if !h.IsValid() {
		return "texture(invalid)"
	}
	return "texture(" + h.id.String() + ")"
}

/**
 * @brief The faces of a cube texture, in the layer order used for
 * rendering. A stacked skybox image lists them top to bottom.
 */
type CubeFace uint32

const (
	CubeFaceRight  CubeFace = iota // +X
	CubeFaceLeft                   // -X
	CubeFaceTop                    // +Y
	CubeFaceBottom                 // -Y
	CubeFaceBack                   // +Z
	CubeFaceFront                  // -Z
)

func (f CubeFace) String() string {
	switch f {
	case CubeFaceRight:
		return "right (+X)"
	case CubeFaceLeft:
		return "left (-X)"
	case CubeFaceTop:
		return "top (+Y)"
	case CubeFaceBottom:
		return "bottom (-Y)"
	case CubeFaceBack:
		return "back (+Z)"
	case CubeFaceFront:
		return "front (-Z)"
	default:
		return "unknown"
	}
}

type TextureFlag int

const (
	/** @brief Indicates if the texture has transparency. */
	TextureFlagHasTransparency TextureFlag = 0x1
)

/** @brief Holds bit flags for textures.. */
type TextureFlagBits uint8

/**
 * @brief Represents various types of textures.
 */
type TextureType int

const (
	/** @brief A standard two-dimensional texture. */
	TextureType2d TextureType = iota
	/** @brief A cube texture, used for cubemaps. */
	TextureTypeCube
)

/**
 * @brief Describes how the GPU should interpret the texture dimensionality.
 * A nil descriptor on a texture means the default flat 2D view.
 */
type TextureViewDescriptor struct {
	Dimension       gputypes.TextureViewDimension
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

/**
 * @brief Represents a texture.
 */
type Texture struct {
	/** @brief The texture Name. */
	Name string
	/** @brief The texture type. */
	TextureType TextureType
	/** @brief Width and Height of a single layer, and the number of layers. */
	Size gputypes.Extent3D
	/** @brief The dimension of the backing GPU resource. */
	Dimension gputypes.TextureDimension
	/** @brief The pixel format of Pixels. */
	Format gputypes.TextureFormat
	/** @brief The number of channels in the texture. */
	ChannelCount uint8
	/** @brief Holds various Flags for this texture. */
	Flags TextureFlagBits
	/** @brief The texture Generation. Incremented every time the data is reloaded. */
	Generation uint32
	/** @brief The raw texture data (pixels), layers stored one after another. */
	Pixels []uint8
	/** @brief How the texture is viewed. Nil means the default 2D view. */
	ViewDescriptor *TextureViewDescriptor
	/** @brief A pointer to internal, render API-specific data. */
	InternalData interface{}
}

// NewTexture2D wraps an RGBA8 pixel buffer as a flat single layer texture.
func NewTexture2D(name string, width, height uint32, pixels []uint8) *Texture {
	return &Texture{
		Name:        name,
		TextureType: TextureType2d,
		Size: gputypes.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Dimension:    gputypes.TextureDimension2D,
		Format:       gputypes.TextureFormatRGBA8Unorm,
		ChannelCount: 4,
		Pixels:       pixels,
	}
}

// LayerCount returns the number of array layers, treating an unset depth as one.
func (t *Texture) LayerCount() uint32 {
	if t.Size.DepthOrArrayLayers == 0 {
		return 1
	}
	return t.Size.DepthOrArrayLayers
}

// LayerSize returns the size in bytes of a single layer.
func (t *Texture) LayerSize() int {
	return int(t.Size.Width) * int(t.Size.Height) * int(t.ChannelCount)
}

// ByteSize returns the expected size in bytes of the whole pixel buffer.
func (t *Texture) ByteSize() int {
	return t.LayerSize() * int(t.LayerCount())
}

// Layer returns the pixels of the given layer. It shares memory with Pixels.
func (t *Texture) Layer(layer uint32) []uint8 {
	if layer >= t.LayerCount() || len(t.Pixels) < t.ByteSize() {
		return nil
	}
	size := t.LayerSize()
	start := int(layer) * size
	return t.Pixels[start : start+size : start+size]
}

// ViewDimension returns the dimension the texture is viewed with.
func (t *Texture) ViewDimension() gputypes.TextureViewDimension {
	if t.ViewDescriptor == nil {
		return gputypes.TextureViewDimensionUndefined
	}
	return t.ViewDescriptor.Dimension
}

// IsCube reports whether the texture is already laid out and viewed as a skybox cube.
func (t *Texture) IsCube() bool {
	dim := t.ViewDimension()
	isCubeView := dim == gputypes.TextureViewDimensionCube || dim == gputypes.TextureViewDimensionCubeArray
	return isCubeView && t.LayerCount() == SkyboxLayerCount
}

// ValidateStackedCube checks that the texture is a single layer N x 6N image
// whose pixel buffer matches its declared size.
func (t *Texture) ValidateStackedCube() error {
	if t.LayerCount() != 1 {
		return core.Wrapf(core.ErrAlreadyArray, "texture %q has %d layers", t.Name, t.LayerCount())
	}
	if t.Size.Width == 0 || t.Size.Height != SkyboxLayerCount*t.Size.Width {
		return core.Wrapf(core.ErrInvalidDimensions, "texture %q is %dx%d, expected height to be 6x width",
			t.Name, t.Size.Width, t.Size.Height)
	}
	if len(t.Pixels) != t.ByteSize() {
		return core.Wrapf(core.ErrInvalidDimensions, "texture %q has %d bytes of pixels, expected %d",
			t.Name, len(t.Pixels), t.ByteSize())
	}
	return nil
}

/**
 * @brief Reinterprets a single layer image made of equally sized images stacked
 * on top of each other as an array texture with that many layers. Pixels are
 * neither copied nor resampled.
 */
func (t *Texture) ReinterpretStacked2DAsArray(layers uint32) error {
	if layers == 0 {
		return core.Wrapf(core.ErrInvalidLayerCount, "cannot reinterpret texture %q with 0 layers", t.Name)
	}
	if t.Dimension == gputypes.TextureDimension1D || t.Dimension == gputypes.TextureDimension3D {
		return core.Wrapf(core.ErrInvalidDimensions, "texture %q is not two dimensional", t.Name)
	}
	if t.LayerCount() != 1 {
		return core.Wrapf(core.ErrAlreadyArray, "texture %q already has %d layers", t.Name, t.LayerCount())
	}
	if t.Size.Height%layers != 0 {
		return core.Wrapf(core.ErrInvalidDimensions, "texture %q height %d is not a multiple of %d",
			t.Name, t.Size.Height, layers)
	}

	t.Size.Height /= layers
	t.Size.DepthOrArrayLayers = layers
	return nil
}

// SetViewDimension replaces the view descriptor so that it covers every layer.
func (t *Texture) SetViewDimension(dimension gputypes.TextureViewDimension) {
	if t.ViewDescriptor == nil {
		t.ViewDescriptor = &TextureViewDescriptor{}
	}
	t.ViewDescriptor.Dimension = dimension
	t.ViewDescriptor.BaseArrayLayer = 0
	t.ViewDescriptor.ArrayLayerCount = t.LayerCount()
}

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
	TextureRepeatClampToBorder  TextureRepeat = 0x4
)

/**
 * @brief A structure which maps a texture, use and
 * other properties.
 */
type TextureMap struct {
	/** @brief The handle of the mapped texture. */
	Texture TextureHandle
	/** @brief Texture filtering mode for minification. */
	FilterMinify TextureFilter
	/** @brief Texture filtering mode for magnification. */
	FilterMagnify TextureFilter
	/** @brief The repeat mode on the U axis (or X, or S) */
	RepeatU TextureRepeat
	/** @brief The repeat mode on the V axis (or Y, or T) */
	RepeatV TextureRepeat
	/** @brief The repeat mode on the W axis (or Z, or U) */
	RepeatW TextureRepeat
}

// NewCubemapTextureMap returns the sampler settings used for skyboxes.
func NewCubemapTextureMap(handle TextureHandle) *TextureMap {
	return &TextureMap{
		Texture:       handle,
		FilterMinify:  TextureFilterModeLinear,
		FilterMagnify: TextureFilterModeLinear,
		RepeatU:       TextureRepeatClampToEdge,
		RepeatV:       TextureRepeatClampToEdge,
		RepeatW:       TextureRepeatClampToEdge,
	}
}
