package renderer

import (
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

type headlessTexture struct {
	layers    uint32
	dimension gputypes.TextureViewDimension
}

// HeadlessStats counts what a HeadlessBackend was asked to do.
type HeadlessStats struct {
	Frames          uint64
	TextureUploads  uint64
	TexturedSkybox  uint64
	ColorOnlySkybox uint64
	Width           uint32
	Height          uint32

	// uniforms of the last skybox geometry drawn
	Uniforms metadata.SkyboxUniforms
}

/**
 * @brief A backend without a GPU. It validates what it is given and keeps
 * counters, which is all the engine needs to run its update loop and tests.
 */
type HeadlessBackend struct {
	mutex      sync.Mutex
	inFrame    bool
	textures   map[*metadata.Texture]headlessTexture
	geometries map[*metadata.Geometry]struct{}
	stats      HeadlessStats
}

func NewHeadlessBackend() *HeadlessBackend {
	return &HeadlessBackend{
		textures:   make(map[*metadata.Texture]headlessTexture),
		geometries: make(map[*metadata.Geometry]struct{}),
	}
}

func (hb *HeadlessBackend) Initialize(appName string, appWidth, appHeight uint32) error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	hb.stats.Width = appWidth
	hb.stats.Height = appHeight
	core.LogInfo("headless renderer initialized for '%s' (%dx%d)", appName, appWidth, appHeight)
	return nil
}

func (hb *HeadlessBackend) Shutdown() error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	hb.textures = make(map[*metadata.Texture]headlessTexture)
	hb.geometries = make(map[*metadata.Geometry]struct{})
	return nil
}

func (hb *HeadlessBackend) Resized(width, height uint32) error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	hb.stats.Width = width
	hb.stats.Height = height
	return nil
}

func (hb *HeadlessBackend) BeginFrame(deltaTime float64) error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	if hb.inFrame {
		return core.Wrapf(core.ErrUnknown, "BeginFrame called twice without EndFrame")
	}
	hb.inFrame = true
	return nil
}

func (hb *HeadlessBackend) EndFrame(deltaTime float64) error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	if !hb.inFrame {
		return core.Wrapf(core.ErrUnknown, "EndFrame called without BeginFrame")
	}
	hb.inFrame = false
	hb.stats.Frames++
	return nil
}

func (hb *HeadlessBackend) TextureCreate(texture *metadata.Texture) error {
	if len(texture.Pixels) != texture.ByteSize() {
		return core.Wrapf(core.ErrInvalidDimensions, "texture '%s' has %d bytes of pixels, expected %d",
			texture.Name, len(texture.Pixels), texture.ByteSize())
	}
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	hb.textures[texture] = headlessTexture{
		layers:    texture.LayerCount(),
		dimension: texture.ViewDimension(),
	}
	hb.stats.TextureUploads++
	return nil
}

func (hb *HeadlessBackend) TextureDestroy(texture *metadata.Texture) {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	delete(hb.textures, texture)
}

func (hb *HeadlessBackend) CreateGeometry(geometry *metadata.Geometry) error {
	for _, index := range geometry.Indices {
		if int(index) >= len(geometry.Vertices) {
			return core.Wrapf(core.ErrInvalidHandle, "geometry '%s' indexes vertex %d of %d", geometry.Name, index, len(geometry.Vertices))
		}
	}
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	hb.geometries[geometry] = struct{}{}
	return nil
}

func (hb *HeadlessBackend) DestroyGeometry(geometry *metadata.Geometry) {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	delete(hb.geometries, geometry)
}

func (hb *HeadlessBackend) DrawSkybox(packet *metadata.RenderViewPacket, data *metadata.SkyboxPacketData) error {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	if !hb.inFrame {
		return core.Wrapf(core.ErrUnknown, "DrawSkybox called outside of a frame")
	}
	for _, g := range packet.Geometries {
		if _, ok := hb.geometries[g.Geometry]; !ok {
			return core.Wrapf(core.ErrInvalidHandle, "geometry '%s' was never created", g.Geometry.Name)
		}
	}
	for _, g := range packet.Geometries {
		hb.stats.Uniforms = metadata.NewSkyboxUniforms(packet, g, data)
	}
	if data.Texture == nil {
		hb.stats.ColorOnlySkybox++
		return nil
	}
	uploaded, ok := hb.textures[data.Texture]
	if !ok {
		return core.Wrapf(core.ErrTextureNotFound, "texture '%s' was never uploaded", data.Texture.Name)
	}
	if uploaded.layers != metadata.SkyboxLayerCount ||
		(uploaded.dimension != gputypes.TextureViewDimensionCube && uploaded.dimension != gputypes.TextureViewDimensionCubeArray) {
		return core.Wrapf(core.ErrInvalidDimensions, "texture '%s' is not a cube (%d layers)", data.Texture.Name, uploaded.layers)
	}
	hb.stats.TexturedSkybox++
	return nil
}

func (hb *HeadlessBackend) Stats() HeadlessStats {
	hb.mutex.Lock()
	defer hb.mutex.Unlock()
	return hb.stats
}
