package systems

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

type uploadedTexture struct {
	texture    *metadata.Texture
	generation uint32
	dimension  gputypes.TextureViewDimension
}

type RendererSystemConfig struct {
	AppName string
	Width   uint32
	Height  uint32
	// Frames to wait after the last resize event before resizing the backend.
	ResizeSettleFrames uint8
}

type RendererSystem struct {
	backend renderer.RendererBackend
	config  *RendererSystemConfig

	// uploaded textures by name, so that a reloaded texture replaces its predecessor
	textures   map[string]uploadedTexture
	geometries map[*metadata.Geometry]struct{}

	FrameNumber uint64
	// The current window framebuffer width.
	FramebufferWidth uint32
	// The current window framebuffer height.
	FramebufferHeight uint32
	// Indicates if the window is currently being resized.
	Resizing bool
	// The current number of frames since the last resize operation.
	// Only set if resizing = true. Otherwise 0.
	FramesSinceResize uint8
}

func NewRendererSystem(config *RendererSystemConfig, backend renderer.RendererBackend) (*RendererSystem, error) {
	if backend == nil {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewRendererSystem - a backend is required")
		core.LogError("%s", err)
		return nil, err
	}
	if config.Width == 0 || config.Height == 0 {
		config.Width, config.Height = 1280, 720
	}
	r := &RendererSystem{
		backend:           backend,
		config:            config,
		textures:          make(map[string]uploadedTexture),
		geometries:        make(map[*metadata.Geometry]struct{}),
		FramebufferWidth:  config.Width,
		FramebufferHeight: config.Height,
	}
	if err := backend.Initialize(config.AppName, config.Width, config.Height); err != nil {
		core.LogError("failed to initialize the renderer backend: %s", err)
		return nil, err
	}
	return r, nil
}

func (r *RendererSystem) Shutdown() error {
	for name, uploaded := range r.textures {
		r.backend.TextureDestroy(uploaded.texture)
		delete(r.textures, name)
	}
	for geometry := range r.geometries {
		r.backend.DestroyGeometry(geometry)
		delete(r.geometries, geometry)
	}
	return r.backend.Shutdown()
}

func (r *RendererSystem) OnResize(width, height uint32) {
	// Flag as resizing and store the change, but wait to regenerate.
	r.Resizing = true
	r.FramebufferWidth = width
	r.FramebufferHeight = height
	// Also reset the frame count since the last resize operation.
	r.FramesSinceResize = 0
}

/**
 * @brief Draws every view of the packet. Textures are uploaded lazily and
 * uploaded again whenever their generation or view dimension changes.
 * @returns An error if the backend could not begin or end the frame.
 */
func (r *RendererSystem) DrawFrame(packet *metadata.RenderPacket, renderViewSystem *RenderViewSystem) error {
	r.FrameNumber++

	// Make sure the window is not currently being resized by waiting a designated
	// number of frames after the last resize operation before performing the backend updates.
	if r.Resizing {
		r.FramesSinceResize++
		if r.FramesSinceResize < r.config.ResizeSettleFrames {
			// Skip rendering the frame and try again next time.
			return nil
		}
		if renderViewSystem != nil {
			renderViewSystem.OnWindowResize(r.FramebufferWidth, r.FramebufferHeight)
		}
		if err := r.backend.Resized(r.FramebufferWidth, r.FramebufferHeight); err != nil {
			return err
		}
		r.FramesSinceResize = 0
		r.Resizing = false
	}

	if err := r.backend.BeginFrame(packet.DeltaTime); err != nil {
		return err
	}

	for i, view := range packet.Views {
		if err := r.drawView(view); err != nil {
			// A broken view is skipped, the frame still ends.
			core.LogError("error rendering view index %d ('%s'): %s", i, view.ViewName, err)
		}
	}

	// End the frame. If this fails, it is likely unrecoverable.
	if err := r.backend.EndFrame(packet.DeltaTime); err != nil {
		core.LogError("backend func EndFrame failed: %s", err)
		return err
	}
	return nil
}

func (r *RendererSystem) drawView(view *metadata.RenderViewPacket) error {
	data, ok := view.ExtendedData.(*metadata.SkyboxPacketData)
	if !ok {
		return core.Wrapf(core.ErrUnknown, "view '%s' has no skybox data", view.ViewName)
	}
	for _, g := range view.Geometries {
		if err := r.ensureGeometry(g.Geometry); err != nil {
			return err
		}
	}
	if data.Texture != nil {
		if err := r.ensureTexture(data.Texture); err != nil {
			return err
		}
	}
	if err := r.backend.DrawSkybox(view, data); err != nil {
		return err
	}
	if data.Skybox != nil {
		data.Skybox.RenderFrameNumber = r.FrameNumber
	}
	return nil
}

func (r *RendererSystem) ensureGeometry(geometry *metadata.Geometry) error {
	if _, ok := r.geometries[geometry]; ok {
		return nil
	}
	if err := r.backend.CreateGeometry(geometry); err != nil {
		return err
	}
	r.geometries[geometry] = struct{}{}
	return nil
}

func (r *RendererSystem) ensureTexture(texture *metadata.Texture) error {
	uploaded, ok := r.textures[texture.Name]
	if ok && uploaded.texture == texture &&
		uploaded.generation == texture.Generation &&
		uploaded.dimension == texture.ViewDimension() {
		return nil
	}
	if ok {
		r.backend.TextureDestroy(uploaded.texture)
		delete(r.textures, texture.Name)
	}
	if err := r.backend.TextureCreate(texture); err != nil {
		return err
	}
	r.textures[texture.Name] = uploadedTexture{
		texture:    texture,
		generation: texture.Generation,
		dimension:  texture.ViewDimension(),
	}
	core.LogDebug("uploaded texture '%s' (generation %d, %d layers)", texture.Name, texture.Generation, texture.LayerCount())
	return nil
}
