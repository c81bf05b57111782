package systems

import (
	"github.com/spaghettifunk/skybox/engine/assets"
	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

/** @brief The name of the view created by Initialize. */
const SkyboxViewName string = "skybox"

type SystemManagerConfig struct {
	AppName string
	Width   uint32
	Height  uint32
	// Asset directory. Empty disables asset loading.
	AssetsPath   string
	Workers      int
	JobQueueSize int
	FOV          float32
	Texture      TextureSystemConfig
	Skybox       SkyboxSystemConfig
	// Nil selects the headless backend.
	Backend renderer.RendererBackend
}

type SystemManager struct {
	EventSystem      *core.EventSystem
	AssetManager     *assets.AssetManager
	JobSystem        *JobSystem
	TextureSystem    *TextureSystem
	ShaderSystem     *ShaderSystem
	GeometrySystem   *GeometrySystem
	CameraSystem     *CameraSystem
	SkyboxSystem     *SkyboxSystem
	RenderViewSystem *RenderViewSystem
	RendererSystem   *RendererSystem

	config *SystemManagerConfig
	// shutdown functions of the systems created so far, in creation order
	shutdowns []func() error
}

func NewSystemManager(config *SystemManagerConfig, es *core.EventSystem) (*SystemManager, error) {
	if es == nil {
		es = core.NewEventSystem()
	}
	sm := &SystemManager{
		EventSystem: es,
		config:      config,
	}
	if err := sm.create(); err != nil {
		core.LogError("failed to create systems: %s", err)
		if shutdownErr := sm.Shutdown(); shutdownErr != nil {
			core.LogError("failed to clean up systems: %s", shutdownErr)
		}
		return nil, err
	}
	return sm, nil
}

func (sm *SystemManager) create() error {
	var err error
	if sm.config.AssetsPath != "" {
		if sm.AssetManager, err = assets.NewAssetManager(); err != nil {
			return err
		}
		if err := sm.AssetManager.Initialize(sm.config.AssetsPath); err != nil {
			_ = sm.AssetManager.Shutdown()
			sm.AssetManager = nil
			return err
		}
		sm.shutdowns = append(sm.shutdowns, sm.AssetManager.Shutdown)
	}

	if sm.JobSystem, err = NewJobSystem(sm.config.Workers, sm.config.JobQueueSize); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.JobSystem.Shutdown)

	if sm.TextureSystem, err = NewTextureSystem(&sm.config.Texture, sm.JobSystem, sm.AssetManager, sm.EventSystem); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.TextureSystem.Shutdown)

	if sm.ShaderSystem, err = NewShaderSystem(&ShaderSystemConfig{MaxShaderCount: 16}); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.ShaderSystem.Shutdown)

	if sm.GeometrySystem, err = NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 64}); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.GeometrySystem.Shutdown)

	if sm.CameraSystem, err = NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 16}); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.CameraSystem.Shutdown)

	if sm.SkyboxSystem, err = NewSkyboxSystem(&sm.config.Skybox, sm.TextureSystem, sm.GeometrySystem, sm.EventSystem); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.SkyboxSystem.Shutdown)

	if sm.RenderViewSystem, err = NewRenderViewSystem(&RenderViewSystemConfig{MaxViewCount: 4}, sm.ShaderSystem, sm.CameraSystem, sm.SkyboxSystem); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.RenderViewSystem.Shutdown)

	backend := sm.config.Backend
	if backend == nil {
		backend = renderer.NewHeadlessBackend()
	}
	if sm.RendererSystem, err = NewRendererSystem(&RendererSystemConfig{
		AppName:            sm.config.AppName,
		Width:              sm.config.Width,
		Height:             sm.config.Height,
		ResizeSettleFrames: 30,
	}, backend); err != nil {
		return err
	}
	sm.shutdowns = append(sm.shutdowns, sm.RendererSystem.Shutdown)
	return nil
}

/**
 * @brief Compiles the builtin shaders and creates the skybox view.
 */
func (sm *SystemManager) Initialize() error {
	if err := sm.ShaderSystem.Initialize(sm.AssetManager); err != nil {
		return err
	}
	return sm.RenderViewSystem.Create(&metadata.RenderViewConfig{
		Name:     SkyboxViewName,
		Type:     metadata.RENDERER_VIEW_KNOWN_TYPE_SKYBOX,
		Width:    sm.config.Width,
		Height:   sm.config.Height,
		FOV:      sm.config.FOV,
		CullMode: metadata.FaceCullModeBack,
	})
}

/**
 * @brief Runs one tick of the asset pipeline: completed texture loads are
 * published first so that the conversion pass of the same tick sees them.
 */
func (sm *SystemManager) Update(deltaTime float64) ConversionReport {
	sm.TextureSystem.Update()
	return sm.SkyboxSystem.Update()
}

func (sm *SystemManager) DrawFrame(deltaTime float64) error {
	packet := sm.RenderViewSystem.BuildPacket(deltaTime, sm.RendererSystem.FrameNumber+1)
	return sm.RendererSystem.DrawFrame(packet, sm.RenderViewSystem)
}

func (sm *SystemManager) OnResize(width, height uint32) {
	sm.RendererSystem.OnResize(width, height)
}

// Shutdown stops every system in reverse creation order and reports all failures.
func (sm *SystemManager) Shutdown() error {
	var err error
	for i := len(sm.shutdowns) - 1; i >= 0; i-- {
		err = core.Combine(err, sm.shutdowns[i]())
	}
	sm.shutdowns = nil
	return err
}
