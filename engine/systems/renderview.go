package systems

import (
	"sync"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
	"github.com/spaghettifunk/skybox/engine/renderer/views"
)

/** @brief The configuration for the render view system. */
type RenderViewSystemConfig struct {
	/** @brief The maximum number of views that can be registered with the system. */
	MaxViewCount uint16
}

type RenderViewSystem struct {
	Config *RenderViewSystemConfig
	Lookup map[string]*views.RenderViewSkybox
	// view names in creation order
	order []string
	// subsystems
	shaderSystem *ShaderSystem
	cameraSystem *CameraSystem
	skyboxSystem *SkyboxSystem

	mutex sync.RWMutex
}

func NewRenderViewSystem(config *RenderViewSystemConfig, ss *ShaderSystem, cs *CameraSystem, sbs *SkyboxSystem) (*RenderViewSystem, error) {
	if config.MaxViewCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewRenderViewSystem - config.MaxViewCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	if cs == nil || sbs == nil {
		return nil, core.Wrapf(core.ErrInvalidConfig, "func NewRenderViewSystem - camera and skybox systems are required")
	}
	return &RenderViewSystem{
		Config:       config,
		Lookup:       make(map[string]*views.RenderViewSkybox, config.MaxViewCount),
		shaderSystem: ss,
		cameraSystem: cs,
		skyboxSystem: sbs,
	}, nil
}

func (rvs *RenderViewSystem) Shutdown() error {
	rvs.mutex.Lock()
	defer rvs.mutex.Unlock()
	rvs.Lookup = make(map[string]*views.RenderViewSkybox)
	rvs.order = nil
	return nil
}

/**
 * @brief Creates a new view using the provided config. The view drawing the
 * skybox uses the default camera.
 */
func (rvs *RenderViewSystem) Create(config *metadata.RenderViewConfig) error {
	if config.Name == "" {
		return core.Wrapf(core.ErrInvalidConfig, "render view name is required")
	}
	if config.Type != metadata.RENDERER_VIEW_KNOWN_TYPE_SKYBOX {
		return core.Wrapf(core.ErrInvalidConfig, "render view '%s' has unknown type %d", config.Name, config.Type)
	}

	rvs.mutex.Lock()
	defer rvs.mutex.Unlock()

	if _, ok := rvs.Lookup[config.Name]; ok {
		return core.Wrapf(core.ErrInvalidConfig, "a view named '%s' already exists", config.Name)
	}
	if len(rvs.Lookup) >= int(rvs.Config.MaxViewCount) {
		return core.Wrapf(core.ErrInvalidConfig, "no available space for a new view")
	}

	shaderName := config.CustomShaderName
	if shaderName == "" {
		shaderName = metadata.BUILTIN_SHADER_NAME_SKYBOX
	}
	shader := rvs.shader(shaderName)

	rvs.Lookup[config.Name] = views.NewRenderViewSkybox(config, shader, rvs.cameraSystem.GetDefault())
	rvs.order = append(rvs.order, config.Name)
	core.LogDebug("render view '%s' created with shader '%s'", config.Name, shader.Name)
	return nil
}

func (rvs *RenderViewSystem) Get(name string) *views.RenderViewSkybox {
	rvs.mutex.RLock()
	defer rvs.mutex.RUnlock()
	return rvs.Lookup[name]
}

func (rvs *RenderViewSystem) OnWindowResize(width, height uint32) {
	rvs.mutex.RLock()
	defer rvs.mutex.RUnlock()
	for _, name := range rvs.order {
		rvs.Lookup[name].OnResize(width, height)
	}
}

/**
 * @brief Builds the frame packet: one view packet per visible skybox and view.
 * Skyboxes whose texture has not been converted yet are drawn with their color only.
 */
func (rvs *RenderViewSystem) BuildPacket(deltaTime float64, frameNumber uint64) *metadata.RenderPacket {
	packet := &metadata.RenderPacket{
		DeltaTime:   deltaTime,
		FrameNumber: frameNumber,
	}
	skyboxes := rvs.skyboxSystem.Skyboxes()

	rvs.mutex.RLock()
	defer rvs.mutex.RUnlock()
	for _, name := range rvs.order {
		view := rvs.Lookup[name]
		for _, skybox := range skyboxes {
			if !skybox.Bundle.Visible {
				continue
			}
			viewPacket, err := view.BuildPacket(skybox, rvs.skyboxSystem.CubeTexture(skybox))
			if err != nil {
				core.LogError("failed to build packet for view '%s': %s", name, err)
				continue
			}
			packet.Views = append(packet.Views, viewPacket)
		}
	}
	return packet
}

func (rvs *RenderViewSystem) shader(name string) *metadata.Shader {
	if rvs.shaderSystem != nil {
		if shader, err := rvs.shaderSystem.GetShader(name); err == nil {
			return shader
		}
	}
	core.LogWarn("shader '%s' is not compiled, the backend will use its own", name)
	return &metadata.Shader{Name: name}
}
