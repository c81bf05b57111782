package systems

import (
	_ "embed"
	"sync"

	"github.com/gogpu/naga"

	"github.com/spaghettifunk/skybox/engine/assets"
	"github.com/spaghettifunk/skybox/engine/assets/loaders"
	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

//go:embed shaders/skybox.wgsl
var skyboxShaderWGSL string

const skyboxShaderAsset = "skybox"

// SkyboxShaderSource returns the WGSL source of the builtin skybox shader.
func SkyboxShaderSource() string {
	return skyboxShaderWGSL
}

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shaders held in the system. */
	MaxShaderCount uint16
}

/** @brief Describes a shader to be created. */
type ShaderConfig struct {
	Name        string
	Source      string
	EntryPoints map[metadata.ShaderStage]string
}

type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// A lookup table for shader name->shader
	Lookup map[string]*metadata.Shader

	mutex sync.RWMutex
}

func NewShaderSystem(config *ShaderSystemConfig) (*ShaderSystem, error) {
	if config.MaxShaderCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "NewShaderSystem - config.MaxShaderCount must be greater than 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &ShaderSystem{
		Config: config,
		Lookup: make(map[string]*metadata.Shader),
	}, nil
}

/**
 * @brief Compiles the builtin shaders. A "shaders/skybox.wgsl" asset replaces the
 * embedded source. A shader that fails to compile is logged and left out;
 * rendering falls back to whatever the backend provides.
 */
func (ss *ShaderSystem) Initialize(am *assets.AssetManager) error {
	source := skyboxShaderWGSL
	if am != nil {
		if resource, err := am.LoadAsset(skyboxShaderAsset, metadata.ResourceTypeShader, nil); err == nil {
			source = resource.Data.(string)
			core.LogInfo("using skybox shader from '%s'", resource.FullPath)
			_ = am.UnloadAsset(resource)
		}
	}

	_, err := ss.CreateShader(&ShaderConfig{
		Name:   metadata.BUILTIN_SHADER_NAME_SKYBOX,
		Source: source,
		EntryPoints: map[metadata.ShaderStage]string{
			metadata.ShaderStageVertex:   "vs_main",
			metadata.ShaderStageFragment: "fs_main",
		},
	})
	if err != nil {
		core.LogError("builtin skybox shader unavailable: %s", err)
	}
	return nil
}

/**
 * @brief Shuts down the shader system.
 */
func (ss *ShaderSystem) Shutdown() error {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	ss.Lookup = make(map[string]*metadata.Shader)
	return nil
}

/**
 * @brief Compiles and registers a shader. Creating a shader with a name that
 * is already registered returns the existing one.
 */
func (ss *ShaderSystem) CreateShader(config *ShaderConfig) (*metadata.Shader, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if shader, ok := ss.Lookup[config.Name]; ok {
		core.LogWarn("shader '%s' already exists", config.Name)
		return shader, nil
	}
	if len(ss.Lookup) >= int(ss.Config.MaxShaderCount) {
		return nil, core.Wrapf(core.ErrInvalidConfig, "cannot hold more than %d shaders", ss.Config.MaxShaderCount)
	}

	spirv, err := CompileWGSL(config.Source)
	if err != nil {
		return nil, core.Wrapf(err, "shader '%s'", config.Name)
	}

	shader := &metadata.Shader{
		Name:        config.Name,
		EntryPoints: config.EntryPoints,
		Source:      config.Source,
		SPIRV:       spirv,
	}
	for stage := range config.EntryPoints {
		shader.Stages |= stage
	}
	ss.Lookup[config.Name] = shader

	core.LogDebug("shader '%s' compiled to %d SPIR-V words", config.Name, len(spirv))
	return shader, nil
}

func (ss *ShaderSystem) GetShader(shaderName string) (*metadata.Shader, error) {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	if shader, ok := ss.Lookup[shaderName]; ok {
		return shader, nil
	}
	return nil, core.Wrapf(core.ErrShaderNotFound, "shader '%s'", shaderName)
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, core.Wrapf(core.ErrShaderCompile, "%s", err)
	}

	return loaders.BytesToWords(spirvBytes), nil
}
