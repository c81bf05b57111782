package metadata

/** @brief The name of the builtin skybox shader. */
const BUILTIN_SHADER_NAME_SKYBOX string = "Shader.Builtin.Skybox"

type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x2
)

/**
 * @brief A compiled shader module.
 */
type Shader struct {
	Name string
	/** @brief The stages provided by the module. */
	Stages ShaderStage
	/** @brief Entry point name per stage. */
	EntryPoints map[ShaderStage]string
	/** @brief WGSL source. */
	Source string
	/** @brief SPIR-V words compiled from Source. */
	SPIRV []uint32
}
