package loaders

import (
	"os"
	"path/filepath"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// ShaderLoader reads WGSL source files.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrapf(err, "failed to read shader source '%s'", path)
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeShader,
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     string(data),
	}, nil
}

func (sl *ShaderLoader) Unload(resource *metadata.Resource) error {
	if resource != nil {
		resource.Data = nil
	}
	return nil
}
