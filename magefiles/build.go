//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the embedded WGSL shaders to check they are valid.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Testbed() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/skybox", "."), withStream())
	return err
}

func buildShaders() error {
	_, err := executeCmd("go", withArgs("test", "-run", "TestSkyboxShader", "-v", "."), withDir("engine/systems"), withStream())
	return err
}
