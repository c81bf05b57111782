package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/skybox/engine"
	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/math"
	"github.com/spaghettifunk/skybox/engine/renderer/components"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	skybox        *metadata.Skybox
	skyboxTexture metadata.TextureHandle
	// accumulated skybox rotation in radians
	angle float32
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return core.Wrapf(core.ErrUnknown, "the engine is not yet initialized with all the system managers")
	}

	state := g.State.(*gameState)
	state.WorldCamera = g.SystemManager.CameraSystem.GetDefault()
	state.WorldCamera.SetPosition(mgl32.Vec3{10.5, 5.0, 9.5})

	config := g.ApplicationConfig.Skybox
	material := metadata.DefaultSkyboxMaterial()
	if config.Texture != "" {
		handle, err := g.SystemManager.TextureSystem.Load(config.Texture)
		if err != nil {
			core.LogError("failed to request skybox texture '%s': %s", config.Texture, err)
			return err
		}
		state.skyboxTexture = handle
		material = metadata.NewSkyboxMaterialFromTexture(handle)
		material.Color = config.TintColor()
	}

	skybox, err := g.SystemManager.SkyboxSystem.Spawn(metadata.NewSkyboxBundle(material))
	if err != nil {
		return err
	}
	state.skybox = skybox

	events := g.SystemManager.EventSystem
	events.Register(core.EVENT_CODE_SKYBOX_CONVERTED, g, g.gameOnEvent)
	events.Register(core.EVENT_CODE_SKYBOX_REJECTED, g, g.gameOnEvent)
	events.Register(core.EVENT_CODE_TEXTURE_LOAD_FAILED, g, g.gameOnEvent)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)

	// Look around slowly.
	state.WorldCamera.Yaw(float32(0.1 * deltaTime))

	if spin := g.ApplicationConfig.Skybox.Spin; spin != 0 && state.skybox != nil {
		state.angle = math.WrapAngle(state.angle + math.DegToRad(spin)*float32(deltaTime))
		state.skybox.Bundle.Rotation = mgl32.QuatRotate(state.angle, mgl32.Vec3{0, 1, 0})
	}
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	events := g.SystemManager.EventSystem
	events.Unregister(core.EVENT_CODE_SKYBOX_CONVERTED, g)
	events.Unregister(core.EVENT_CODE_SKYBOX_REJECTED, g)
	events.Unregister(core.EVENT_CODE_TEXTURE_LOAD_FAILED, g)

	if state.skybox != nil {
		g.SystemManager.SkyboxSystem.Despawn(state.skybox.ID)
		state.skybox = nil
	}
	if state.skyboxTexture.IsValid() {
		return g.SystemManager.TextureSystem.Release(state.skyboxTexture)
	}
	return nil
}

func (g *TestGame) gameOnEvent(context core.EventContext) bool {
	state := g.State.(*gameState)
	handle, _ := context.Data.(metadata.TextureHandle)
	if handle != state.skyboxTexture {
		return false
	}
	switch context.Type {
	case core.EVENT_CODE_SKYBOX_CONVERTED:
		stats := g.SystemManager.SkyboxSystem.Stats()
		core.LogInfo("skybox ready after %d frames", stats.Ticks)
	case core.EVENT_CODE_SKYBOX_REJECTED, core.EVENT_CODE_TEXTURE_LOAD_FAILED:
		core.LogWarn("skybox texture '%s' is unusable, drawing the tint only", g.ApplicationConfig.Skybox.Texture)
	}
	return false
}
