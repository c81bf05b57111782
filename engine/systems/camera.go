package systems

import (
	"sync"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/components"
)

type cameraLookup struct {
	ReferenceCount uint16
	Camera         *components.Camera
}

type CameraSystem struct {
	Config  *CameraSystemConfig
	Cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera

	mutex sync.Mutex
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &CameraSystem{
		Config:        config,
		Cameras:       make(map[string]*cameraLookup, config.MaxCameraCount),
		DefaultCamera: components.NewCamera(),
	}, nil
}

/**
 * @brief Shuts down the camera system.
 */
func (cs *CameraSystem) Shutdown() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.Cameras = make(map[string]*cameraLookup)
	return nil
}

/**
 * @brief Acquires a pointer to a camera by name.
 * If one is not found, a new one is created and retuned.
 * Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	lookup, ok := cs.Cameras[name]
	if !ok {
		if len(cs.Cameras) >= int(cs.Config.MaxCameraCount) {
			err := core.Wrapf(core.ErrInvalidConfig, "func CameraSystemAcquire failed to acquire new slot. Adjust camera system config to allow more")
			core.LogError("%s", err)
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		lookup = &cameraLookup{Camera: components.NewCamera()}
		cs.Cameras[name] = lookup
	}
	lookup.ReferenceCount++
	return lookup.Camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the camera is dropped.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	lookup, ok := cs.Cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	lookup.ReferenceCount--
	if lookup.ReferenceCount < 1 {
		delete(cs.Cameras, name)
	}
}

/**
 * @brief Gets a pointer to the default camera.
 */
func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}
