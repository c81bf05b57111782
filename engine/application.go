package engine

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer"
	"github.com/spaghettifunk/skybox/engine/systems"
)

const (
	ViewDimensionCube      string = "cube"
	ViewDimensionCubeArray string = "cube_array"
)

type TextureConfig struct {
	// Size of the texture table.
	MaxCount uint32 `toml:"max_count"`
	// Loads allowed to run at the same time.
	MaxInFlight uint32 `toml:"max_in_flight"`
}

type SkyboxConfig struct {
	// Name of a stacked skybox image, six faces top to bottom. Empty spawns a color only skybox.
	Texture string `toml:"texture"`
	// "cube_array" or "cube".
	ViewDimension string `toml:"view_dimension"`
	// Frames a submitted texture may stay unloaded before it is dropped. 0 waits forever.
	MaxPendingTicks uint32 `toml:"max_pending_ticks"`
	// Convert the texture again after it is reloaded from disk.
	ResubmitOnReload bool `toml:"resubmit_on_reload"`
	// Tint, RGBA.
	Color [4]float32 `toml:"color"`
	// Rotation around the Y axis in degrees per second.
	Spin     float32 `toml:"spin"`
	MaxCount uint32  `toml:"max_count"`
}

type ApplicationConfig struct {
	// The application name used in logging and windowing, if applicable.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
	// Asset directory. Relative paths are resolved against the config file.
	AssetsPath string `toml:"assets"`
	// 0 runs unthrottled.
	TargetFrameRate uint32 `toml:"target_frame_rate"`
	// Stop after this many frames. 0 runs until cancelled.
	MaxFrames uint64 `toml:"max_frames"`
	Workers   int    `toml:"workers"`
	JobQueue  int    `toml:"job_queue"`
	// Vertical field of view in degrees.
	FOV      float32       `toml:"fov"`
	Textures TextureConfig `toml:"textures"`
	Skybox   SkyboxConfig  `toml:"skybox"`

	// Overrides the headless backend. Never read from a file.
	Backend renderer.RendererBackend `toml:"-"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:            "skybox",
		LogLevel:        "info",
		StartWidth:      1280,
		StartHeight:     720,
		AssetsPath:      "assets",
		TargetFrameRate: 60,
		Workers:         2,
		JobQueue:        16,
		FOV:             45.0,
		Textures: TextureConfig{
			MaxCount:    256,
			MaxInFlight: 8,
		},
		Skybox: SkyboxConfig{
			ViewDimension: ViewDimensionCubeArray,
			Color:         [4]float32{1, 1, 1, 1},
			MaxCount:      4,
		},
	}
}

// LoadApplicationConfig reads a TOML file on top of the defaults.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrapf(err, "reading config '%s'", path)
	}
	config, err := ParseApplicationConfig(data)
	if err != nil {
		return nil, core.Wrapf(err, "config '%s'", path)
	}
	if config.AssetsPath != "" && !filepath.IsAbs(config.AssetsPath) {
		config.AssetsPath = filepath.Join(filepath.Dir(path), config.AssetsPath)
	}
	return config, nil
}

// ParseApplicationConfig decodes TOML on top of the defaults and validates the result.
func ParseApplicationConfig(data []byte) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return nil, core.Wrapf(core.ErrInvalidConfig, "decoding toml: %s", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return core.Wrapf(core.ErrInvalidConfig, "name must not be empty")
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return core.Wrapf(core.ErrInvalidConfig, "width and height must be > 0, got %dx%d", c.StartWidth, c.StartHeight)
	}
	if c.StartWidth > math.MaxUint16 || c.StartHeight > math.MaxUint16 {
		return core.Wrapf(core.ErrInvalidConfig, "width and height must be <= %d, got %dx%d",
			math.MaxUint16, c.StartWidth, c.StartHeight)
	}
	if c.Workers < 1 {
		return core.Wrapf(core.ErrInvalidConfig, "workers must be > 0, got %d", c.Workers)
	}
	if c.JobQueue < 0 {
		return core.Wrapf(core.ErrInvalidConfig, "job_queue must not be negative, got %d", c.JobQueue)
	}
	if c.FOV <= 0 || c.FOV >= 180 {
		return core.Wrapf(core.ErrInvalidConfig, "fov must be in (0, 180), got %f", c.FOV)
	}
	if c.Textures.MaxCount == 0 || c.Textures.MaxInFlight == 0 {
		return core.Wrapf(core.ErrInvalidConfig, "textures.max_count and textures.max_in_flight must be > 0")
	}
	// every in flight load holds a queue slot until a worker picks it up
	if c.JobQueue < int(c.Textures.MaxInFlight) {
		return core.Wrapf(core.ErrInvalidConfig, "job_queue (%d) must be >= textures.max_in_flight (%d)",
			c.JobQueue, c.Textures.MaxInFlight)
	}
	if c.Skybox.MaxCount == 0 {
		return core.Wrapf(core.ErrInvalidConfig, "skybox.max_count must be > 0")
	}
	if _, err := c.Skybox.viewDimension(); err != nil {
		return err
	}
	return nil
}

func (s SkyboxConfig) viewDimension() (gputypes.TextureViewDimension, error) {
	switch strings.ToLower(strings.TrimSpace(s.ViewDimension)) {
	case "", ViewDimensionCubeArray:
		return gputypes.TextureViewDimensionCubeArray, nil
	case ViewDimensionCube:
		return gputypes.TextureViewDimensionCube, nil
	default:
		return gputypes.TextureViewDimensionUndefined, core.Wrapf(core.ErrInvalidConfig,
			"skybox.view_dimension must be '%s' or '%s', got '%s'", ViewDimensionCubeArray, ViewDimensionCube, s.ViewDimension)
	}
}

// TintColor returns the skybox tint as a vector.
func (s SkyboxConfig) TintColor() mgl32.Vec4 {
	return mgl32.Vec4(s.Color)
}

// SystemConfig translates the application config into the configuration of every engine system.
func (c *ApplicationConfig) SystemConfig() *systems.SystemManagerConfig {
	dimension, _ := c.Skybox.viewDimension()
	return &systems.SystemManagerConfig{
		AppName:      c.Name,
		Width:        c.StartWidth,
		Height:       c.StartHeight,
		AssetsPath:   c.AssetsPath,
		Workers:      c.Workers,
		JobQueueSize: c.JobQueue,
		FOV:          c.FOV,
		Texture: systems.TextureSystemConfig{
			MaxTextureCount:  c.Textures.MaxCount,
			MaxInFlightLoads: c.Textures.MaxInFlight,
		},
		Skybox: systems.SkyboxSystemConfig{
			MaxSkyboxCount:   c.Skybox.MaxCount,
			ViewDimension:    dimension,
			MaxPendingTicks:  c.Skybox.MaxPendingTicks,
			ResubmitOnReload: c.Skybox.ResubmitOnReload,
		},
		Backend: c.Backend,
	}
}
