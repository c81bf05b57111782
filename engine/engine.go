package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/math"
	"github.com/spaghettifunk/skybox/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   atomic.Bool
	events        *core.EventSystem
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
	frameCount    uint64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, core.Wrapf(core.ErrInvalidConfig, "a game with an application config is required")
	}
	if g.FnInitialize == nil || g.FnUpdate == nil || g.FnRender == nil || g.FnOnResize == nil {
		return nil, core.Wrapf(core.ErrInvalidConfig, "game '%s' is missing a callback", g.ApplicationConfig.Name)
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		events:       core.NewEventSystem(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}

	level, _ := core.ParseLogLevel(g.ApplicationConfig.LogLevel)
	core.SetLogLevel(level)

	sm, err := systems.NewSystemManager(g.ApplicationConfig.SystemConfig(), e.events)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	e.systemManager = sm
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return core.Wrapf(core.ErrUnknown, "cannot initialize the engine while %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)

	if err := e.systemManager.Initialize(); err != nil {
		return err
	}

	e.gameInstance.SystemManager = e.systemManager
	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Runs the main loop until the context is cancelled, the quit event is
 * fired or the configured number of frames has been drawn.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return core.Wrapf(core.ErrUnknown, "cannot run the engine while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64
	if rate := e.gameInstance.ApplicationConfig.TargetFrameRate; rate > 0 {
		targetFrameSeconds = 1.0 / float64(rate)
	}
	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames

	var runErr error
	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		if e.isSuspended.Load() {
			if !sleepContext(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := core.AbsoluteTime()

		// Textures that finished loading are published before the skyboxes are converted.
		e.systemManager.Update(delta)

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			runErr = err
			break
		}

		// Call the game's render routine.
		if err := e.gameInstance.FnRender(delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			runErr = err
			break
		}

		if err := e.systemManager.DrawFrame(delta); err != nil {
			core.LogError("drawing frame %d failed, shutting down: %s", e.frameCount, err)
			runErr = err
			break
		}

		// Figure out how long the frame took and, if below the target, give the time back.
		frameElapsedTime := core.AbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			if !sleepContext(ctx, time.Duration(remaining*math.K_SEC_TO_MS_MULTIPLIER)*time.Millisecond) {
				break
			}
		}

		e.frameCount++
		if e.metrics.FrameAVGCounter == 0 {
			fps, frameTime := e.metrics.Frame()
			core.LogDebug("frame %d: %.0f fps, %.3f ms", e.frameCount, fps, frameTime)
		}
		if maxFrames > 0 && e.frameCount >= maxFrames {
			core.LogInfo("reached %d frames, stopping", maxFrames)
			break
		}

		// Update last time
		e.lastTime = currentTime
	}

	e.isRunning.Store(false)
	e.clock.Stop()
	e.currentStage = EngineStageInitialized
	return runErr
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var err error
	if e.gameInstance.FnShutdown != nil {
		err = e.gameInstance.FnShutdown()
	}
	e.events.Unregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	err = core.Combine(err, e.systemManager.Shutdown())
	err = core.Combine(err, e.events.Shutdown())
	e.currentStage = EngineStageUninitialized
	return err
}

// Quit stops the main loop at the end of the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT, Sender: e})
}

func (e *Engine) Suspend(suspended bool) {
	e.isSuspended.Store(suspended)
}

func (e *Engine) OnResize(width, height uint32) error {
	if width == 0 || height == 0 {
		// Minimized.
		e.Suspend(true)
		return nil
	}
	e.Suspend(false)
	e.width, e.height = width, height
	e.systemManager.OnResize(width, height)
	return e.gameInstance.FnOnResize(width, height)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

// ApplicationGetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

// sleepContext returns false if ctx was cancelled before d elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
