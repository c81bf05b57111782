package systems

import (
	"context"
	"sync"

	"github.com/spaghettifunk/skybox/engine/assets"
	"github.com/spaghettifunk/skybox/engine/containers"
	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be registered at once. */
	MaxTextureCount uint32
	/** @brief The maximum number of load jobs that may be running at once. */
	MaxInFlightLoads uint32
}

/** @brief The lifecycle of an entry in the texture table. */
type TextureState int

const (
	/** @brief The handle is not known to the texture system. */
	TextureStateUnknown TextureState = iota
	/** @brief A load job is running. The handle does not resolve yet. */
	TextureStateLoading
	/** @brief The texture is present and resolves through Get. */
	TextureStateLoaded
	/** @brief The load job failed. The handle never resolves. */
	TextureStateFailed
)

func (s TextureState) String() string {
	switch s {
	case TextureStateLoading:
		return "loading"
	case TextureStateLoaded:
		return "loaded"
	case TextureStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type textureReference struct {
	name           string
	path           string
	referenceCount uint64
	state          TextureState
	texture        *metadata.Texture
}

type textureLoadParams struct {
	handle metadata.TextureHandle
	name   string
	reload bool
}

type textureLoadResult struct {
	textureLoadParams
	path    string
	texture *metadata.Texture
	err     error
}

/**
 * @brief The texture asset table. Loads run on the job system; their results
 * only become visible to Get during Update, which must be called from the
 * same goroutine that reads the table.
 */
type TextureSystem struct {
	Config *TextureSystemConfig

	mutex    sync.RWMutex
	textures map[metadata.TextureHandle]*textureReference
	names    map[string]metadata.TextureHandle
	inFlight uint32

	// written by job workers, drained by Update
	resultMutex sync.Mutex
	results     *containers.RingQueue[textureLoadResult]

	// written by the asset watcher, drained by Update
	reloadMutex sync.Mutex
	reloads     []string

	jobSystem    *JobSystem
	assetManager *assets.AssetManager
	events       *core.EventSystem
}

func NewTextureSystem(config *TextureSystemConfig, js *JobSystem, am *assets.AssetManager, es *core.EventSystem) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	if config.MaxInFlightLoads == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewTextureSystem - config.MaxInFlightLoads must be > 0")
		core.LogError("%s", err)
		return nil, err
	}

	ts := &TextureSystem{
		Config:       config,
		textures:     make(map[metadata.TextureHandle]*textureReference),
		names:        make(map[string]metadata.TextureHandle),
		results:      containers.NewRingQueue[textureLoadResult](int(config.MaxInFlightLoads)),
		jobSystem:    js,
		assetManager: am,
		events:       es,
	}

	if am != nil {
		am.OnChange(ts.queueReload)
	}

	return ts, nil
}

func (ts *TextureSystem) Shutdown() error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.textures = make(map[metadata.TextureHandle]*textureReference)
	ts.names = make(map[string]metadata.TextureHandle)
	return nil
}

/**
 * @brief Requests the texture with the given asset name. Returns at once with a
 * handle in the loading state; the texture resolves on a later Update. Loading
 * an already registered name returns the same handle and increments its
 * reference count.
 */
func (ts *TextureSystem) Load(name string) (metadata.TextureHandle, error) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if handle, ok := ts.names[name]; ok {
		ref := ts.textures[handle]
		ref.referenceCount++
		core.LogDebug("texture '%s' already registered, reference count is now %d", name, ref.referenceCount)
		return handle, nil
	}

	if uint32(len(ts.textures)) >= ts.Config.MaxTextureCount {
		return metadata.TextureHandle{}, core.Wrapf(core.ErrTextureTableFull, "cannot load texture '%s'", name)
	}
	if ts.inFlight >= ts.Config.MaxInFlightLoads {
		return metadata.TextureHandle{}, core.Wrapf(core.ErrTooManyLoads, "cannot load texture '%s'", name)
	}

	handle := metadata.NewTextureHandle()
	if err := ts.submitLoad(textureLoadParams{handle: handle, name: name}); err != nil {
		return metadata.TextureHandle{}, err
	}

	ts.textures[handle] = &textureReference{
		name:           name,
		referenceCount: 1,
		state:          TextureStateLoading,
	}
	ts.names[name] = handle

	core.LogDebug("texture '%s' queued for loading as %s", name, handle)
	return handle, nil
}

/**
 * @brief Registers a texture created in memory. It is present immediately and
 * is never hot reloaded.
 */
func (ts *TextureSystem) Add(texture *metadata.Texture) (metadata.TextureHandle, error) {
	if texture == nil {
		return metadata.TextureHandle{}, core.Wrapf(core.ErrInvalidHandle, "cannot add a nil texture")
	}

	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	if uint32(len(ts.textures)) >= ts.Config.MaxTextureCount {
		return metadata.TextureHandle{}, core.Wrapf(core.ErrTextureTableFull, "cannot add texture '%s'", texture.Name)
	}

	handle := metadata.NewTextureHandle()
	ts.textures[handle] = &textureReference{
		name:           texture.Name,
		referenceCount: 1,
		state:          TextureStateLoaded,
		texture:        texture,
	}
	return handle, nil
}

/**
 * @brief Resolves a handle to its texture. The texture is only present once it
 * has been loaded. The returned pointer may be mutated in place by the caller
 * until the next Update.
 */
func (ts *TextureSystem) Get(handle metadata.TextureHandle) (*metadata.Texture, bool) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	ref, ok := ts.textures[handle]
	if !ok || ref.state != TextureStateLoaded {
		return nil, false
	}
	return ref.texture, true
}

func (ts *TextureSystem) State(handle metadata.TextureHandle) TextureState {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	if ref, ok := ts.textures[handle]; ok {
		return ref.state
	}
	return TextureStateUnknown
}

// Count returns the number of registered textures, whatever their state.
func (ts *TextureSystem) Count() int {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	return len(ts.textures)
}

// InFlight returns the number of load jobs whose result has not been drained yet.
func (ts *TextureSystem) InFlight() uint32 {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()
	return ts.inFlight
}

/**
 * @brief Drops one reference to the texture. The texture is unloaded when the
 * last reference goes away.
 */
func (ts *TextureSystem) Release(handle metadata.TextureHandle) error {
	ts.mutex.Lock()
	ref, ok := ts.textures[handle]
	if !ok {
		ts.mutex.Unlock()
		return core.Wrapf(core.ErrInvalidHandle, "release %s", handle)
	}
	if ref.referenceCount > 1 {
		ref.referenceCount--
		core.LogDebug("released texture '%s', reference count is now %d", ref.name, ref.referenceCount)
		ts.mutex.Unlock()
		return nil
	}
	ts.mutex.Unlock()
	return ts.Unload(handle)
}

/**
 * @brief Evicts the texture regardless of its reference count. The handle
 * resolves to nothing afterwards; a load still running for it is discarded.
 */
func (ts *TextureSystem) Unload(handle metadata.TextureHandle) error {
	ts.mutex.Lock()
	ref, ok := ts.textures[handle]
	if !ok {
		ts.mutex.Unlock()
		return core.Wrapf(core.ErrInvalidHandle, "unload %s", handle)
	}
	delete(ts.textures, handle)
	if ts.names[ref.name] == handle {
		delete(ts.names, ref.name)
	}
	ts.mutex.Unlock()

	core.LogDebug("texture '%s' unloaded", ref.name)
	ts.fire(core.EVENT_CODE_TEXTURE_UNLOADED, handle)
	return nil
}

/**
 * @brief Publishes finished loads into the table and kicks queued hot reloads.
 * Call once per frame, before anything that reads the table.
 */
func (ts *TextureSystem) Update() {
	ts.processReloads()

	for {
		ts.resultMutex.Lock()
		result, err := ts.results.Dequeue()
		ts.resultMutex.Unlock()
		if err != nil {
			return
		}
		ts.publish(result)
	}
}

func (ts *TextureSystem) publish(result textureLoadResult) {
	ts.mutex.Lock()
	ts.inFlight--
	ref, ok := ts.textures[result.handle]
	if !ok {
		ts.mutex.Unlock()
		core.LogDebug("discarding load of '%s', texture was unloaded meanwhile", result.name)
		return
	}

	if result.err != nil {
		if result.reload {
			// keep serving the previous version
			ts.mutex.Unlock()
			core.LogWarn("failed to reload texture '%s': %s", result.name, result.err)
			return
		}
		ref.state = TextureStateFailed
		ts.mutex.Unlock()
		core.LogError("failed to load texture '%s': %s", result.name, result.err)
		ts.fire(core.EVENT_CODE_TEXTURE_LOAD_FAILED, result.handle)
		return
	}

	ref.path = result.path
	if result.reload && ref.texture != nil {
		result.texture.Generation = ref.texture.Generation + 1
	}
	ref.texture = result.texture
	ref.state = TextureStateLoaded
	ts.mutex.Unlock()

	if result.reload {
		core.LogInfo("texture '%s' reloaded (generation %d)", result.name, result.texture.Generation)
		ts.fire(core.EVENT_CODE_TEXTURE_RELOADED, result.handle)
		return
	}
	core.LogDebug("successfully loaded texture '%s'", result.name)
	ts.fire(core.EVENT_CODE_TEXTURE_LOADED, result.handle)
}

func (ts *TextureSystem) queueReload(path string) {
	ts.reloadMutex.Lock()
	defer ts.reloadMutex.Unlock()
	ts.reloads = append(ts.reloads, path)
}

func (ts *TextureSystem) processReloads() {
	ts.reloadMutex.Lock()
	paths := ts.reloads
	ts.reloads = nil
	ts.reloadMutex.Unlock()
	if len(paths) == 0 {
		return
	}

	var deferred []string
	ts.mutex.Lock()
	for _, path := range paths {
		for handle, ref := range ts.textures {
			if ref.path != path || ref.state != TextureStateLoaded {
				continue
			}
			if ts.inFlight >= ts.Config.MaxInFlightLoads {
				deferred = append(deferred, path)
				break
			}
			if err := ts.submitLoad(textureLoadParams{handle: handle, name: ref.name, reload: true}); err != nil {
				if core.Is(err, core.ErrJobQueueFull) {
					deferred = append(deferred, path)
					break
				}
				core.LogWarn("cannot reload texture '%s': %s", ref.name, err)
			}
		}
	}
	ts.mutex.Unlock()

	if len(deferred) > 0 {
		ts.reloadMutex.Lock()
		ts.reloads = append(deferred, ts.reloads...)
		ts.reloadMutex.Unlock()
	}
}

// submitLoad must be called with ts.mutex held.
func (ts *TextureSystem) submitLoad(params textureLoadParams) error {
	if ts.jobSystem == nil || ts.assetManager == nil {
		return core.Wrapf(core.ErrUnknown, "texture system has no job system or asset manager to load '%s'", params.name)
	}
	err := ts.jobSystem.Submit(metadata.JobTask{
		JobType:     metadata.JOB_TYPE_RESOURCE_LOAD,
		InputParams: params,
		OnStart:     ts.textureLoadJobStart,
		OnComplete:  ts.textureLoadJobSuccess,
		OnFailure:   ts.textureLoadJobFail,
	})
	if err != nil {
		return err
	}
	ts.inFlight++
	return nil
}

// Runs on a job worker. Only disk IO and decoding happen here.
func (ts *TextureSystem) textureLoadJobStart(ctx context.Context, params interface{}) (interface{}, error) {
	loadParams := params.(textureLoadParams)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := ts.assetManager.Resolve(loadParams.name, metadata.ResourceTypeImage)
	if err != nil {
		return nil, err
	}
	// Stacked skyboxes depend on the row order, never flip.
	resource, err := ts.assetManager.LoadAsset(path, metadata.ResourceTypeImage, &metadata.ImageResourceParams{FlipY: false})
	if err != nil {
		return nil, err
	}
	defer ts.assetManager.UnloadAsset(resource)

	data, ok := resource.Data.(*metadata.ImageResourceData)
	if !ok {
		return nil, core.Wrapf(core.ErrUnknownResourceType, "resource '%s' is not an image", path)
	}

	texture := metadata.NewTexture2D(loadParams.name, data.Width, data.Height, data.Pixels)
	texture.ChannelCount = data.ChannelCount
	if data.HasTransparency {
		texture.Flags |= metadata.TextureFlagBits(metadata.TextureFlagHasTransparency)
	}

	return textureLoadResult{
		textureLoadParams: loadParams,
		path:              path,
		texture:           texture,
	}, nil
}

func (ts *TextureSystem) textureLoadJobSuccess(result interface{}) {
	ts.enqueueResult(result.(textureLoadResult))
}

func (ts *TextureSystem) textureLoadJobFail(params interface{}, err error) {
	ts.enqueueResult(textureLoadResult{
		textureLoadParams: params.(textureLoadParams),
		err:               err,
	})
}

func (ts *TextureSystem) enqueueResult(result textureLoadResult) {
	ts.resultMutex.Lock()
	defer ts.resultMutex.Unlock()
	// Capacity equals MaxInFlightLoads, so this only fails on a bookkeeping bug.
	if err := ts.results.Enqueue(result); err != nil {
		core.LogError("dropping load result of texture '%s': %s", result.name, err)
	}
}

func (ts *TextureSystem) fire(code core.SystemEventCode, handle metadata.TextureHandle) {
	if ts.events == nil {
		return
	}
	ts.events.Fire(core.EventContext{
		Type:   code,
		Sender: ts,
		Data:   handle,
	})
}
