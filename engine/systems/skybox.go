package systems

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// TextureAssets resolves handles to textures that have finished loading.
type TextureAssets interface {
	Get(handle metadata.TextureHandle) (*metadata.Texture, bool)
}

type pendingConversion struct {
	handle metadata.TextureHandle
	// scheduler passes during which the handle did not resolve
	ticks uint32
}

/**
 * @brief The ordered worklist of textures waiting to be turned into skybox
 * cube arrays. Not safe for concurrent use.
 */
type SkyboxTextureConversion struct {
	entries []pendingConversion
}

func NewSkyboxTextureConversion() *SkyboxTextureConversion {
	return &SkyboxTextureConversion{}
}

/**
 * @brief Queues a stacked skybox texture for conversion. The texture does not
 * need to be loaded yet. Submitting the same handle twice creates two entries.
 */
func (c *SkyboxTextureConversion) Submit(handle metadata.TextureHandle) {
	c.entries = append(c.entries, pendingConversion{handle: handle})
}

func (c *SkyboxTextureConversion) Len() int {
	return len(c.entries)
}

// Pending returns a copy of the queued handles in submission order.
func (c *SkyboxTextureConversion) Pending() []metadata.TextureHandle {
	out := make([]metadata.TextureHandle, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.handle
	}
	return out
}

func (c *SkyboxTextureConversion) removeAt(i int) {
	copy(c.entries[i:], c.entries[i+1:])
	c.entries[len(c.entries)-1] = pendingConversion{}
	c.entries = c.entries[:len(c.entries)-1]
}

type ConversionOutcome int

const (
	/** @brief The texture was reinterpreted as a 6 layer cube array. */
	ConversionOutcomeConverted ConversionOutcome = iota
	/** @brief The texture already was a cube. Nothing was touched. */
	ConversionOutcomeSkipped
	/** @brief The texture is not a stacked N x 6N image. */
	ConversionOutcomeRejected
	/** @brief The handle did not resolve within the configured number of passes. */
	ConversionOutcomeExpired
)

func (o ConversionOutcome) String() string {
	switch o {
	case ConversionOutcomeConverted:
		return "converted"
	case ConversionOutcomeSkipped:
		return "skipped"
	case ConversionOutcomeRejected:
		return "rejected"
	case ConversionOutcomeExpired:
		return "expired"
	default:
		return "unknown"
	}
}

type ConversionResult struct {
	Handle  metadata.TextureHandle
	Outcome ConversionOutcome
	Err     error
}

/** @brief What a single scheduler pass did. */
type ConversionReport struct {
	Converted int
	Skipped   int
	Rejected  int
	Expired   int
	// Entries still waiting after the pass.
	Pending int
	// One result per entry removed during the pass, in processing order.
	Results []ConversionResult
}

func (r *ConversionReport) add(handle metadata.TextureHandle, outcome ConversionOutcome, err error) {
	switch outcome {
	case ConversionOutcomeConverted:
		r.Converted++
	case ConversionOutcomeSkipped:
		r.Skipped++
	case ConversionOutcomeRejected:
		r.Rejected++
	case ConversionOutcomeExpired:
		r.Expired++
	}
	r.Results = append(r.Results, ConversionResult{Handle: handle, Outcome: outcome, Err: err})
}

type ConversionOptions struct {
	/** @brief Cube or cube array. Anything else means cube array. */
	ViewDimension gputypes.TextureViewDimension
	/** @brief Drop entries that stay unresolved this many passes. 0 keeps them forever. */
	MaxPendingTicks uint32
}

/**
 * @brief Runs one scheduler pass. Every entry whose texture is present is
 * removed and converted in place; the others stay queued. Never blocks and
 * never fails as a whole: problems are reported per entry.
 */
func ConvertSkyboxes(registry *SkyboxTextureConversion, textures TextureAssets, opts ConversionOptions) ConversionReport {
	var report ConversionReport

	i := 0
	for i < len(registry.entries) {
		entry := &registry.entries[i]
		texture, ok := textures.Get(entry.handle)
		if !ok || texture == nil {
			entry.ticks++
			if opts.MaxPendingTicks > 0 && entry.ticks >= opts.MaxPendingTicks {
				handle := entry.handle
				registry.removeAt(i)
				report.add(handle, ConversionOutcomeExpired, nil)
				continue
			}
			i++
			continue
		}

		handle := entry.handle
		// i now points at the next entry
		registry.removeAt(i)

		converted, err := ConvertStackedCube(texture, opts.ViewDimension)
		switch {
		case err != nil:
			report.add(handle, ConversionOutcomeRejected, err)
		case converted:
			report.add(handle, ConversionOutcomeConverted, nil)
		default:
			report.add(handle, ConversionOutcomeSkipped, nil)
		}
	}

	report.Pending = len(registry.entries)
	return report
}

/**
 * @brief Reinterprets a single layer N x 6N texture as 6 layers of N x N and
 * views it as a cube (array). The pixel buffer is not touched. A texture that
 * already is a cube is left alone and false is returned.
 */
func ConvertStackedCube(texture *metadata.Texture, dimension gputypes.TextureViewDimension) (bool, error) {
	if texture.IsCube() {
		return false, nil
	}
	if err := texture.ValidateStackedCube(); err != nil {
		return false, err
	}
	if err := texture.ReinterpretStacked2DAsArray(metadata.SkyboxLayerCount); err != nil {
		return false, err
	}
	if dimension != gputypes.TextureViewDimensionCube {
		dimension = gputypes.TextureViewDimensionCubeArray
	}
	texture.SetViewDimension(dimension)
	texture.TextureType = metadata.TextureTypeCube
	return true, nil
}

type SkyboxSystemConfig struct {
	/** @brief The maximum number of skyboxes that can be spawned at once. */
	MaxSkyboxCount uint32
	/** @brief Cube or cube array. Defaults to cube array. */
	ViewDimension gputypes.TextureViewDimension
	/** @brief Drop conversions that stay unresolved this many frames. 0 waits forever. */
	MaxPendingTicks uint32
	/** @brief Queue a converted texture again when it is hot reloaded. */
	ResubmitOnReload bool
	/** @brief Side length of the cube skyboxes are drawn with. */
	CubeSize float32
}

type SkyboxStats struct {
	Ticks     uint64
	Submitted uint64
	Converted uint64
	Skipped   uint64
	Rejected  uint64
	Expired   uint64
	Pending   int
}

type SkyboxSystem struct {
	Config *SkyboxSystemConfig

	mutex       sync.Mutex
	conversions *SkyboxTextureConversion
	converted   map[metadata.TextureHandle]struct{}
	skyboxes    []*metadata.Skybox
	nextID      uint32
	cube        *metadata.Geometry
	stats       SkyboxStats

	textures       TextureAssets
	geometrySystem *GeometrySystem
	events         *core.EventSystem
}

func NewSkyboxSystem(config *SkyboxSystemConfig, textures TextureAssets, gs *GeometrySystem, es *core.EventSystem) (*SkyboxSystem, error) {
	if textures == nil {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewSkyboxSystem - a texture table is required")
		core.LogError("%s", err)
		return nil, err
	}
	if config.MaxSkyboxCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewSkyboxSystem - config.MaxSkyboxCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	switch config.ViewDimension {
	case gputypes.TextureViewDimensionCube:
	case gputypes.TextureViewDimension1D, gputypes.TextureViewDimension2D,
		gputypes.TextureViewDimension2DArray, gputypes.TextureViewDimension3D:
		err := core.Wrapf(core.ErrInvalidConfig, "func NewSkyboxSystem - skyboxes must be viewed as cube or cube array")
		core.LogError("%s", err)
		return nil, err
	default:
		config.ViewDimension = gputypes.TextureViewDimensionCubeArray
	}
	if config.CubeSize <= 0 {
		config.CubeSize = 10.0
	}

	ss := &SkyboxSystem{
		Config:         config,
		conversions:    NewSkyboxTextureConversion(),
		converted:      make(map[metadata.TextureHandle]struct{}),
		textures:       textures,
		geometrySystem: gs,
		events:         es,
	}

	if es != nil {
		es.Register(core.EVENT_CODE_TEXTURE_UNLOADED, ss, ss.onTextureUnloaded)
		if config.ResubmitOnReload {
			es.Register(core.EVENT_CODE_TEXTURE_RELOADED, ss, ss.onTextureReloaded)
		}
	}

	return ss, nil
}

func (ss *SkyboxSystem) Shutdown() error {
	if ss.events != nil {
		ss.events.Unregister(core.EVENT_CODE_TEXTURE_UNLOADED, ss)
		ss.events.Unregister(core.EVENT_CODE_TEXTURE_RELOADED, ss)
	}

	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	if ss.cube != nil && ss.geometrySystem != nil {
		ss.geometrySystem.Release(ss.cube)
		ss.cube = nil
	}
	ss.skyboxes = nil
	ss.conversions = NewSkyboxTextureConversion()
	ss.converted = make(map[metadata.TextureHandle]struct{})
	return nil
}

/**
 * @brief Queues a stacked skybox texture for conversion. Returns immediately;
 * the texture is converted on the first Update after it has loaded.
 */
func (ss *SkyboxSystem) Submit(handle metadata.TextureHandle) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	ss.conversions.Submit(handle)
	ss.stats.Submitted++
}

/**
 * @brief Runs the conversion pass. Call once per frame, after the texture
 * table has been updated and before the frame is drawn.
 */
func (ss *SkyboxSystem) Update() ConversionReport {
	ss.mutex.Lock()
	report := ConvertSkyboxes(ss.conversions, ss.textures, ConversionOptions{
		ViewDimension:   ss.Config.ViewDimension,
		MaxPendingTicks: ss.Config.MaxPendingTicks,
	})
	ss.stats.Ticks++
	ss.stats.Converted += uint64(report.Converted)
	ss.stats.Skipped += uint64(report.Skipped)
	ss.stats.Rejected += uint64(report.Rejected)
	ss.stats.Expired += uint64(report.Expired)
	ss.stats.Pending = report.Pending
	for _, r := range report.Results {
		if r.Outcome == ConversionOutcomeConverted || r.Outcome == ConversionOutcomeSkipped {
			ss.converted[r.Handle] = struct{}{}
		}
	}
	ss.mutex.Unlock()

	// Listeners may call back into the system.
	for _, r := range report.Results {
		switch r.Outcome {
		case ConversionOutcomeConverted:
			core.LogInfo("skybox texture %s converted to a %d layer cube array", r.Handle, metadata.SkyboxLayerCount)
			ss.fire(core.EVENT_CODE_SKYBOX_CONVERTED, r.Handle)
		case ConversionOutcomeSkipped:
			core.LogDebug("skybox texture %s already is a cube, skipping", r.Handle)
		case ConversionOutcomeRejected:
			core.LogWarn("skybox texture %s dropped: %s", r.Handle, r.Err)
			ss.fire(core.EVENT_CODE_SKYBOX_REJECTED, r.Handle)
		case ConversionOutcomeExpired:
			core.LogWarn("skybox texture %s dropped: not loaded after %d frames", r.Handle, ss.Config.MaxPendingTicks)
			ss.fire(core.EVENT_CODE_SKYBOX_REJECTED, r.Handle)
		}
	}

	return report
}

func (ss *SkyboxSystem) Stats() SkyboxStats {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	stats := ss.stats
	stats.Pending = ss.conversions.Len()
	return stats
}

// Pending returns the handles still waiting for conversion.
func (ss *SkyboxSystem) Pending() []metadata.TextureHandle {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	return ss.conversions.Pending()
}

/**
 * @brief Creates a skybox from the bundle. A textured material has its texture
 * queued for conversion; the skybox renders with the material color alone
 * until the conversion is done.
 */
func (ss *SkyboxSystem) Spawn(bundle metadata.SkyboxBundle) (*metadata.Skybox, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if uint32(len(ss.skyboxes)) >= ss.Config.MaxSkyboxCount {
		err := core.Wrapf(core.ErrInvalidConfig, "cannot spawn more than %d skyboxes", ss.Config.MaxSkyboxCount)
		core.LogError("%s", err)
		return nil, err
	}

	if bundle.Material.IsZero() {
		bundle.Material = metadata.DefaultSkyboxMaterial()
	}
	if bundle.Mesh == "" {
		bundle.Mesh = metadata.SkyboxMeshName
	}
	if bundle.Rotation == (mgl32.Quat{}) {
		bundle.Rotation = mgl32.QuatIdent()
	}

	geometry, err := ss.skyboxCube()
	if err != nil {
		return nil, err
	}

	skybox := &metadata.Skybox{
		ID:       ss.nextID,
		Bundle:   bundle,
		Geometry: geometry,
	}
	ss.nextID++
	ss.skyboxes = append(ss.skyboxes, skybox)

	if bundle.Material.HasTexture() {
		ss.conversions.Submit(bundle.Material.Cubemap.Texture)
		ss.stats.Submitted++
	}

	core.LogDebug("skybox %d spawned", skybox.ID)
	return skybox, nil
}

// Despawn removes the skybox. Its texture is left in the texture table.
func (ss *SkyboxSystem) Despawn(id uint32) bool {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	for i, s := range ss.skyboxes {
		if s.ID == id {
			ss.skyboxes = append(ss.skyboxes[:i], ss.skyboxes[i+1:]...)
			return true
		}
	}
	return false
}

// Skyboxes returns the spawned skyboxes in spawn order.
func (ss *SkyboxSystem) Skyboxes() []*metadata.Skybox {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	out := make([]*metadata.Skybox, len(ss.skyboxes))
	copy(out, ss.skyboxes)
	return out
}

/**
 * @brief Returns the texture a skybox should be drawn with, or nil while the
 * conversion is still pending or when the material has no texture.
 */
func (ss *SkyboxSystem) CubeTexture(skybox *metadata.Skybox) *metadata.Texture {
	if skybox == nil || !skybox.Bundle.Material.HasTexture() {
		return nil
	}
	texture, ok := ss.textures.Get(skybox.Bundle.Material.Cubemap.Texture)
	if !ok || !texture.IsCube() {
		return nil
	}
	return texture
}

// skyboxCube must be called with ss.mutex held.
func (ss *SkyboxSystem) skyboxCube() (*metadata.Geometry, error) {
	if ss.cube != nil {
		return ss.cube, nil
	}
	config := GenerateSkyboxCube(ss.Config.CubeSize)
	if ss.geometrySystem == nil {
		ss.cube = &metadata.Geometry{
			ID:       InvalidGeometryID,
			Name:     config.Name,
			Center:   config.Center,
			Extents:  config.Extents,
			Vertices: config.Vertices,
			Indices:  config.Indices,
		}
		return ss.cube, nil
	}
	geometry, err := ss.geometrySystem.AcquireFromConfig(config, true)
	if err != nil {
		return nil, err
	}
	ss.cube = geometry
	return ss.cube, nil
}

func (ss *SkyboxSystem) onTextureReloaded(context core.EventContext) bool {
	handle, ok := context.Data.(metadata.TextureHandle)
	if !ok {
		return false
	}
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	if _, ok := ss.converted[handle]; !ok {
		return false
	}
	delete(ss.converted, handle)
	ss.conversions.Submit(handle)
	ss.stats.Submitted++
	core.LogDebug("skybox texture %s reloaded, queued for conversion again", handle)
	return false
}

// Unloaded handles never resolve again, stop tracking them.
func (ss *SkyboxSystem) onTextureUnloaded(context core.EventContext) bool {
	handle, ok := context.Data.(metadata.TextureHandle)
	if !ok {
		return false
	}
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	delete(ss.converted, handle)
	return false
}

func (ss *SkyboxSystem) fire(code core.SystemEventCode, handle metadata.TextureHandle) {
	if ss.events == nil {
		return
	}
	ss.events.Fire(core.EventContext{
		Type:   code,
		Sender: ss,
		Data:   handle,
	})
}
