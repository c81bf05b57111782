package systems

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// fakeTextures is an in-memory texture table where tests decide when a
// texture finishes loading.
type fakeTextures map[metadata.TextureHandle]*metadata.Texture

func (f fakeTextures) Get(handle metadata.TextureHandle) (*metadata.Texture, bool) {
	t, ok := f[handle]
	return t, ok
}

// stackedTexture builds a size x 6*size RGBA texture where every byte of face i equals i.
func stackedTexture(size uint32) *metadata.Texture {
	face := int(size * size * 4)
	pixels := make([]uint8, 0, face*6)
	for i := 0; i < 6; i++ {
		pixels = append(pixels, bytes.Repeat([]byte{uint8(i)}, face)...)
	}
	return metadata.NewTexture2D("sky", size, size*6, pixels)
}

func assertCubeArray(t *testing.T, texture *metadata.Texture, size uint32) {
	t.Helper()
	if texture.Size.Width != size || texture.Size.Height != size || texture.Size.DepthOrArrayLayers != 6 {
		t.Fatalf("size = %+v, want %dx%dx6", texture.Size, size, size)
	}
	if texture.ViewDescriptor == nil || texture.ViewDescriptor.Dimension != gputypes.TextureViewDimensionCubeArray {
		t.Fatalf("view descriptor = %+v, want cube array", texture.ViewDescriptor)
	}
	if texture.ViewDescriptor.ArrayLayerCount != 6 {
		t.Fatalf("array layer count = %d, want 6", texture.ViewDescriptor.ArrayLayerCount)
	}
	if texture.TextureType != metadata.TextureTypeCube {
		t.Fatalf("texture type = %d, want cube", texture.TextureType)
	}
}

func TestConvertSkyboxesLateLoad(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	handle := metadata.NewTextureHandle()
	registry.Submit(handle)

	for tick := 0; tick < 5; tick++ {
		report := ConvertSkyboxes(registry, textures, ConversionOptions{})
		if report.Pending != 1 || len(report.Results) != 0 {
			t.Fatalf("tick %d: unexpected report %+v", tick, report)
		}
	}

	texture := stackedTexture(4)
	before := texture.Pixels
	textures[handle] = texture

	report := ConvertSkyboxes(registry, textures, ConversionOptions{})
	if report.Converted != 1 || report.Pending != 0 || registry.Len() != 0 {
		t.Fatalf("unexpected report after load %+v", report)
	}
	if report.Results[0].Handle != handle || report.Results[0].Outcome != ConversionOutcomeConverted {
		t.Fatalf("unexpected result %+v", report.Results[0])
	}
	assertCubeArray(t, texture, 4)

	// The buffer is reinterpreted, never copied or resized.
	if len(texture.Pixels) != len(before) || &texture.Pixels[0] != &before[0] {
		t.Fatal("pixel buffer was reallocated")
	}
	if len(texture.Pixels) != texture.ByteSize() {
		t.Fatalf("pixel length %d does not match byte size %d", len(texture.Pixels), texture.ByteSize())
	}
}

func TestConvertSkyboxesFaceOrder(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	handle := metadata.NewTextureHandle()
	textures[handle] = stackedTexture(2)
	registry.Submit(handle)

	ConvertSkyboxes(registry, textures, ConversionOptions{})

	texture := textures[handle]
	for face := metadata.CubeFaceRight; face <= metadata.CubeFaceFront; face++ {
		layer := texture.Layer(uint32(face))
		if len(layer) != 2*2*4 {
			t.Fatalf("%s: layer has %d bytes", face, len(layer))
		}
		for _, b := range layer {
			if b != uint8(face) {
				t.Fatalf("%s: found byte %d, want %d", face, b, face)
			}
		}
	}
}

func TestConvertSkyboxesTwoReadyHandles(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	a, b := metadata.NewTextureHandle(), metadata.NewTextureHandle()
	textures[a] = stackedTexture(2)
	textures[b] = stackedTexture(8)
	registry.Submit(a)
	registry.Submit(b)

	report := ConvertSkyboxes(registry, textures, ConversionOptions{})
	if report.Converted != 2 || registry.Len() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Results[0].Handle != a || report.Results[1].Handle != b {
		t.Fatal("entries were not processed in submission order")
	}
	assertCubeArray(t, textures[a], 2)
	assertCubeArray(t, textures[b], 8)
}

func TestConvertSkyboxesNeverLoads(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	handle := metadata.NewTextureHandle()
	registry.Submit(handle)

	for tick := 0; tick < 1000; tick++ {
		report := ConvertSkyboxes(registry, textures, ConversionOptions{})
		if report.Pending != 1 {
			t.Fatalf("tick %d: pending = %d, want 1", tick, report.Pending)
		}
	}
	if pending := registry.Pending(); len(pending) != 1 || pending[0] != handle {
		t.Fatalf("unexpected pending list %v", pending)
	}
}

func TestConvertSkyboxesNoStarvation(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	missing := []metadata.TextureHandle{metadata.NewTextureHandle(), metadata.NewTextureHandle()}
	ready := metadata.NewTextureHandle()
	textures[ready] = stackedTexture(2)

	registry.Submit(missing[0])
	registry.Submit(missing[1])
	registry.Submit(ready)

	report := ConvertSkyboxes(registry, textures, ConversionOptions{})
	if report.Converted != 1 || report.Results[0].Handle != ready {
		t.Fatalf("ready entry behind unresolved ones was not converted: %+v", report)
	}
	pending := registry.Pending()
	if len(pending) != 2 || pending[0] != missing[0] || pending[1] != missing[1] {
		t.Fatalf("unresolved entries lost or reordered: %v", pending)
	}
}

func TestConvertSkyboxesIdempotent(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	handle := metadata.NewTextureHandle()
	textures[handle] = stackedTexture(4)
	original := bytes.Clone(textures[handle].Pixels)

	registry.Submit(handle)
	registry.Submit(handle)

	report := ConvertSkyboxes(registry, textures, ConversionOptions{})
	if report.Converted != 1 || report.Skipped != 1 || registry.Len() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	assertCubeArray(t, textures[handle], 4)

	// A later submission of an already converted texture is a no-op too.
	snapshot := *textures[handle]
	descriptor := *textures[handle].ViewDescriptor
	registry.Submit(handle)
	report = ConvertSkyboxes(registry, textures, ConversionOptions{})
	if report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if textures[handle].Size != snapshot.Size || *textures[handle].ViewDescriptor != descriptor {
		t.Fatal("converted texture was modified by a second conversion")
	}
	if !bytes.Equal(textures[handle].Pixels, original) {
		t.Fatal("conversion changed the pixel buffer")
	}
}

func TestConvertSkyboxesRejectsInvalidDimensions(t *testing.T) {
	for name, texture := range map[string]*metadata.Texture{
		"wrong aspect":   metadata.NewTexture2D("wide", 4, 20, make([]uint8, 4*20*4)),
		"square":         metadata.NewTexture2D("square", 4, 4, make([]uint8, 4*4*4)),
		"short buffer":   metadata.NewTexture2D("short", 4, 24, make([]uint8, 10)),
		"zero width":     metadata.NewTexture2D("zero", 0, 0, nil),
		"oversized data": metadata.NewTexture2D("big", 2, 12, make([]uint8, 2*12*4+1)),
	} {
		t.Run(name, func(t *testing.T) {
			textures := fakeTextures{}
			registry := NewSkyboxTextureConversion()
			handle := metadata.NewTextureHandle()
			textures[handle] = texture
			size := texture.Size
			registry.Submit(handle)

			report := ConvertSkyboxes(registry, textures, ConversionOptions{})
			if report.Rejected != 1 || registry.Len() != 0 {
				t.Fatalf("unexpected report %+v", report)
			}
			if !core.Is(report.Results[0].Err, core.ErrInvalidDimensions) {
				t.Fatalf("got error %v, want ErrInvalidDimensions", report.Results[0].Err)
			}
			if texture.Size != size || texture.ViewDescriptor != nil {
				t.Fatal("rejected texture was modified")
			}
		})
	}
}

func TestConvertSkyboxesExpires(t *testing.T) {
	textures := fakeTextures{}
	registry := NewSkyboxTextureConversion()
	handle := metadata.NewTextureHandle()
	registry.Submit(handle)

	opts := ConversionOptions{MaxPendingTicks: 3}
	for tick := 1; tick < 3; tick++ {
		if report := ConvertSkyboxes(registry, textures, opts); report.Expired != 0 {
			t.Fatalf("tick %d: expired too early", tick)
		}
	}
	report := ConvertSkyboxes(registry, textures, opts)
	if report.Expired != 1 || registry.Len() != 0 || report.Results[0].Outcome != ConversionOutcomeExpired {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestConvertStackedCubeViewDimension(t *testing.T) {
	texture := stackedTexture(2)
	converted, err := ConvertStackedCube(texture, gputypes.TextureViewDimensionCube)
	if err != nil || !converted {
		t.Fatalf("ConvertStackedCube: converted=%v err=%v", converted, err)
	}
	if texture.ViewDimension() != gputypes.TextureViewDimensionCube || !texture.IsCube() {
		t.Fatalf("view dimension = %v, want cube", texture.ViewDimension())
	}
}

func TestConvertStackedCubeRejectsArrays(t *testing.T) {
	texture := stackedTexture(2)
	if err := texture.ReinterpretStacked2DAsArray(6); err != nil {
		t.Fatal(err)
	}
	// Six layers but still viewed as a flat texture.
	if _, err := ConvertStackedCube(texture, gputypes.TextureViewDimensionCubeArray); !core.Is(err, core.ErrAlreadyArray) {
		t.Fatalf("got %v, want ErrAlreadyArray", err)
	}
}

func newTestSkyboxSystem(t *testing.T, config *SkyboxSystemConfig, textures TextureAssets, es *core.EventSystem) *SkyboxSystem {
	t.Helper()
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: 8})
	if err != nil {
		t.Fatal(err)
	}
	ss, err := NewSkyboxSystem(config, textures, gs, es)
	if err != nil {
		t.Fatalf("NewSkyboxSystem: unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = ss.Shutdown() })
	return ss
}

func TestSkyboxSystemSpawnAndConvert(t *testing.T) {
	textures := fakeTextures{}
	es := core.NewEventSystem()
	var converted []metadata.TextureHandle
	es.Register(core.EVENT_CODE_SKYBOX_CONVERTED, t, func(ctx core.EventContext) bool {
		converted = append(converted, ctx.Data.(metadata.TextureHandle))
		return true
	})

	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 2}, textures, es)

	handle := metadata.NewTextureHandle()
	skybox, err := ss.Spawn(metadata.NewSkyboxBundle(metadata.NewSkyboxMaterialFromTexture(handle)))
	if err != nil {
		t.Fatalf("Spawn: unexpected error: %v", err)
	}
	if skybox.Geometry == nil || len(skybox.Geometry.Indices) != 36 {
		t.Fatal("Spawn: skybox has no cube geometry")
	}
	if ss.CubeTexture(skybox) != nil {
		t.Fatal("CubeTexture: resolved before the texture loaded")
	}

	ss.Update()
	if stats := ss.Stats(); stats.Pending != 1 || stats.Submitted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	textures[handle] = stackedTexture(4)
	ss.Update()

	if len(converted) != 1 || converted[0] != handle {
		t.Fatalf("expected one converted event for %s, got %v", handle, converted)
	}
	if ss.CubeTexture(skybox) == nil {
		t.Fatal("CubeTexture: nil after conversion")
	}
	stats := ss.Stats()
	if stats.Converted != 1 || stats.Pending != 0 || stats.Ticks != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSkyboxSystemSpawnLimit(t *testing.T) {
	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 1}, fakeTextures{}, nil)
	bundle := metadata.NewSkyboxBundle(metadata.NewSkyboxMaterialFromColor(metadata.ColorPink))
	first, err := ss.Spawn(bundle)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ss.Spawn(bundle); err == nil {
		t.Fatal("Spawn: expected an error past MaxSkyboxCount")
	}
	// Color only skyboxes never queue a conversion.
	if ss.Stats().Submitted != 0 {
		t.Fatal("Spawn: color only material submitted a conversion")
	}
	if !ss.Despawn(first.ID) || len(ss.Skyboxes()) != 0 {
		t.Fatal("Despawn: skybox not removed")
	}
	if _, err := ss.Spawn(bundle); err != nil {
		t.Fatalf("Spawn after Despawn: unexpected error: %v", err)
	}
}

func TestSkyboxSystemSpawnDefaults(t *testing.T) {
	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 1}, fakeTextures{}, nil)
	skybox, err := ss.Spawn(metadata.SkyboxBundle{Visible: true})
	if err != nil {
		t.Fatalf("Spawn: unexpected error: %v", err)
	}
	if skybox.Bundle.Material.Color != metadata.ColorPink {
		t.Fatalf("default material color = %v, want pink", skybox.Bundle.Material.Color)
	}
	if skybox.Bundle.Material.HasTexture() {
		t.Fatal("default material has a texture")
	}
	if skybox.Bundle.Mesh != metadata.SkyboxMeshName || skybox.Bundle.Rotation != mgl32.QuatIdent() {
		t.Fatalf("unexpected defaults: mesh %q rotation %v", skybox.Bundle.Mesh, skybox.Bundle.Rotation)
	}
}

func TestSkyboxSystemRejectsFlatViews(t *testing.T) {
	_, err := NewSkyboxSystem(&SkyboxSystemConfig{
		MaxSkyboxCount: 1,
		ViewDimension:  gputypes.TextureViewDimension2D,
	}, fakeTextures{}, nil, nil)
	if !core.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestSkyboxSystemRejectedEvent(t *testing.T) {
	textures := fakeTextures{}
	es := core.NewEventSystem()
	rejected := 0
	es.Register(core.EVENT_CODE_SKYBOX_REJECTED, t, func(core.EventContext) bool {
		rejected++
		return true
	})
	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 1, MaxPendingTicks: 2}, textures, es)

	bad := metadata.NewTextureHandle()
	textures[bad] = metadata.NewTexture2D("bad", 3, 3, make([]uint8, 3*3*4))
	ss.Submit(bad)
	ss.Submit(metadata.NewTextureHandle())

	ss.Update()
	ss.Update()

	if rejected != 2 {
		t.Fatalf("expected two rejected events, got %d", rejected)
	}
	if stats := ss.Stats(); stats.Rejected != 1 || stats.Expired != 1 || stats.Pending != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSkyboxSystemResubmitOnReload(t *testing.T) {
	textures := fakeTextures{}
	es := core.NewEventSystem()
	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 1, ResubmitOnReload: true}, textures, es)

	handle := metadata.NewTextureHandle()
	textures[handle] = stackedTexture(2)
	ss.Submit(handle)
	ss.Update()

	// The texture system replaces the texture with a fresh flat copy on reload.
	textures[handle] = stackedTexture(2)
	es.Fire(core.EventContext{Type: core.EVENT_CODE_TEXTURE_RELOADED, Data: handle})
	if ss.Stats().Pending != 1 {
		t.Fatal("reloaded texture was not queued again")
	}

	// Reloads of textures that were never converted are ignored.
	es.Fire(core.EventContext{Type: core.EVENT_CODE_TEXTURE_RELOADED, Data: metadata.NewTextureHandle()})
	if ss.Stats().Pending != 1 {
		t.Fatal("unrelated reload queued a conversion")
	}

	ss.Update()
	assertCubeArray(t, textures[handle], 2)
	if ss.Stats().Converted != 2 {
		t.Fatalf("unexpected stats %+v", ss.Stats())
	}
}

func TestSkyboxSystemForgetsUnloadedTextures(t *testing.T) {
	textures := fakeTextures{}
	es := core.NewEventSystem()
	ss := newTestSkyboxSystem(t, &SkyboxSystemConfig{MaxSkyboxCount: 1, ResubmitOnReload: true}, textures, es)

	handle := metadata.NewTextureHandle()
	textures[handle] = stackedTexture(2)
	ss.Submit(handle)
	ss.Update()

	tracked := func() int {
		ss.mutex.Lock()
		defer ss.mutex.Unlock()
		return len(ss.converted)
	}
	if tracked() != 1 {
		t.Fatalf("tracking %d converted textures, want 1", tracked())
	}

	delete(textures, handle)
	es.Fire(core.EventContext{Type: core.EVENT_CODE_TEXTURE_UNLOADED, Data: handle})
	if tracked() != 0 {
		t.Fatalf("tracking %d converted textures after unload, want 0", tracked())
	}
	// A late reload of the unloaded handle queues nothing.
	es.Fire(core.EventContext{Type: core.EVENT_CODE_TEXTURE_RELOADED, Data: handle})
	if ss.Stats().Pending != 0 {
		t.Fatal("reload of an unloaded texture queued a conversion")
	}
}
