package renderer

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

func cubeTexture(t *testing.T) *metadata.Texture {
	t.Helper()
	texture := metadata.NewTexture2D("sky", 2, 12, make([]uint8, 2*12*4))
	if err := texture.ReinterpretStacked2DAsArray(metadata.SkyboxLayerCount); err != nil {
		t.Fatal(err)
	}
	texture.SetViewDimension(gputypes.TextureViewDimensionCubeArray)
	return texture
}

func TestHeadlessFrameOrdering(t *testing.T) {
	hb := NewHeadlessBackend()
	if err := hb.EndFrame(0); !core.Is(err, core.ErrUnknown) {
		t.Fatalf("EndFrame without BeginFrame: got %v", err)
	}
	if err := hb.BeginFrame(0); err != nil {
		t.Fatal(err)
	}
	if err := hb.BeginFrame(0); err == nil {
		t.Fatal("BeginFrame twice: expected an error")
	}
	if err := hb.EndFrame(0); err != nil {
		t.Fatal(err)
	}
	if hb.Stats().Frames != 1 {
		t.Fatalf("Frames = %d, want 1", hb.Stats().Frames)
	}
}

func TestHeadlessDrawSkybox(t *testing.T) {
	hb := NewHeadlessBackend()
	if err := hb.Initialize("test", 640, 480); err != nil {
		t.Fatal(err)
	}
	geometry := &metadata.Geometry{
		Name:     "tri",
		Vertices: make([]metadata.Vertex3D, 3),
		Indices:  []uint32{0, 1, 2},
	}
	if err := hb.CreateGeometry(geometry); err != nil {
		t.Fatalf("CreateGeometry: unexpected error: %v", err)
	}
	if err := hb.CreateGeometry(&metadata.Geometry{Name: "bad", Indices: []uint32{1}}); !core.Is(err, core.ErrInvalidHandle) {
		t.Fatalf("CreateGeometry out of range: got %v", err)
	}

	packet := &metadata.RenderViewPacket{
		ViewName:   "skybox",
		Geometries: []*metadata.GeometryRenderData{{Geometry: geometry}},
	}
	texture := cubeTexture(t)

	if err := hb.BeginFrame(0); err != nil {
		t.Fatal(err)
	}
	if err := hb.DrawSkybox(packet, &metadata.SkyboxPacketData{}); err != nil {
		t.Fatalf("DrawSkybox color only: unexpected error: %v", err)
	}
	if err := hb.DrawSkybox(packet, &metadata.SkyboxPacketData{Texture: texture}); !core.Is(err, core.ErrTextureNotFound) {
		t.Fatalf("DrawSkybox before upload: got %v", err)
	}
	if err := hb.TextureCreate(texture); err != nil {
		t.Fatalf("TextureCreate: unexpected error: %v", err)
	}
	if err := hb.DrawSkybox(packet, &metadata.SkyboxPacketData{Texture: texture}); err != nil {
		t.Fatalf("DrawSkybox: unexpected error: %v", err)
	}

	flat := metadata.NewTexture2D("flat", 2, 12, make([]uint8, 2*12*4))
	if err := hb.TextureCreate(flat); err != nil {
		t.Fatal(err)
	}
	if err := hb.DrawSkybox(packet, &metadata.SkyboxPacketData{Texture: flat}); !core.Is(err, core.ErrInvalidDimensions) {
		t.Fatalf("DrawSkybox with a flat texture: got %v", err)
	}
	if err := hb.EndFrame(0); err != nil {
		t.Fatal(err)
	}

	stats := hb.Stats()
	if stats.ColorOnlySkybox != 1 || stats.TexturedSkybox != 1 || stats.TextureUploads != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Width != 640 || stats.Height != 480 {
		t.Fatalf("size = %dx%d, want 640x480", stats.Width, stats.Height)
	}
}

func TestHeadlessRejectsShortPixels(t *testing.T) {
	hb := NewHeadlessBackend()
	texture := metadata.NewTexture2D("short", 2, 2, make([]uint8, 3))
	if err := hb.TextureCreate(texture); !core.Is(err, core.ErrInvalidDimensions) {
		t.Fatalf("TextureCreate: got %v, want ErrInvalidDimensions", err)
	}
}
