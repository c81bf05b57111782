package views

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/math"
	"github.com/spaghettifunk/skybox/engine/renderer/components"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

func newView(camera *components.Camera) *RenderViewSkybox {
	return NewRenderViewSkybox(&metadata.RenderViewConfig{
		Name:   "skybox",
		Type:   metadata.RENDERER_VIEW_KNOWN_TYPE_SKYBOX,
		Width:  1000,
		Height: 500,
	}, &metadata.Shader{Name: metadata.BUILTIN_SHADER_NAME_SKYBOX}, camera)
}

func newSkybox(rotation mgl32.Quat) *metadata.Skybox {
	bundle := metadata.NewSkyboxBundle(metadata.NewSkyboxMaterialFromColor(metadata.ColorPink))
	bundle.Rotation = rotation
	return &metadata.Skybox{
		ID:       1,
		Bundle:   bundle,
		Geometry: &metadata.Geometry{ID: 3, Name: metadata.SkyboxMeshName},
	}
}

// matNear compares two matrices entry by entry with an absolute tolerance.
// ApproxEqual is relative and rejects tiny values compared against zero.
func matNear(a, b mgl32.Mat4) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > 1e-5 {
			return false
		}
	}
	return true
}

func TestSkyboxViewProjection(t *testing.T) {
	vs := newView(components.NewCamera())
	want := mgl32.Perspective(math.DegToRad(defaultFOV), 2, defaultNearClip, defaultFarClip)
	if !matNear(vs.ProjectionMatrix, want) {
		t.Fatalf("projection for 1000x500 = %v, want %v", vs.ProjectionMatrix, want)
	}

	vs.OnResize(0, 0)
	if !matNear(vs.ProjectionMatrix, want) {
		t.Fatal("OnResize(0, 0) changed the projection")
	}

	vs.OnResize(600, 600)
	want = mgl32.Perspective(math.DegToRad(defaultFOV), 1, defaultNearClip, defaultFarClip)
	if !matNear(vs.ProjectionMatrix, want) {
		t.Fatal("OnResize(600, 600) did not rebuild the projection")
	}
}

func TestSkyboxViewKeepsLargeSizes(t *testing.T) {
	vs := NewRenderViewSkybox(&metadata.RenderViewConfig{
		Name:   "wide",
		Type:   metadata.RENDERER_VIEW_KNOWN_TYPE_SKYBOX,
		Width:  70000,
		Height: 35000,
	}, &metadata.Shader{Name: metadata.BUILTIN_SHADER_NAME_SKYBOX}, components.NewCamera())
	want := mgl32.Perspective(math.DegToRad(defaultFOV), 2, defaultNearClip, defaultFarClip)
	if !matNear(vs.ProjectionMatrix, want) {
		t.Fatalf("projection for 70000x35000 = %v, want aspect 2", vs.ProjectionMatrix)
	}
}

func TestSkyboxViewIgnoresCameraTranslation(t *testing.T) {
	camera := components.NewCamera()
	camera.SetPosition(mgl32.Vec3{5, 3, 2})
	vs := newView(camera)

	packet, err := vs.BuildPacket(newSkybox(mgl32.QuatIdent()), nil)
	if err != nil {
		t.Fatalf("BuildPacket: unexpected error: %v", err)
	}
	if !matNear(packet.ViewMatrix, mgl32.Ident4()) {
		t.Fatalf("view matrix keeps the camera translation: %v", packet.ViewMatrix)
	}
	if packet.ViewPosition != (mgl32.Vec3{5, 3, 2}) {
		t.Fatalf("view position = %v", packet.ViewPosition)
	}
	if len(packet.Geometries) != 1 || !matNear(packet.Geometries[0].Model, mgl32.Ident4()) {
		t.Fatal("expected a single geometry with an identity model")
	}
	data := packet.ExtendedData.(*metadata.SkyboxPacketData)
	if data.Texture != nil {
		t.Fatal("color only skybox got a texture")
	}
	if data.Color != metadata.ColorPink {
		t.Fatalf("color = %v, want pink", data.Color)
	}
}

func TestSkyboxViewUsesRotationAsModel(t *testing.T) {
	rotation := mgl32.QuatRotate(math.K_HALF_PI, mgl32.Vec3{0, 1, 0})
	packet, err := newView(components.NewCamera()).BuildPacket(newSkybox(rotation), nil)
	if err != nil {
		t.Fatalf("BuildPacket: unexpected error: %v", err)
	}
	if !matNear(packet.Geometries[0].Model, rotation.Mat4()) {
		t.Fatalf("model = %v, want %v", packet.Geometries[0].Model, rotation.Mat4())
	}
}

func TestSkyboxViewBindsOnlyCubeTextures(t *testing.T) {
	vs := newView(components.NewCamera())
	skybox := newSkybox(mgl32.QuatIdent())

	texture := metadata.NewTexture2D("sky", 2, 12, make([]uint8, 2*12*4))
	packet, err := vs.BuildPacket(skybox, texture)
	if err != nil {
		t.Fatalf("BuildPacket: unexpected error: %v", err)
	}
	if packet.ExtendedData.(*metadata.SkyboxPacketData).Texture != nil {
		t.Fatal("a stacked texture was bound before conversion")
	}

	if err := texture.ReinterpretStacked2DAsArray(metadata.SkyboxLayerCount); err != nil {
		t.Fatal(err)
	}
	texture.SetViewDimension(gputypes.TextureViewDimensionCubeArray)
	packet, err = vs.BuildPacket(skybox, texture)
	if err != nil {
		t.Fatalf("BuildPacket: unexpected error: %v", err)
	}
	if packet.ExtendedData.(*metadata.SkyboxPacketData).Texture != texture {
		t.Fatal("converted texture was not bound")
	}
}

func TestSkyboxViewRequiresGeometry(t *testing.T) {
	_, err := newView(components.NewCamera()).BuildPacket(&metadata.Skybox{}, nil)
	if !core.Is(err, core.ErrInvalidHandle) {
		t.Fatalf("BuildPacket: got %v, want ErrInvalidHandle", err)
	}
}
