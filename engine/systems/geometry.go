package systems

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

const InvalidGeometryID uint32 = 0xFFFFFFFF

type GeometrySystemConfig struct {
	/**
	 * @brief Max number of geometries that can be loaded at once.
	 * NOTE: Should be significantly greater than the number of static meshes because
	 * the there can and will be more than one of these per mesh.
	 * Take other systems into account as well.
	 */
	MaxGeometryCount uint32
}

type geometryReference struct {
	ReferenceCount uint64
	AutoRelease    bool
	Geometry       *metadata.Geometry
}

type GeometrySystem struct {
	Config          *GeometrySystemConfig
	DefaultGeometry *metadata.Geometry
	// Array of registered geometries.
	RegisteredGeometries []*geometryReference

	mutex sync.Mutex
}

func NewGeometrySystem(config *GeometrySystemConfig) (*GeometrySystem, error) {
	if config.MaxGeometryCount == 0 {
		err := core.Wrapf(core.ErrInvalidConfig, "func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogWarn("%s", err)
		return nil, err
	}

	gs := &GeometrySystem{
		Config:               config,
		RegisteredGeometries: make([]*geometryReference, config.MaxGeometryCount),
	}

	// Invalidate all geometries in the array.
	for i := range gs.RegisteredGeometries {
		gs.RegisteredGeometries[i] = &geometryReference{
			Geometry: &metadata.Geometry{ID: InvalidGeometryID},
		}
	}

	gs.DefaultGeometry = gs.createDefaultGeometry()

	return gs, nil
}

func (gs *GeometrySystem) Shutdown() error {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()
	for _, ref := range gs.RegisteredGeometries {
		if ref.Geometry.ID != InvalidGeometryID {
			gs.destroyGeometry(ref)
		}
	}
	return nil
}

/**
 * @brief Acquires an existing geometry by id.
 */
func (gs *GeometrySystem) AcquireByID(id uint32) (*metadata.Geometry, error) {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()
	if id < uint32(len(gs.RegisteredGeometries)) && gs.RegisteredGeometries[id].Geometry.ID != InvalidGeometryID {
		gs.RegisteredGeometries[id].ReferenceCount++
		return gs.RegisteredGeometries[id].Geometry, nil
	}

	err := core.Wrapf(core.ErrInvalidHandle, "func AcquireByID cannot load invalid geometry id %d", id)
	core.LogError("%s", err)
	return nil, err
}

/**
 * @brief Registers and acquires a new geometry using the given config.
 *
 * @param config The geometry configuration.
 * @param autoRelease Indicates if the acquired geometry should be unloaded when its reference count reaches 0.
 */
func (gs *GeometrySystem) AcquireFromConfig(config *metadata.GeometryConfig, autoRelease bool) (*metadata.Geometry, error) {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	var ref *geometryReference
	for i, r := range gs.RegisteredGeometries {
		if r.Geometry.ID == InvalidGeometryID {
			// Found empty slot.
			ref = r
			ref.Geometry.ID = uint32(i)
			break
		}
	}

	if ref == nil {
		err := core.Wrapf(core.ErrInvalidConfig, "unable to obtain free slot for geometry. Adjust configuration to allow more space")
		core.LogError("%s", err)
		return nil, err
	}

	ref.AutoRelease = autoRelease
	ref.ReferenceCount = 1

	geometry := ref.Geometry
	geometry.Name = config.Name
	geometry.Center = config.Center
	geometry.Extents = config.Extents
	geometry.Vertices = config.Vertices
	geometry.Indices = config.Indices
	geometry.Generation++

	return geometry, nil
}

/**
 * @brief Releases a reference to the provided geometry.
 */
func (gs *GeometrySystem) Release(geometry *metadata.Geometry) {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if geometry == nil || geometry.ID >= uint32(len(gs.RegisteredGeometries)) {
		core.LogWarn("geometry system release cannot release invalid geometry id. Nothing was done.")
		return
	}

	ref := gs.RegisteredGeometries[geometry.ID]
	if ref.Geometry != geometry {
		core.LogError("Geometry id mismatch. Check registration logic, as this should never occur.")
		return
	}
	if ref.ReferenceCount > 0 {
		ref.ReferenceCount--
	}
	if ref.ReferenceCount < 1 && ref.AutoRelease {
		gs.destroyGeometry(ref)
	}
}

// GetDefault returns the default geometry, a 10x10 plane.
func (gs *GeometrySystem) GetDefault() *metadata.Geometry {
	return gs.DefaultGeometry
}

/**
 * @brief Generates configuration for a cube with outward facing sides.
 *
 * @param width The overall width of the cube. Must be non-zero.
 * @param height The overall height of the cube. Must be non-zero.
 * @param depth The overall depth of the cube. Must be non-zero.
 * @param tileX The number of times the texture should tile across each side on the x-axis.
 * @param tileY The number of times the texture should tile across each side on the y-axis.
 * @param name The name of the generated geometry.
 */
func GenerateCubeConfig(width, height, depth, tileX, tileY float32, name string) *metadata.GeometryConfig {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1
	}
	if tileX == 0 {
		core.LogWarn("tileX must be nonzero. Defaulting to one.")
		tileX = 1.0
	}
	if tileY == 0 {
		core.LogWarn("tileY must be nonzero. Defaulting to one.")
		tileY = 1.0
	}

	minX, minY, minZ := -width*0.5, -height*0.5, -depth*0.5
	maxX, maxY, maxZ := width*0.5, height*0.5, depth*0.5

	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex3D, 0, 4*6), // 4 verts per side, 6 sides
		Indices:  make([]uint32, 0, 6*6),           // 6 indices per side, 6 sides
		Extents: metadata.Extents3D{
			Min: mgl32.Vec3{minX, minY, minZ},
			Max: mgl32.Vec3{maxX, maxY, maxZ},
		},
		// Always 0 since min/max of each axis are -/+ half of the size.
		Center: mgl32.Vec3{},
		Name:   name,
	}
	if config.Name == "" {
		config.Name = metadata.DefaultGeometryName
	}

	// Corners of each side, in the order bottom-left, top-right, top-left, bottom-right.
	sides := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		// Front
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{minX, minY, maxZ}, {maxX, maxY, maxZ}, {minX, maxY, maxZ}, {maxX, minY, maxZ}}},
		// Back
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{maxX, minY, minZ}, {minX, maxY, minZ}, {maxX, maxY, minZ}, {minX, minY, minZ}}},
		// Left
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{minX, minY, minZ}, {minX, maxY, maxZ}, {minX, maxY, minZ}, {minX, minY, maxZ}}},
		// Right
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{maxX, minY, maxZ}, {maxX, maxY, minZ}, {maxX, maxY, maxZ}, {maxX, minY, minZ}}},
		// Bottom
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{maxX, minY, maxZ}, {minX, minY, minZ}, {maxX, minY, minZ}, {minX, minY, maxZ}}},
		// Top
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{minX, maxY, maxZ}, {maxX, maxY, minZ}, {minX, maxY, minZ}, {maxX, maxY, maxZ}}},
	}
	texcoords := [4]mgl32.Vec2{{0, 0}, {tileX, tileY}, {0, tileY}, {tileX, 0}}

	for i, side := range sides {
		for c, position := range side.corners {
			config.Vertices = append(config.Vertices, metadata.Vertex3D{
				Position: position,
				Normal:   side.normal,
				Texcoord: texcoords[c],
			})
		}
		vOffset := uint32(i * 4)
		config.Indices = append(config.Indices,
			vOffset+0, vOffset+1, vOffset+2,
			vOffset+0, vOffset+3, vOffset+1,
		)
	}

	return config
}

/**
 * @brief Generates the cube a skybox is drawn with: seen from the inside, so
 * normals point inwards and every triangle winds the other way.
 */
func GenerateSkyboxCube(size float32) *metadata.GeometryConfig {
	config := GenerateCubeConfig(size, size, size, 1, 1, metadata.SkyboxMeshName)
	for i := range config.Vertices {
		config.Vertices[i].Normal = config.Vertices[i].Normal.Mul(-1)
	}
	for i := 0; i < len(config.Indices); i += 3 {
		config.Indices[i+1], config.Indices[i+2] = config.Indices[i+2], config.Indices[i+1]
	}
	return config
}

func (gs *GeometrySystem) createDefaultGeometry() *metadata.Geometry {
	f := float32(10.0)

	//  0    3
	//
	//  2    1
	verts := []metadata.Vertex3D{
		{Position: mgl32.Vec3{-0.5 * f, -0.5 * f, 0}, Texcoord: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{0.5 * f, 0.5 * f, 0}, Texcoord: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-0.5 * f, 0.5 * f, 0}, Texcoord: mgl32.Vec2{0, 1}},
		{Position: mgl32.Vec3{0.5 * f, -0.5 * f, 0}, Texcoord: mgl32.Vec2{1, 0}},
	}
	indices := []uint32{0, 1, 2, 0, 3, 1}

	return &metadata.Geometry{
		ID:       InvalidGeometryID,
		Name:     metadata.DefaultGeometryName,
		Vertices: verts,
		Indices:  indices,
		Extents: metadata.Extents3D{
			Min: mgl32.Vec3{-0.5 * f, -0.5 * f, 0},
			Max: mgl32.Vec3{0.5 * f, 0.5 * f, 0},
		},
	}
}

// destroyGeometry must be called with gs.mutex held.
func (gs *GeometrySystem) destroyGeometry(ref *geometryReference) {
	core.LogDebug("destroying geometry '%s'", ref.Geometry.Name)
	ref.ReferenceCount = 0
	ref.AutoRelease = false
	generation := ref.Geometry.Generation
	ref.Geometry.ID = InvalidGeometryID
	ref.Geometry = &metadata.Geometry{
		ID:         InvalidGeometryID,
		Generation: generation,
	}
}
