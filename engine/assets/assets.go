package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/skybox/engine/assets/loaders"
	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

type AssetInfo struct {
	// Path relative to the asset directory, slash separated.
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes an asset directory, keeps the index current with
// fsnotify and loads assets through the loader registered for their type.
type AssetManager struct {
	basePath string
	assets   map[string]AssetInfo
	loaders  map[metadata.ResourceType]Loader
	onChange []func(path string)

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}

	// Register loaders
	am.RegisterLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.RegisterLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.RegisterLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.RegisterLoader(metadata.ResourceTypeText, &loaders.BinaryLoader{Text: true})

	return am, nil
}

// Initialize indexes assetsDir recursively and starts watching it for changes.
func (am *AssetManager) Initialize(assetsDir string) error {
	abs, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.basePath = abs

	if err := am.addRecursive(abs); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()

	core.LogInfo("asset manager watching '%s' (%d assets indexed)", abs, am.Count())
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return nil
}

// BasePath returns the absolute asset directory.
func (am *AssetManager) BasePath() string {
	return am.basePath
}

// Count returns the number of indexed assets.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// RegisterLoader registers (or replaces) the loader for an asset type.
func (am *AssetManager) RegisterLoader(assetType metadata.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

// OnChange registers fn to be called, from the watcher goroutine, with the
// relative path of every indexed asset that is created or written.
func (am *AssetManager) OnChange(fn func(path string)) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.onChange = append(am.onChange, fn)
}

// Resolve finds the indexed path of an asset. The name may omit the
// extension and the conventional sub directory of its type.
func (am *AssetManager) Resolve(name string, resourceType metadata.ResourceType) (string, error) {
	name = filepath.ToSlash(filepath.Clean(name))

	am.mutex.RLock()
	defer am.mutex.RUnlock()
	for _, candidate := range candidates(name, resourceType) {
		if info, ok := am.assets[candidate]; ok && info.Type == resourceType {
			return candidate, nil
		}
	}
	return "", core.Wrapf(core.ErrAssetNotFound, "%s asset '%s'", resourceType, name)
}

// Load an asset using the appropriate loader
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	path, err := am.Resolve(name, resourceType)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	asset := am.assets[path]
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	loader, loaderExists := am.loaders[asset.Type]
	am.mutex.Unlock()

	if !loaderExists {
		return nil, core.Wrapf(core.ErrUnknownResourceType, "no loader registered for asset type %s", asset.Type)
	}

	return loader.Load(am.FullPath(path), params)
}

// FullPath turns an indexed relative path into an absolute one.
func (am *AssetManager) FullPath(path string) string {
	return filepath.Join(am.basePath, filepath.FromSlash(path))
}

func (am *AssetManager) UnloadAsset(resource *metadata.Resource) error {
	if resource == nil {
		return nil
	}
	am.mutex.RLock()
	loader, ok := am.loaders[resource.Type]
	am.mutex.RUnlock()
	if !ok {
		return nil
	}
	return loader.Unload(resource)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch '%s': %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if path, ok := am.handleFileEvent(e.Name); ok {
					am.notify(path)
				}
			}
			// Can't stat a deleted file, drop it from the index and the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return core.Wrapf(core.ErrUnknown, "asset watcher already closed")
	}
	return am.watchRecursive(name)
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

func (am *AssetManager) notify(path string) {
	am.mutex.RLock()
	listeners := am.onChange
	am.mutex.RUnlock()
	for _, fn := range listeners {
		fn(path)
	}
}

func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.basePath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	rel, ok := am.relative(path)
	if !ok {
		return "", false
	}
	assetType := determineAssetType(rel)
	if assetType == metadata.ResourceTypeNone {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[rel] = AssetInfo{
		Path: rel,
		Type: assetType,
	}
	return rel, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	rel, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, rel)
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif"}

func determineAssetType(path string) metadata.ResourceType {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, loaders.CompressedSuffix)))
	switch ext {
	case ".wgsl":
		return metadata.ResourceTypeShader
	case ".txt", ".toml":
		return metadata.ResourceTypeText
	case ".bin", ".spv":
		return metadata.ResourceTypeBinary
	}
	for _, e := range imageExtensions {
		if ext == e {
			return metadata.ResourceTypeImage
		}
	}
	return metadata.ResourceTypeNone
}

// candidates lists the relative paths a name may resolve to, most specific first.
func candidates(name string, resourceType metadata.ResourceType) []string {
	var dir string
	var exts []string
	switch resourceType {
	case metadata.ResourceTypeImage:
		dir, exts = "textures", imageExtensions
	case metadata.ResourceTypeShader:
		dir, exts = "shaders", []string{".wgsl"}
	}

	bases := []string{name}
	if dir != "" && !strings.HasPrefix(name, dir+"/") {
		bases = append(bases, dir+"/"+name)
	}

	out := make([]string, 0, len(bases)*(len(exts)+1)*2)
	for _, base := range bases {
		out = append(out, base, base+loaders.CompressedSuffix)
		if filepath.Ext(base) != "" {
			continue
		}
		for _, ext := range exts {
			out = append(out, base+ext, base+ext+loaders.CompressedSuffix)
		}
	}
	return out
}
