package loaders

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// BinaryLoader reads a whole file. With Text set the data is a string, otherwise
// a byte slice. Files ending in CompressedSuffix are lz4 decompressed first.
type BinaryLoader struct {
	Text bool
}

func (bl *BinaryLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrapf(err, "failed to open '%s'", path)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, CompressedSuffix) {
		src = lz4.NewReader(f)
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, core.Wrapf(err, "failed to read '%s'", path)
	}

	resource := &metadata.Resource{
		Type:     metadata.ResourceTypeBinary,
		Name:     strings.TrimSuffix(filepath.Base(path), CompressedSuffix),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}
	if bl.Text {
		resource.Type = metadata.ResourceTypeText
		resource.Data = string(buf)
	}
	return resource, nil
}

func (bl *BinaryLoader) Unload(resource *metadata.Resource) error {
	if resource != nil {
		resource.Data = nil
	}
	return nil
}

// BytesToWords packs little-endian bytes into 32-bit words, as SPIR-V is stored.
// Trailing bytes that do not fill a word are dropped.
func BytesToWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		byteIndex := i * 4
		words[i] = uint32(b[byteIndex]) |
			uint32(b[byteIndex+1])<<8 |
			uint32(b[byteIndex+2])<<16 |
			uint32(b[byteIndex+3])<<24
	}
	return words
}
