package loaders

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// CompressedSuffix marks image files wrapped in an lz4 frame.
const CompressedSuffix = ".lz4"

// ImageLoader decodes png, jpeg, gif, bmp, tiff and webp files into tightly
// packed RGBA8 pixels. Files ending in CompressedSuffix are lz4 decompressed first.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	flipY := false
	if typedParams, ok := params.(*metadata.ImageResourceParams); ok && typedParams != nil {
		flipY = typedParams.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, core.Wrapf(err, "failed to open image '%s'", path)
	}
	defer file.Close()

	var src io.Reader = file
	if strings.HasSuffix(path, CompressedSuffix) {
		src = lz4.NewReader(file)
	}

	data, err := DecodeImage(src, flipY)
	if err != nil {
		return nil, core.Wrapf(err, "failed to decode image '%s'", path)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeImage,
		Name:     strings.TrimSuffix(filepath.Base(path), CompressedSuffix),
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(resource *metadata.Resource) error {
	if resource != nil {
		resource.Data = nil
	}
	return nil
}

// DecodeImage decodes any registered image format into RGBA8 pixels.
func DecodeImage(r io.Reader, flipY bool) (*metadata.ImageResourceData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	// NewRGBA is tightly packed, Stride == 4*width
	pixels := rgba.Pix
	if flipY {
		stride := rgba.Stride
		row := make([]uint8, stride)
		for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
			t := pixels[top*stride : (top+1)*stride]
			b := pixels[bottom*stride : (bottom+1)*stride]
			copy(row, t)
			copy(t, b)
			copy(b, row)
		}
	}

	hasTransparency := false
	for i := 3; i < len(pixels); i += 4 {
		if pixels[i] < 255 {
			hasTransparency = true
			break
		}
	}

	return &metadata.ImageResourceData{
		ChannelCount:    4,
		Width:           uint32(width),
		Height:          uint32(height),
		Pixels:          pixels,
		HasTransparency: hasTransparency,
	}, nil
}
