// Package imagemeta 读取图片头部获取尺寸，不解码像素数据
package imagemeta

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Dimensions 图片尺寸
type Dimensions struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Decode 从流中读取图片头部
func Decode(r io.Reader) (Dimensions, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Dimensions{}, "", err
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, format, nil
}

// Probe 读取文件的图片尺寸
// JPEG 按 EXIF 方向返回摆正后的宽高，与处理后端自动旋转后的结果一致
func Probe(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	defer func() { _ = f.Close() }()

	dims, format, err := Decode(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("failed to decode image header of '%s': %w", path, err)
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return Dimensions{}, fmt.Errorf("image '%s' has invalid dimensions %dx%d", path, dims.Width, dims.Height)
	}

	if format == "jpeg" {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Dimensions{}, err
		}
		if swapsAxes(Orientation(f)) {
			dims.Width, dims.Height = dims.Height, dims.Width
		}
	}
	return dims, nil
}
