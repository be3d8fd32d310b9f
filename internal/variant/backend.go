package variant

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anoixa/media-album/internal/apperr"
	"github.com/rs/zerolog"
)

// Format 输出编码格式，由变体文件扩展名决定
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
)

// ErrUnsupportedFormat 后端无法编码该格式
var ErrUnsupportedFormat = errors.New("unsupported output format")

// FormatFromPath 根据扩展名推断输出格式
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".gif":
		return FormatGIF, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// Target 已解析的目标参数
type Target struct {
	Width   int
	Height  int
	Quality int
	Sigma   float64
}

// Backend 图片处理后端
// 各实现读取 src，按 Target 处理后写入 dst，dst 的扩展名决定编码格式
type Backend interface {
	Name() string
	Resize(src, dst string, t Target) error
	Crop(src, dst string, t Target) error
	CompositeBlur(src, dst string, t Target) error
	Close() error
}

// encoder 声明后端可编码的格式，未实现时视为全部支持
type encoder interface {
	Encodes(Format) bool
}

// CanEncode 后端能否输出该格式
func CanEncode(b Backend, f Format) bool {
	if e, ok := b.(encoder); ok {
		return e.Encodes(f)
	}
	return true
}

// FormatFromMime 将图片 MIME 类型映射为输出格式
func FormatFromMime(mime string) (Format, bool) {
	switch mime {
	case "image/jpeg":
		return FormatJPEG, true
	case "image/png":
		return FormatPNG, true
	case "image/gif":
		return FormatGIF, true
	case "image/webp":
		return FormatWebP, true
	}
	return "", false
}

// EncodableMimes 按后端编码能力过滤 MIME 列表，变体与源图同格式，无法编码的类型不能接收
func EncodableMimes(b Backend, mimes []string) (kept, dropped []string) {
	for _, mime := range mimes {
		if f, ok := FormatFromMime(mime); ok && !CanEncode(b, f) {
			dropped = append(dropped, mime)
			continue
		}
		kept = append(kept, mime)
	}
	return kept, dropped
}

// pngCompression 将 1-100 质量映射为 0-9 的 PNG 压缩级别，质量越低压缩越高
func pngCompression(quality int) int {
	level := 9 - (quality*9)/100
	return min(9, max(0, level))
}

// 后端偏好
const (
	BackendAuto    = "auto"
	BackendVips    = "vips"
	BackendImaging = "imaging"
)

// SelectBackend 启动时选择一次处理后端
// auto 优先尝试 libvips，初始化失败时退回纯 Go 实现
func SelectBackend(preference string, logger zerolog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case BackendImaging:
		return NewImagingBackend(), nil
	case BackendVips:
		backend, err := NewVipsBackend(logger)
		if err != nil {
			return nil, apperr.Configuration("variant.backend", "libvips unavailable: %v", err)
		}
		return backend, nil
	case "", BackendAuto:
		backend, err := NewVipsBackend(logger)
		if err != nil {
			logger.Warn().Err(err).Msg("libvips unavailable, using imaging backend")
			return NewImagingBackend(), nil
		}
		return backend, nil
	default:
		return nil, apperr.Configuration("variant.backend", "unknown variant backend %q", preference)
	}
}

// dispatch 按操作调用后端
func dispatch(b Backend, operation, src, dst string, t Target) error {
	switch operation {
	case OpResize:
		return b.Resize(src, dst, t)
	case OpCrop:
		return b.Crop(src, dst, t)
	case OpCompositeBlur:
		return b.CompositeBlur(src, dst, t)
	}
	return apperr.Configuration("variant.dispatch", "unknown variant operation %q", operation)
}
