package validator

import (
	"os"

	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/utils"
	"github.com/anoixa/media-album/utils/imagemeta"
	"github.com/dustin/go-humanize"
)

// Rules 上传文件校验规则
type Rules struct {
	MaxBytes     int64
	MinWidth     int
	MinHeight    int
	AllowedMimes []string
}

// ImageInfo 校验通过后的文件信息
type ImageInfo struct {
	Mime   string
	Width  int
	Height int
	Size   int64
}

// allowedImageMimeTypes 默认允许的图片类型
var allowedImageMimeTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ValidateImageFile 校验暂存文件的大小、内容类型与最小分辨率
func ValidateImageFile(path string, rules Rules) (*ImageInfo, error) {
	const op = "validate"

	stat, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Storage(op, path, err)
	}
	if stat.Size() == 0 {
		return nil, apperr.Validation(op, "file is empty")
	}
	if rules.MaxBytes > 0 && stat.Size() > rules.MaxBytes {
		return nil, apperr.Validation(op, "file size %s exceeds limit %s",
			humanize.IBytes(uint64(stat.Size())), humanize.IBytes(uint64(rules.MaxBytes)))
	}

	mimeType, err := utils.SniffFile(path)
	if err != nil {
		return nil, apperr.Storage(op, path, err)
	}
	if !IsAllowedMime(mimeType, rules.AllowedMimes) {
		return nil, apperr.Validation(op, "file type %s is not allowed", mimeType)
	}

	dims, err := imagemeta.Probe(path)
	if err != nil {
		return nil, apperr.Validation(op, "file is not a readable image")
	}
	if (rules.MinWidth > 0 && dims.Width < rules.MinWidth) || (rules.MinHeight > 0 && dims.Height < rules.MinHeight) {
		return nil, apperr.Validation(op, "image resolution %dx%d is below minimum %dx%d",
			dims.Width, dims.Height, rules.MinWidth, rules.MinHeight)
	}

	return &ImageInfo{
		Mime:   mimeType,
		Width:  dims.Width,
		Height: dims.Height,
		Size:   stat.Size(),
	}, nil
}

// DefaultMimes 返回默认允许的图片类型副本
func DefaultMimes() []string {
	return append([]string(nil), allowedImageMimeTypes...)
}

// IsAllowedMime 检查 MIME 是否在允许列表中，列表为 nil 时使用默认图片类型
func IsAllowedMime(mimeType string, allowed []string) bool {
	if allowed == nil {
		allowed = allowedImageMimeTypes
	}
	for _, m := range allowed {
		if m == mimeType {
			return true
		}
	}
	return false
}
