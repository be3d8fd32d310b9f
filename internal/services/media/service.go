// Package media 实现媒体的上传、暂存提交、排序、编辑、删除与查询
package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/variant"
	"github.com/anoixa/media-album/storage"
	"github.com/anoixa/media-album/utils"
	"github.com/anoixa/media-album/utils/validator"
	"github.com/rs/zerolog"
)

// Settings 媒体服务配置
type Settings struct {
	Rules           validator.Rules
	TempDir         string
	DefaultContext  string
	PublicURLPrefix string
	PreviewSpec     variant.Spec
}

var contextPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// NormalizeContext 空上下文使用默认值，上下文会出现在存储路径中，只允许安全字符
func (s Settings) NormalizeContext(context string) (string, error) {
	context = strings.TrimSpace(context)
	if context == "" {
		context = s.DefaultContext
	}
	if context == "" {
		context = "default"
	}
	if !contextPattern.MatchString(context) {
		return "", apperr.Validation("media.context", "invalid context %q", context)
	}
	return context, nil
}

// StoragePath 媒体存储路径 {albumId}/[{context}/]{mediaId}/{filename}
// 默认上下文不出现在路径中
func (s Settings) StoragePath(albumID uint, context string, mediaID uint, filename string) string {
	parts := []string{strconv.FormatUint(uint64(albumID), 10)}
	if context != "" && context != s.DefaultContext {
		parts = append(parts, context)
	}
	parts = append(parts, strconv.FormatUint(uint64(mediaID), 10), filename)
	return strings.Join(parts, "/")
}

// publisher 负责存储路径到对外地址的转换，以及预览变体的生成
type publisher struct {
	storage storage.FileSystem
	engine  *variant.Engine
	prefix  string
	log     zerolog.Logger
}

// publicURL 存储路径对应的对外地址
func (p publisher) publicURL(storagePath string) string {
	return utils.BuildPublicURL(p.prefix, storagePath)
}

// previewURL 生成（或命中）预览变体并返回对外地址
func (p publisher) previewURL(ctx context.Context, storagePath string, spec variant.Spec) (string, error) {
	if storagePath == "" || p.engine == nil {
		return "", nil
	}

	source, err := p.storage.Abs(storagePath)
	if err != nil {
		return "", apperr.Storage("media.preview", storagePath, err)
	}
	variantPath, err := p.engine.GetOrCreateVariant(ctx, source, spec, false)
	if err != nil {
		return "", err
	}
	rel, err := p.storage.Rel(variantPath)
	if err != nil {
		return "", apperr.Storage("media.preview", variantPath, err)
	}
	return p.publicURL(rel), nil
}

// previewOrEmpty 预览失败只记录日志
func (p publisher) previewOrEmpty(ctx context.Context, mediaID uint, storagePath string, spec variant.Spec) string {
	url, err := p.previewURL(ctx, storagePath, spec)
	if err != nil {
		p.log.Warn().Err(err).Uint("media_id", mediaID).Str("variant", spec.String()).Msg("failed to build preview")
		return ""
	}
	return url
}

// parseSpec 空描述使用默认值
func parseSpec(raw string, fallback variant.Spec) (variant.Spec, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return variant.Parse(raw)
}

// checkDuplicates 重复 ID 视为校验错误
func checkDuplicates(op string, ids []uint) error {
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperr.Validation(op, "duplicate media id %d", id)
		}
		seen[id] = true
	}
	return nil
}

// mapRepoError 将仓库层的哨兵错误转换为错误分类
func mapRepoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, albums.ErrAlbumNotFound):
		return apperr.NotFound(op, "album not found")
	case errors.Is(err, mediarepo.ErrMediaNotFound):
		return apperr.NotFound(op, "media not found")
	case apperr.KindOf(err) != "":
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
