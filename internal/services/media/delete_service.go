package media

import (
	"context"
	"path"
	"strconv"

	"github.com/anoixa/media-album/database"
	"github.com/anoixa/media-album/database/models"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/storage"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DeleteService 媒体删除服务
// 数据库记录在事务内删除，文件在提交后清理，文件清理失败只记录日志
type DeleteService struct {
	db      *gorm.DB
	media   *mediarepo.Repository
	storage storage.FileSystem
	log     zerolog.Logger
}

// NewDeleteService 创建删除服务
func NewDeleteService(db *gorm.DB, media *mediarepo.Repository, fs storage.FileSystem, logger zerolog.Logger) *DeleteService {
	return &DeleteService{
		db:      db,
		media:   media,
		storage: fs,
		log:     logger,
	}
}

// Delete 删除单个媒体及其文件
func (s *DeleteService) Delete(ctx context.Context, mediaID uint) error {
	const op = "media.delete"

	var item *models.Media
	err := database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.media.WithTx(tx)
		m, err := repo.GetByID(mediaID)
		if err != nil {
			return err
		}
		if _, err := repo.Delete(m.ID); err != nil {
			return err
		}
		item = m
		return nil
	})
	if err != nil {
		return mapRepoError(op, err)
	}

	s.RemoveFiles(ctx, []models.Media{*item})
	return nil
}

// RemoveFiles 清理媒体文件，返回成功与失败数量
// 上级目录名等于媒体 ID 时删除整个目录（含变体），否则只删除文件本身
func (s *DeleteService) RemoveFiles(ctx context.Context, items []models.Media) (removed, failed int) {
	for _, m := range items {
		if m.URL == "" {
			continue
		}

		dir := path.Dir(m.URL)
		var err error
		if path.Base(dir) == strconv.FormatUint(uint64(m.ID), 10) {
			err = s.storage.RemoveAll(ctx, dir)
		} else {
			s.log.Warn().Uint("media_id", m.ID).Str("url", m.URL).Msg("media directory does not match id, deleting file only")
			err = s.storage.Remove(ctx, m.URL)
		}

		if err != nil {
			failed++
			s.log.Error().Err(err).Uint("media_id", m.ID).Str("url", m.URL).Msg("failed to delete media files")
			continue
		}
		removed++
	}
	return removed, failed
}
