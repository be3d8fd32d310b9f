package media

import (
	"context"
	"strings"

	"github.com/anoixa/media-album/database"
	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// FinalizeService 所有者表单提交时的暂存处理：保留、排序、删除
type FinalizeService struct {
	db       *gorm.DB
	albums   *albums.Repository
	media    *mediarepo.Repository
	owners   *owner.Registry
	deleter  *DeleteService
	settings Settings
	log      zerolog.Logger
}

// NewFinalizeService 创建提交服务
func NewFinalizeService(
	db *gorm.DB,
	albumRepo *albums.Repository,
	mediaRepo *mediarepo.Repository,
	owners *owner.Registry,
	deleter *DeleteService,
	settings Settings,
	logger zerolog.Logger,
) *FinalizeService {
	return &FinalizeService{
		db:       db,
		albums:   albumRepo,
		media:    mediaRepo,
		owners:   owners,
		deleter:  deleter,
		settings: settings,
		log:      logger,
	}
}

// Finalize 按 keptIDs 的顺序保留媒体并清除暂存标记，其余媒体删除
// 不属于该相册的 ID 被忽略；重复调用结果相同
func (s *FinalizeService) Finalize(ctx context.Context, albumID uint, keptIDs []uint) error {
	const op = "media.finalize"

	if err := checkDuplicates(op, keptIDs); err != nil {
		return err
	}

	var removed []models.Media
	err := database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		removed, err = s.finalizeTx(tx, albumID, keptIDs)
		return err
	})
	if err != nil {
		return mapRepoError(op, err)
	}

	s.afterCommit(ctx, albumID, len(keptIDs), removed)
	return nil
}

// FinalizeForOwner 表单提交流程：确定所有者在该上下文下的相册后提交，返回提交的相册 ID
// albumID 不为空且与所有者当前相册不同时，将该相册关联到所有者
// 所有者没有相册时不做任何处理并返回 0
func (s *FinalizeService) FinalizeForOwner(ctx context.Context, ref owner.Ref, albumID *uint, keptIDs []uint) (uint, error) {
	const op = "media.finalize_owner"

	if ref.Type == "" || ref.ID == "" {
		return 0, apperr.Validation(op, "owner type and id are required")
	}
	if err := checkDuplicates(op, keptIDs); err != nil {
		return 0, err
	}
	mediaContext, err := s.settings.NormalizeContext(ref.Context)
	if err != nil {
		return 0, err
	}

	var (
		targetID uint
		removed  []models.Media
	)
	err = database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		albumOwner, err := s.owners.Resolve(tx, ref)
		if err != nil {
			return err
		}

		current, err := albumOwner.GetMediaAlbum(tx, mediaContext)
		if err != nil {
			return err
		}

		switch {
		case albumID != nil && (current == nil || current.ID != *albumID):
			album, err := s.albums.WithTx(tx).LockByID(*albumID)
			if err != nil {
				return err
			}
			if err := albumOwner.SetMediaAlbum(tx, album, mediaContext); err != nil {
				return err
			}
			targetID = album.ID
		case current != nil:
			targetID = current.ID
		default:
			// 所有者没有相册，也没有上传过任何文件
			return nil
		}

		removed, err = s.finalizeTx(tx, targetID, keptIDs)
		return err
	})
	if err != nil {
		return 0, mapRepoError(op, err)
	}

	if targetID != 0 {
		s.afterCommit(ctx, targetID, len(keptIDs), removed)
	}
	return targetID, nil
}

// finalizeTx 在事务中处理相册内的每个媒体，返回被删除的媒体
func (s *FinalizeService) finalizeTx(tx *gorm.DB, albumID uint, keptIDs []uint) ([]models.Media, error) {
	if _, err := s.albums.WithTx(tx).LockByID(albumID); err != nil {
		return nil, err
	}

	order := make(map[uint]int, len(keptIDs))
	for i, id := range keptIDs {
		order[id] = i
	}

	repo := s.media.WithTx(tx)
	items, err := repo.ListByAlbum(albumID)
	if err != nil {
		return nil, err
	}

	var removed []models.Media
	for _, m := range items {
		if position, ok := order[m.ID]; ok {
			if err := repo.Promote(m.ID, position); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := repo.Delete(m.ID); err != nil {
			return nil, err
		}
		removed = append(removed, m)
	}
	return removed, nil
}

func (s *FinalizeService) afterCommit(ctx context.Context, albumID uint, kept int, removed []models.Media) {
	s.deleter.RemoveFiles(ctx, removed)
	s.log.Info().
		Uint("album_id", albumID).
		Int("kept", kept).
		Int("deleted", len(removed)).
		Msg("album finalized")
}

// Reorder 按给定顺序重写位置
// 未列出的媒体保持原有相对顺序排在其后，不属于该相册的 ID 被忽略
func (s *FinalizeService) Reorder(ctx context.Context, albumID uint, orderedIDs []uint) error {
	const op = "media.reorder"

	if err := checkDuplicates(op, orderedIDs); err != nil {
		return err
	}

	err := database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := s.albums.WithTx(tx).LockByID(albumID); err != nil {
			return err
		}

		repo := s.media.WithTx(tx)
		items, err := repo.ListByAlbum(albumID)
		if err != nil {
			return err
		}

		inAlbum := make(map[uint]bool, len(items))
		for _, m := range items {
			inAlbum[m.ID] = true
		}

		position := 0
		listed := make(map[uint]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !inAlbum[id] {
				continue
			}
			if err := repo.UpdatePosition(id, position); err != nil {
				return err
			}
			listed[id] = true
			position++
		}
		for _, m := range items {
			if listed[m.ID] {
				continue
			}
			if err := repo.UpdatePosition(m.ID, position); err != nil {
				return err
			}
			position++
		}
		return nil
	})
	return mapRepoError(op, err)
}

// UpdateAltText 更新多语言替代文本，空文本的语言被移除
func (s *FinalizeService) UpdateAltText(ctx context.Context, mediaID uint, altText map[string]string) (*models.Media, error) {
	const op = "media.alt_text"

	clean := make(map[string]string, len(altText))
	for locale, text := range altText {
		locale = strings.TrimSpace(locale)
		text = strings.TrimSpace(text)
		if locale == "" || len(locale) > 16 {
			return nil, apperr.Validation(op, "invalid locale %q", locale)
		}
		if len(text) > 1000 {
			return nil, apperr.Validation(op, "alt text for %s is too long", locale)
		}
		if text != "" {
			clean[locale] = text
		}
	}

	var media *models.Media
	err := database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.media.WithTx(tx)
		m, err := repo.GetByID(mediaID)
		if err != nil {
			return err
		}
		if err := repo.UpdateAltText(m, clean); err != nil {
			return err
		}
		media = m
		return nil
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return media, nil
}
