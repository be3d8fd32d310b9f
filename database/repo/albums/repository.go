package albums

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlbumNotFound 相册不存在
var ErrAlbumNotFound = errors.New("album not found")

// Repository 相册仓库 - 封装所有相册相关的数据库操作
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的相册仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: r.db.WithContext(ctx)}
}

// Create 创建相册
func (r *Repository) Create(album *models.Album) error {
	if err := r.db.Create(album).Error; err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// GetByID 通过ID获取相册
func (r *Repository) GetByID(albumID uint) (*models.Album, error) {
	var album models.Album
	if err := r.db.First(&album, albumID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, err
	}
	return &album, nil
}

// LockByID 在事务中锁定相册行，序列化同一相册的排序写入
func (r *Repository) LockByID(albumID uint) (*models.Album, error) {
	var album models.Album
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&album, albumID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, err
	}
	return &album, nil
}

// Exists 检查相册是否存在
func (r *Repository) Exists(albumID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Album{}).Where("id = ?", albumID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistingIDs 返回 ids 中仍存在的相册
func (r *Repository) ExistingIDs(ids []uint) (map[uint]bool, error) {
	existing := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	var found []uint
	if err := r.db.Model(&models.Album{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// EmptyAlbumIDs 返回没有任何媒体的相册ID
// ids 为空切片时直接返回；ids 为 nil 时扫描全部相册
func (r *Repository) EmptyAlbumIDs(ids []uint) ([]uint, error) {
	if ids != nil && len(ids) == 0 {
		return []uint{}, nil
	}

	query := r.db.Model(&models.Album{}).
		Where("NOT EXISTS (?)", r.mediaSubquery())
	if ids != nil {
		query = query.Where("albums.id IN ?", ids)
	}

	var result []uint
	if err := query.Order("albums.id").Pluck("albums.id", &result).Error; err != nil {
		return nil, fmt.Errorf("failed to query empty albums: %w", err)
	}
	return result, nil
}

// DeleteIfUnreferenced 条件删除相册
// 删除语句本身携带"无媒体且无任何外键引用"的判断，提交时条件仍然成立才会删除
func (r *Repository) DeleteIfUnreferenced(albumID uint, refs []schema.Reference) (bool, error) {
	query := r.db.Where("albums.id = ?", albumID).
		Where("NOT EXISTS (?)", r.mediaSubquery())

	for _, ref := range refs {
		query = query.Where("NOT EXISTS (?)", r.referenceSubquery(ref))
	}

	result := query.Delete(&models.Album{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete album %d: %w", albumID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsReferenced 检查相册是否被任一外键引用
func (r *Repository) IsReferenced(albumID uint, refs []schema.Reference) (bool, error) {
	for _, ref := range refs {
		var count int64
		err := r.db.Table("? AS r", clause.Table{Name: ref.Table}).
			Where(clause.Eq{Column: clause.Column{Table: "r", Name: ref.Column}, Value: albumID}).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("failed to check reference %s: %w", ref, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) mediaSubquery() *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true}).
		Table("? AS m", clause.Table{Name: models.Media{}.TableName()}).
		Select("1").
		Where(clause.Eq{
			Column: clause.Column{Table: "m", Name: "album_id"},
			Value:  clause.Column{Table: models.Album{}.TableName(), Name: "id"},
		})
}

func (r *Repository) referenceSubquery(ref schema.Reference) *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true}).
		Table("? AS r", clause.Table{Name: ref.Table}).
		Select("1").
		Where(clause.Eq{
			Column: clause.Column{Table: "r", Name: ref.Column},
			Value:  clause.Column{Table: models.Album{}.TableName(), Name: "id"},
		})
}
