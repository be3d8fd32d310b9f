package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/media-album/database/models"
	"gorm.io/gorm"
)

// ErrMediaNotFound 媒体不存在
var ErrMediaNotFound = errors.New("media not found")

// Repository 媒体仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建媒体仓库
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

// Create 创建媒体记录
func (r *Repository) Create(media *models.Media) error {
	if err := r.db.Create(media).Error; err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取媒体
func (r *Repository) GetByID(id uint) (*models.Media, error) {
	var media models.Media
	if err := r.db.First(&media, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return &media, nil
}

// ListByAlbum 按位置顺序获取相册内的媒体
func (r *Repository) ListByAlbum(albumID uint) ([]models.Media, error) {
	var items []models.Media
	err := r.db.Where("album_id = ?", albumID).Order("position ASC, id ASC").Find(&items).Error
	return items, err
}

// CountByAlbum 统计相册内媒体数量
func (r *Repository) CountByAlbum(albumID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Media{}).Where("album_id = ?", albumID).Count(&count).Error
	return count, err
}

// NextPosition 追加到末尾的位置，空相册为 0
func (r *Repository) NextPosition(albumID uint) (int, error) {
	var next int
	err := r.db.Model(&models.Media{}).
		Where("album_id = ?", albumID).
		Select("COALESCE(MAX(position) + 1, 0)").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next position for album %d: %w", albumID, err)
	}
	return next, nil
}

// UpdateURL 写入存储路径
func (r *Repository) UpdateURL(id uint, url string) error {
	return r.db.Model(&models.Media{}).Where("id = ?", id).Update("url", url).Error
}

// Promote 清除暂存标记并写入最终位置
func (r *Repository) Promote(id uint, position int) error {
	return r.db.Model(&models.Media{}).Where("id = ?", id).Updates(map[string]interface{}{
		"temp_key":   gorm.Expr("NULL"),
		"position":   position,
		"updated_at": time.Now(),
	}).Error
}

// UpdatePosition 仅更新位置
func (r *Repository) UpdatePosition(id uint, position int) error {
	return r.db.Model(&models.Media{}).Where("id = ?", id).Updates(map[string]interface{}{
		"position":   position,
		"updated_at": time.Now(),
	}).Error
}

// UpdateAltText 更新多语言替代文本
func (r *Repository) UpdateAltText(media *models.Media, altText map[string]string) error {
	media.AltText = altText
	return r.db.Model(media).Select("alt_text", "updated_at").Updates(media).Error
}

// Delete 删除媒体记录
func (r *Repository) Delete(id uint) (bool, error) {
	result := r.db.Where("id = ?", id).Delete(&models.Media{})
	return result.RowsAffected > 0, result.Error
}

// DeleteIfExpired 条件删除过期暂存媒体
// 与 FindExpired 使用同一判断，删除时若已被提交则不会命中
func (r *Repository) DeleteIfExpired(id uint, cutoff time.Time) (bool, error) {
	result := r.db.Where("id = ? AND created_at < ?", id, cutoff).
		Where("(temp_key IS NOT NULL OR url = '')").
		Delete(&models.Media{})
	return result.RowsAffected > 0, result.Error
}

// FindExpired 查询过期的暂存媒体，以及上传中断未写入路径的媒体
func (r *Repository) FindExpired(cutoff time.Time, limit int) ([]models.Media, error) {
	var items []models.Media
	query := r.db.Where("created_at < ?", cutoff).
		Where("(temp_key IS NOT NULL OR url = '')").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}
