package owner

import (
	"errors"
	"fmt"

	"github.com/anoixa/media-album/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttachmentOwner 通过 album_attachments 关联表持有相册的所有者
type AttachmentOwner struct {
	OwnerType string
	OwnerID   string
}

var _ AlbumOwner = (*AttachmentOwner)(nil)

// AttachmentLoader 返回关联表所有者的加载器
func AttachmentLoader(ownerType string) Loader {
	return func(tx *gorm.DB, id string) (AlbumOwner, error) {
		return &AttachmentOwner{OwnerType: ownerType, OwnerID: id}, nil
	}
}

// GetMediaAlbum 读取上下文对应的相册
func (o *AttachmentOwner) GetMediaAlbum(tx *gorm.DB, context string) (*models.Album, error) {
	var attachment models.AlbumAttachment
	err := tx.Preload("Album").
		Where("owner_type = ? AND owner_id = ? AND context = ?", o.OwnerType, o.OwnerID, context).
		First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load album attachment: %w", err)
	}
	return &attachment.Album, nil
}

// SetMediaAlbum 写入上下文对应的相册，已存在时替换
func (o *AttachmentOwner) SetMediaAlbum(tx *gorm.DB, album *models.Album, context string) error {
	attachment := models.AlbumAttachment{
		OwnerType: o.OwnerType,
		OwnerID:   o.OwnerID,
		Context:   context,
		AlbumID:   album.ID,
	}
	err := tx.Omit("Album").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "context"}},
		DoUpdates: clause.AssignmentColumns([]string{"album_id"}),
	}).Create(&attachment).Error
	if err != nil {
		return fmt.Errorf("failed to attach album %d to %s/%s: %w", album.ID, o.OwnerType, o.OwnerID, err)
	}
	return nil
}
