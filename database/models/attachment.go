package models

import "time"

// AlbumAttachment 通用所有者关联表
// 无法在自身表中保存相册字段的记录通过 (OwnerType, OwnerID, Context) 关联相册
type AlbumAttachment struct {
	ID        uint   `gorm:"primarykey"`
	OwnerType string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attachment_owner,priority:1"`
	OwnerID   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attachment_owner,priority:2"`
	Context   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_attachment_owner,priority:3"`
	AlbumID   uint   `gorm:"not null;index"`
	Album     Album  `gorm:"constraint:OnDelete:RESTRICT"`
	CreatedAt time.Time
}

func (AlbumAttachment) TableName() string {
	return "album_attachments"
}
