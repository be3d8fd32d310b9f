package models

import "time"

// Album 媒体相册，媒体按 position 排序
// 相册本身不记录所有者，由所有者一侧持有相册引用
type Album struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Media []Media `gorm:"foreignKey:AlbumID;constraint:OnDelete:RESTRICT" json:"media,omitempty"`
}

func (Album) TableName() string {
	return "albums"
}
