package models

import "time"

// Media 单个上传文件及其暂存、排序状态
type Media struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	AlbumID  *uint  `gorm:"index:idx_media_album_position,priority:1" json:"albumId"`
	URL      string `gorm:"type:varchar(512);not null;default:''" json:"url"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Mime     string `gorm:"type:varchar(100);not null" json:"mime"`
	Size     int64  `gorm:"not null" json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Position int    `gorm:"not null;default:0;index:idx_media_album_position,priority:2" json:"position"`

	// TempKey 非空表示尚未被所有者表单提交，过期后由清理任务回收
	TempKey *string `gorm:"type:varchar(64);index" json:"tempKey,omitempty"`

	AltText map[string]string `gorm:"serializer:json" json:"altText,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Media) TableName() string {
	return "media"
}

// IsTemporary 是否为暂存状态
func (m *Media) IsTemporary() bool {
	return m.TempKey != nil
}
