package repositories

import (
	"github.com/anoixa/media-album/database/repo/albums"
	"github.com/anoixa/media-album/database/repo/media"
	"gorm.io/gorm"
)

// Repositories 集中管理所有数据库仓库
type Repositories struct {
	Albums *albums.Repository
	Media  *media.Repository
}

// NewRepositories 创建所有仓库实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Albums: albums.NewRepository(db),
		Media:  media.NewRepository(db),
	}
}
