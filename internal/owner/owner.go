// Package owner 定义相册所有者契约
// 任何业务记录只要能按上下文读写一个相册引用，即可作为媒体的所有者
package owner

import (
	"errors"
	"sort"
	"sync"

	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/internal/apperr"
	"gorm.io/gorm"
)

// Ref 所有者引用，ID 为空表示所有者尚未保存
type Ref struct {
	Type    string `json:"ownerType" form:"owner_type"`
	ID      string `json:"ownerId" form:"owner_id"`
	Context string `json:"context" form:"context"`
}

// IsZero 是否未指定所有者
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// AlbumOwner 所有者契约，tx 为当前事务
// GetMediaAlbum 在没有相册时返回 (nil, nil)
type AlbumOwner interface {
	GetMediaAlbum(tx *gorm.DB, context string) (*models.Album, error)
	SetMediaAlbum(tx *gorm.DB, album *models.Album, context string) error
}

// Loader 按 ID 加载某一类型的所有者
type Loader func(tx *gorm.DB, id string) (AlbumOwner, error)

// ErrOwnerNotFound 所有者记录不存在
var ErrOwnerNotFound = errors.New("owner not found")

// Registry 所有者类型注册表
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register 注册所有者类型，重复注册覆盖旧的加载器
func (r *Registry) Register(ownerType string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[ownerType] = loader
}

// Types 已注册的类型
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.loaders))
	for t := range r.loaders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Resolve 加载所有者
// 未注册的类型返回配置错误；ID 为空时返回 (nil, nil)
func (r *Registry) Resolve(tx *gorm.DB, ref Ref) (AlbumOwner, error) {
	const op = "owner.resolve"

	r.mu.RLock()
	loader, ok := r.loaders[ref.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Configuration(op, "owner type %q is not registered", ref.Type)
	}
	if ref.ID == "" {
		return nil, nil
	}

	owner, err := loader(tx, ref.ID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return nil, apperr.NotFound(op, "owner %s/%s not found", ref.Type, ref.ID)
		}
		return nil, err
	}
	return owner, nil
}
