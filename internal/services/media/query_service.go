package media

import (
	"context"

	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/anoixa/media-album/internal/variant"
	"github.com/anoixa/media-album/storage"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ListInput 查询条件，按 MediaID、AlbumID、Owner 的优先级使用
type ListInput struct {
	AlbumID     *uint
	Owner       owner.Ref
	MediaID     *uint
	PreviewSpec string
}

// Item 列表项
type Item struct {
	ID         uint              `json:"id"`
	AlbumID    uint              `json:"albumId"`
	URL        string            `json:"url"`
	PreviewURL string            `json:"previewUrl"`
	Name       string            `json:"name"`
	Mime       string            `json:"mime"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Position   int               `json:"position"`
	Temporary  bool              `json:"temporary"`
	AltText    map[string]string `json:"altText"`
}

// QueryService 媒体查询服务
type QueryService struct {
	db       *gorm.DB
	albums   *albums.Repository
	media    *mediarepo.Repository
	owners   *owner.Registry
	settings Settings
	pub      publisher
}

// NewQueryService 创建查询服务
func NewQueryService(
	db *gorm.DB,
	albumRepo *albums.Repository,
	mediaRepo *mediarepo.Repository,
	owners *owner.Registry,
	fs storage.FileSystem,
	engine *variant.Engine,
	settings Settings,
	logger zerolog.Logger,
) *QueryService {
	return &QueryService{
		db:       db,
		albums:   albumRepo,
		media:    mediaRepo,
		owners:   owners,
		settings: settings,
		pub:      publisher{storage: fs, engine: engine, prefix: settings.PublicURLPrefix, log: logger},
	}
}

// List 返回按位置排序的媒体及其预览地址
func (s *QueryService) List(ctx context.Context, in ListInput) ([]Item, error) {
	const op = "media.list"

	preview, err := parseSpec(in.PreviewSpec, s.settings.PreviewSpec)
	if err != nil {
		return nil, err
	}

	items, err := s.load(ctx, in)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	out := make([]Item, 0, len(items))
	for _, m := range items {
		out = append(out, s.toItem(ctx, m, preview))
	}
	return out, nil
}

func (s *QueryService) load(ctx context.Context, in ListInput) ([]models.Media, error) {
	const op = "media.list"

	switch {
	case in.MediaID != nil:
		m, err := s.media.WithContext(ctx).GetByID(*in.MediaID)
		if err != nil {
			return nil, err
		}
		return []models.Media{*m}, nil

	case in.AlbumID != nil:
		if _, err := s.albums.WithContext(ctx).GetByID(*in.AlbumID); err != nil {
			return nil, err
		}
		return s.media.WithContext(ctx).ListByAlbum(*in.AlbumID)

	case in.Owner.Type != "" && in.Owner.ID != "":
		mediaContext, err := s.settings.NormalizeContext(in.Owner.Context)
		if err != nil {
			return nil, err
		}
		db := s.db.WithContext(ctx)
		albumOwner, err := s.owners.Resolve(db, in.Owner)
		if err != nil {
			return nil, err
		}
		album, err := albumOwner.GetMediaAlbum(db, mediaContext)
		if err != nil || album == nil {
			return nil, err
		}
		return s.media.WithContext(ctx).ListByAlbum(album.ID)
	}

	return nil, apperr.Validation(op, "albumId, mediaId or owner is required")
}

func (s *QueryService) toItem(ctx context.Context, m models.Media, preview variant.Spec) Item {
	item := Item{
		ID:         m.ID,
		URL:        s.pub.publicURL(m.URL),
		PreviewURL: s.pub.previewOrEmpty(ctx, m.ID, m.URL, preview),
		Name:       m.Name,
		Mime:       m.Mime,
		Width:      m.Width,
		Height:     m.Height,
		Position:   m.Position,
		Temporary:  m.IsTemporary(),
		AltText:    m.AltText,
	}
	if m.AlbumID != nil {
		item.AlbumID = *m.AlbumID
	}
	if item.AltText == nil {
		item.AltText = map[string]string{}
	}
	return item
}
