package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/anoixa/media-album/database"
	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/metrics"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/anoixa/media-album/internal/variant"
	"github.com/anoixa/media-album/internal/worker"
	"github.com/anoixa/media-album/storage"
	"github.com/anoixa/media-album/utils"
	"github.com/anoixa/media-album/utils/validator"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// UploadInput 上传参数
type UploadInput struct {
	File     io.Reader
	Filename string
	Owner    owner.Ref
	AlbumID  *uint
	// Autosave 为 true 时直接保存为正式媒体，否则进入暂存状态
	Autosave    bool
	PreviewSpec string
	WarmSpecs   []string
}

// UploadResult 上传结果
type UploadResult struct {
	ID         uint    `json:"id"`
	URL        string  `json:"url"`
	PreviewURL string  `json:"previewUrl"`
	AlbumID    uint    `json:"albumId"`
	TempKey    *string `json:"tempKey"`
	Name       string  `json:"name"`
}

// UploadService 媒体上传服务
type UploadService struct {
	db       *gorm.DB
	albums   *albums.Repository
	media    *mediarepo.Repository
	owners   *owner.Registry
	storage  storage.FileSystem
	engine   *variant.Engine
	pool     *worker.Pool
	metrics  *metrics.Metrics
	settings Settings
	pub      publisher
	log      zerolog.Logger
}

// NewUploadService 创建上传服务
// pool 为 nil 时预热变体同步执行
func NewUploadService(
	db *gorm.DB,
	albumRepo *albums.Repository,
	mediaRepo *mediarepo.Repository,
	owners *owner.Registry,
	fs storage.FileSystem,
	engine *variant.Engine,
	pool *worker.Pool,
	m *metrics.Metrics,
	settings Settings,
	logger zerolog.Logger,
) *UploadService {
	settings.Rules.AllowedMimes = encodableMimes(engine, settings.Rules.AllowedMimes, logger)
	return &UploadService{
		db:       db,
		albums:   albumRepo,
		media:    mediaRepo,
		owners:   owners,
		storage:  fs,
		engine:   engine,
		pool:     pool,
		metrics:  m,
		settings: settings,
		pub:      publisher{storage: fs, engine: engine, prefix: settings.PublicURLPrefix, log: logger},
		log:      logger,
	}
}

// encodableMimes 去掉处理后端无法输出变体的类型，变体与源图格式一致
func encodableMimes(engine *variant.Engine, mimes []string, logger zerolog.Logger) []string {
	if engine == nil {
		return mimes
	}
	if mimes == nil {
		mimes = validator.DefaultMimes()
	}
	backend := engine.Backend()
	kept, dropped := variant.EncodableMimes(backend, mimes)
	if len(dropped) > 0 {
		logger.Warn().
			Str("backend", backend.Name()).
			Strs("mimes", dropped).
			Msg("variant backend cannot encode these types, uploads will be rejected")
	}
	if kept == nil {
		kept = []string{}
	}
	return kept
}

// Ingest 校验并保存上传文件
// 校验失败不产生任何副作用；文件移动失败时删除已创建的记录
func (s *UploadService) Ingest(ctx context.Context, in UploadInput) (*UploadResult, error) {
	result, err := s.ingest(ctx, in)
	if err != nil {
		s.metrics.IngestFailed(string(apperr.KindOf(err)))
		return nil, err
	}
	s.metrics.MediaIngested(in.Autosave)
	return result, nil
}

func (s *UploadService) ingest(ctx context.Context, in UploadInput) (*UploadResult, error) {
	const op = "media.ingest"

	if in.File == nil {
		return nil, apperr.Validation(op, "no file uploaded")
	}
	mediaContext, err := s.settings.NormalizeContext(in.Owner.Context)
	if err != nil {
		return nil, err
	}
	preview, err := parseSpec(in.PreviewSpec, s.settings.PreviewSpec)
	if err != nil {
		return nil, err
	}
	warm := make([]variant.Spec, 0, len(in.WarmSpecs))
	for _, raw := range in.WarmSpecs {
		spec, err := variant.Parse(raw)
		if err != nil {
			return nil, err
		}
		warm = append(warm, spec)
	}

	spooled, info, err := s.spool(in.File)
	if err != nil {
		return nil, err
	}
	moved := false
	defer func() {
		if !moved {
			_ = os.Remove(spooled)
		}
	}()

	filename, err := utils.SanitizeFilename(in.Filename, info.Mime)
	if err != nil {
		return nil, err
	}

	var media *models.Media
	err = database.TransactionWithContext(ctx, s.db, func(tx *gorm.DB) error {
		album, err := s.resolveAlbum(tx, in, mediaContext)
		if err != nil {
			return err
		}

		position, err := s.media.WithTx(tx).NextPosition(album.ID)
		if err != nil {
			return err
		}

		media = &models.Media{
			AlbumID:  &album.ID,
			Name:     clientName(in.Filename, filename),
			Mime:     info.Mime,
			Size:     info.Size,
			Width:    info.Width,
			Height:   info.Height,
			Position: position,
		}
		if !in.Autosave {
			key := uuid.NewString()
			media.TempKey = &key
		}
		return s.media.WithTx(tx).Create(media)
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	storagePath := s.settings.StoragePath(*media.AlbumID, mediaContext, media.ID, filename)
	if err := s.storage.Move(ctx, spooled, storagePath); err != nil {
		s.discard(media.ID)
		return nil, apperr.Storage(op, storagePath, err)
	}
	moved = true

	if err := s.media.WithContext(ctx).UpdateURL(media.ID, storagePath); err != nil {
		_ = s.storage.Remove(context.Background(), storagePath)
		s.discard(media.ID)
		return nil, fmt.Errorf("%s: failed to record storage path: %w", op, err)
	}
	media.URL = storagePath

	s.log.Info().
		Uint("media_id", media.ID).
		Uint("album_id", *media.AlbumID).
		Str("path", storagePath).
		Bool("staged", media.TempKey != nil).
		Msg("media uploaded")

	s.warm(storagePath, warm)

	return &UploadResult{
		ID:         media.ID,
		URL:        s.pub.publicURL(storagePath),
		PreviewURL: s.pub.previewOrEmpty(ctx, media.ID, storagePath, preview),
		AlbumID:    *media.AlbumID,
		TempKey:    media.TempKey,
		Name:       media.Name,
	}, nil
}

// spool 将上传内容写入暂存目录并校验
func (s *UploadService) spool(file io.Reader) (string, *validator.ImageInfo, error) {
	const op = "media.spool"

	if err := os.MkdirAll(s.settings.TempDir, 0755); err != nil {
		return "", nil, apperr.Storage(op, s.settings.TempDir, err)
	}
	tmp, err := os.CreateTemp(s.settings.TempDir, "upload-*")
	if err != nil {
		return "", nil, apperr.Storage(op, s.settings.TempDir, err)
	}
	tmpPath := tmp.Name()

	limit := s.settings.Rules.MaxBytes
	reader := file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	written, copyErr := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		if utils.IsContextCanceled(err) {
			return "", nil, err
		}
		return "", nil, apperr.Storage(op, tmpPath, err)
	}
	if limit > 0 && written > limit {
		_ = os.Remove(tmpPath)
		return "", nil, apperr.Validation(op, "file exceeds the maximum upload size")
	}

	info, err := validator.ValidateImageFile(tmpPath, s.settings.Rules)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", nil, err
	}
	return tmpPath, info, nil
}

// resolveAlbum 在事务中确定目标相册并加锁
// 显式相册优先，其次所有者在该上下文下的相册，都没有时创建新相册
func (s *UploadService) resolveAlbum(tx *gorm.DB, in UploadInput, mediaContext string) (*models.Album, error) {
	albumRepo := s.albums.WithTx(tx)

	if in.AlbumID != nil {
		return albumRepo.LockByID(*in.AlbumID)
	}

	var albumOwner owner.AlbumOwner
	if !in.Owner.IsZero() {
		var err error
		albumOwner, err = s.owners.Resolve(tx, in.Owner)
		if err != nil {
			return nil, err
		}
	}

	if albumOwner != nil {
		album, err := albumOwner.GetMediaAlbum(tx, mediaContext)
		if err != nil {
			return nil, err
		}
		if album != nil {
			return albumRepo.LockByID(album.ID)
		}
	}

	album := &models.Album{}
	if err := albumRepo.Create(album); err != nil {
		return nil, err
	}
	if albumOwner != nil {
		if err := albumOwner.SetMediaAlbum(tx, album, mediaContext); err != nil {
			return nil, err
		}
	}
	return album, nil
}

// discard 删除上传失败的记录
func (s *UploadService) discard(mediaID uint) {
	if _, err := s.media.Delete(mediaID); err != nil {
		s.log.Error().Err(err).Uint("media_id", mediaID).Msg("failed to remove media row after storage failure")
	}
}

// warm 预热变体，强制重新生成
func (s *UploadService) warm(storagePath string, specs []variant.Spec) {
	if len(specs) == 0 || s.engine == nil {
		return
	}
	source, err := s.storage.Abs(storagePath)
	if err != nil {
		return
	}

	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.engine.Warm(ctx, source, specs); err != nil {
			s.log.Warn().Err(err).Str("path", storagePath).Msg("failed to warm variants")
		}
	}

	if s.pool == nil {
		task()
		return
	}
	if !s.pool.Submit(task) {
		s.log.Warn().Str("path", storagePath).Msg("variant warm-up dropped, worker pool unavailable")
	}
}

const maxClientNameBytes = 255

// clientName 客户端文件名为空时使用存储文件名，超长时在字符边界截断
func clientName(original, stored string) string {
	if original == "" {
		return stored
	}
	if len(original) <= maxClientNameBytes {
		return original
	}
	cut := maxClientNameBytes
	for cut > 0 && !utf8.RuneStart(original[cut]) {
		cut--
	}
	return original[:cut]
}
