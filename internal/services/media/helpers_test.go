package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/anoixa/media-album/database/dbtest"
	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/database/repo/albums"
	mediarepo "github.com/anoixa/media-album/database/repo/media"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/anoixa/media-album/internal/variant"
	"github.com/anoixa/media-album/internal/worker"
	"github.com/anoixa/media-album/storage"
	"github.com/anoixa/media-album/utils/validator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	fs       *storage.LocalStorage
	wrapped  storage.FileSystem
	engine   *variant.Engine
	owners   *owner.Registry
	settings Settings
	upload   *UploadService
	finalize *FinalizeService
	deleter  *DeleteService
	query    *QueryService
}

// failingFS 移动文件总是失败
type failingFS struct {
	storage.FileSystem
}

func (f failingFS) Move(ctx context.Context, srcPath, storagePath string) error {
	return errors.New("disk full")
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithFS(t, nil)
}

func newTestEnvWithFS(t *testing.T, wrap func(storage.FileSystem) storage.FileSystem) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	local, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	var fs storage.FileSystem = local
	if wrap != nil {
		fs = wrap(local)
	}

	engine, err := variant.NewEngine(variant.Options{Backend: variant.NewImagingBackend(), Logger: zerolog.Nop()})
	require.NoError(t, err)

	registry := owner.NewRegistry()
	registry.Register("listing", owner.AttachmentLoader("listing"))

	settings := Settings{
		Rules:           validator.Rules{MaxBytes: 1 << 20},
		TempDir:         filepath.Join(t.TempDir(), "temp"),
		DefaultContext:  "default",
		PublicURLPrefix: "/uploads",
		PreviewSpec:     variant.MustParse("crop,20,20,70"),
	}

	albumRepo := albums.NewRepository(db)
	mediaRepo := mediarepo.NewRepository(db)
	logger := zerolog.Nop()
	deleter := NewDeleteService(db, mediaRepo, fs, logger)

	return &testEnv{
		db:       db,
		fs:       local,
		wrapped:  fs,
		engine:   engine,
		owners:   registry,
		settings: settings,
		upload:   NewUploadService(db, albumRepo, mediaRepo, registry, fs, engine, nil, nil, settings, logger),
		finalize: NewFinalizeService(db, albumRepo, mediaRepo, registry, deleter, settings, logger),
		deleter:  deleter,
		query:    NewQueryService(db, albumRepo, mediaRepo, registry, fs, engine, settings, logger),
	}
}

// uploadWithPool 返回使用工作池预热变体的上传服务
func (e *testEnv) uploadWithPool(pool *worker.Pool) *UploadService {
	return NewUploadService(e.db, albums.NewRepository(e.db), mediarepo.NewRepository(e.db),
		e.owners, e.wrapped, e.engine, pool, nil, e.settings, zerolog.Nop())
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// webpPixel 1x1 无损 WebP
func webpPixel(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	require.NoError(t, err)
	return data
}

func (e *testEnv) ingest(t *testing.T, in UploadInput) *UploadResult {
	t.Helper()
	if in.File == nil {
		in.File = bytes.NewReader(jpegBytes(t, 64, 48))
	}
	if in.Filename == "" {
		in.Filename = "photo.jpg"
	}
	result, err := e.upload.Ingest(context.Background(), in)
	require.NoError(t, err)
	return result
}

func (e *testEnv) mediaRow(t *testing.T, id uint) *models.Media {
	t.Helper()
	var m models.Media
	require.NoError(t, e.db.First(&m, id).Error)
	return &m
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *testEnv) fileExists(t *testing.T, storagePath string) bool {
	t.Helper()
	exists, err := e.fs.Exists(context.Background(), storagePath)
	require.NoError(t, err)
	return exists
}

func tempEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func uintPtr(v uint) *uint { return &v }
