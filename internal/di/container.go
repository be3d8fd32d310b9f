package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/media-album/cache"
	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/config"
	"github.com/anoixa/media-album/database"
	"github.com/anoixa/media-album/database/schema"
	"github.com/anoixa/media-album/internal/metrics"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/anoixa/media-album/internal/repositories"
	"github.com/anoixa/media-album/internal/services/cleanup"
	"github.com/anoixa/media-album/internal/services/media"
	"github.com/anoixa/media-album/internal/variant"
	"github.com/anoixa/media-album/internal/worker"
	"github.com/anoixa/media-album/storage"
	"github.com/anoixa/media-album/utils"
	"github.com/anoixa/media-album/utils/validator"
	"gorm.io/gorm"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config       *config.Config
	db           *gorm.DB
	storage      *storage.LocalStorage
	cache        types.Provider
	backend      variant.Backend
	engine       *variant.Engine
	metrics      *metrics.Metrics
	pool         *worker.Pool
	owners       *owner.Registry
	repositories *repositories.Repositories
	references   []schema.Reference

	uploadService   *media.UploadService
	finalizeService *media.FinalizeService
	deleteService   *media.DeleteService
	queryService    *media.QueryService
	reaper          *cleanup.Reaper
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
		owners: owner.NewRegistry(),
	}
}

// Owners 返回所有者注册表，业务代码可在 Init 之前注册自己的所有者类型
func (c *Container) Owners() *owner.Registry {
	return c.owners
}

// Init 初始化所有服务
func (c *Container) Init() error {
	utils.LogIfDev("Initializing DI container...")

	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := c.initCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if err := c.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize variant engine: %w", err)
	}
	if err := c.initReferences(); err != nil {
		return fmt.Errorf("failed to discover album references: %w", err)
	}
	if err := c.initServices(); err != nil {
		return err
	}

	utils.LogIfDev("DI container initialized successfully")
	return nil
}

// InitDatabase 只初始化数据库连接与迁移，migrate 命令使用
func (c *Container) InitDatabase() error {
	db, err := database.NewDB(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}

	c.repositories = repositories.NewRepositories(db)
	utils.LogIfDev("Database initialized")
	return nil
}

func (c *Container) initStorage() error {
	local, err := storage.NewLocalStorage(c.config.UploadDir)
	if err != nil {
		return err
	}
	c.storage = local
	utils.LogIfDevf("Local storage initialized at %s", local.BasePath())
	return nil
}

func (c *Container) initCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := cache.New(ctx, c.config)
	if err != nil {
		return err
	}
	c.cache = provider
	utils.LogIfDevf("Cache provider '%s' initialized", provider.Name())
	return nil
}

func (c *Container) initEngine() error {
	m, err := metrics.New()
	if err != nil {
		return err
	}
	c.metrics = m

	backend, err := variant.SelectBackend(c.config.VariantBackend, utils.Logger("variant"))
	if err != nil {
		return err
	}
	c.backend = backend

	engine, err := variant.NewEngine(variant.Options{
		Backend:      backend,
		Cache:        c.cache,
		DimensionTTL: c.config.CacheDimensionTTL,
		Timeout:      c.config.VariantTimeout,
		Metrics:      m,
		Logger:       utils.Logger("variant"),
	})
	if err != nil {
		return err
	}
	c.engine = engine

	c.pool = worker.NewPool(c.config.GetWorkerCount(), 0)
	return nil
}

// initReferences 启动时发现所有指向相册的外键，并合并配置中声明的引用
func (c *Container) initReferences() error {
	discovered, err := schema.DiscoverReferences(c.db, "albums", "media")
	if err != nil {
		return err
	}
	refs, err := schema.Merge(discovered, c.config.ExtraReferences())
	if err != nil {
		return err
	}
	c.references = refs
	utils.LogIfDevf("Album references: %v", refs)
	return nil
}

func (c *Container) initServices() error {
	for _, ownerType := range c.config.OwnerTypes() {
		c.owners.Register(ownerType, owner.AttachmentLoader(ownerType))
	}

	preview, err := variant.Parse(c.config.VariantPreview)
	if err != nil {
		return fmt.Errorf("invalid variant_preview: %w", err)
	}

	settings := media.Settings{
		Rules: validator.Rules{
			MaxBytes:     c.config.MaxUploadBytes(),
			MinWidth:     c.config.UploadMinWidth,
			MinHeight:    c.config.UploadMinHeight,
			AllowedMimes: c.config.AllowedMimes(),
		},
		TempDir:         c.config.TempDir(),
		DefaultContext:  c.config.UploadDefaultContext,
		PublicURLPrefix: c.config.PublicURLPrefix,
		PreviewSpec:     preview,
	}

	albumRepo := c.repositories.Albums
	mediaRepo := c.repositories.Media

	c.deleteService = media.NewDeleteService(c.db, mediaRepo, c.storage, utils.Logger("media"))
	c.uploadService = media.NewUploadService(c.db, albumRepo, mediaRepo, c.owners, c.storage, c.engine, c.pool, c.metrics, settings, utils.Logger("upload"))
	c.finalizeService = media.NewFinalizeService(c.db, albumRepo, mediaRepo, c.owners, c.deleteService, settings, utils.Logger("finalize"))
	c.queryService = media.NewQueryService(c.db, albumRepo, mediaRepo, c.owners, c.storage, c.engine, settings, utils.Logger("media"))
	c.reaper = cleanup.NewReaper(albumRepo, mediaRepo, c.storage, c.deleteService, c.references, c.config.CleanupMinTempAge, c.metrics, utils.Logger("reaper"))

	utils.LogIfDev("Services initialized")
	return nil
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Storage 获取本地存储
func (c *Container) Storage() *storage.LocalStorage {
	return c.storage
}

// Cache 获取缓存提供者
func (c *Container) Cache() types.Provider {
	return c.cache
}

// Metrics 获取指标收集器
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Engine 获取变体引擎
func (c *Container) Engine() *variant.Engine {
	return c.engine
}

// Pool 获取后台任务池
func (c *Container) Pool() *worker.Pool {
	return c.pool
}

// References 获取相册外键引用
func (c *Container) References() []schema.Reference {
	return c.references
}

func (c *Container) UploadService() *media.UploadService     { return c.uploadService }
func (c *Container) FinalizeService() *media.FinalizeService { return c.finalizeService }
func (c *Container) DeleteService() *media.DeleteService     { return c.deleteService }
func (c *Container) QueryService() *media.QueryService       { return c.queryService }
func (c *Container) Reaper() *cleanup.Reaper                 { return c.reaper }

// Close 关闭所有服务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	var errs []error

	if c.pool != nil {
		c.pool.Stop()
	}
	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close image backend: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.db != nil {
		if err := database.Close(c.db); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	utils.LogIfDev("DI container closed")
	return errors.Join(errs...)
}
