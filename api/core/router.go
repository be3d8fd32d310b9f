package core

import (
	"github.com/anoixa/media-album/api/common"
	handlerMedia "github.com/anoixa/media-album/api/handler/media"
	"github.com/anoixa/media-album/api/middleware"
	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/config"
	"github.com/anoixa/media-album/internal/di"
	"github.com/anoixa/media-album/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Config  *config.Config
	DB      *gorm.DB
	Storage StorageChecker
	Cache   types.Provider
	Metrics *metrics.Metrics

	Uploader  handlerMedia.Uploader
	Finalizer handlerMedia.Finalizer
	Deleter   handlerMedia.Deleter
	Lister    handlerMedia.Lister

	// UploadMiddleware 挂载在上传路由上，通常为限流与并发限制
	UploadMiddleware []gin.HandlerFunc
}

// DependenciesFromContainer 从已初始化的容器组装路由依赖
func DependenciesFromContainer(c *di.Container) *RouterDependencies {
	return &RouterDependencies{
		Config:    c.GetConfig(),
		DB:        c.DB(),
		Storage:   c.Storage(),
		Cache:     c.Cache(),
		Metrics:   c.Metrics(),
		Uploader:  c.UploadService(),
		Finalizer: c.FinalizeService(),
		Deleter:   c.DeleteService(),
		Lister:    c.QueryService(),
	}
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	registerBasicRoutes(router, deps)
	registerPublicRoutes(router, deps)
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.DB, deps.Storage, deps.Cache)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
}

// registerPublicRoutes 原图与变体文件直接由上传目录提供
func registerPublicRoutes(router *gin.Engine, deps *RouterDependencies) {
	cfg := deps.Config
	if cfg == nil || cfg.PublicURLPrefix == "" || cfg.UploadDir == "" {
		return
	}
	router.Static(cfg.PublicURLPrefix, cfg.UploadDir)
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	mediaHandler := handlerMedia.NewHandler(deps.Uploader, deps.Finalizer, deps.Deleter, deps.Lister)

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.NoStore())
	{
		mediaHandler.Register(apiGroup, deps.UploadMiddleware...)
	}
}
