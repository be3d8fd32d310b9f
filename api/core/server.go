package core

import (
	"net/http"
	"time"

	"github.com/anoixa/media-album/api/middleware"
	"github.com/anoixa/media-album/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// 同时处理上传的最大请求数，避免解码大图时内存过载
const maxConcurrentUploads = 16

// setupRouter 创建 gin 引擎，返回的 cleanup 用于停止后台清理协程
func setupRouter(deps *RouterDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	router := gin.New()

	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	_ = router.SetTrustedProxies(nil)

	// multipart 超过该大小的部分写入临时文件
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	router.Use(middleware.Metrics(deps.Metrics))

	uploadRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitUploadRPS, cfg.RateLimitUploadBurst, 0)
	concurrencyLimiter := middleware.NewConcurrencyLimiter(maxConcurrentUploads)
	deps.UploadMiddleware = append(deps.UploadMiddleware,
		uploadRateLimiter.Middleware(),
		concurrencyLimiter.Middleware(),
	)

	RegisterRoutes(router, deps)

	return router, uploadRateLimiter.StopCleanup
}

// StartServer 创建 http.Server
func StartServer(deps *RouterDependencies) (*http.Server, func()) {
	cfg := deps.Config
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
