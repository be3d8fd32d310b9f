package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/config"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

// StorageChecker 存储健康检查
type StorageChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler /health 处理器
type HealthHandler struct {
	db      *gorm.DB
	storage StorageChecker
	cache   types.Provider
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db *gorm.DB, storage StorageChecker, cache types.Provider) *HealthHandler {
	return &HealthHandler{db: db, storage: storage, cache: cache}
}

// Handle 任意一项检查失败时返回 503
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(ctx, h.db),
		"storage":  checkStorageHealth(ctx, h.storage),
		"cache":    checkCacheHealth(h.cache),
	}

	status := "ok"
	httpStatus := http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
	})
}

func checkDatabaseHealth(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "not initialized"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, storage StorageChecker) string {
	if storage == nil {
		return "not initialized"
	}
	if err := storage.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(cache types.Provider) string {
	if cache == nil {
		return "not initialized"
	}
	return "ok"
}
