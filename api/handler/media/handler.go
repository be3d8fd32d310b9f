package media

import (
	"context"
	"net/http"
	"strconv"

	"github.com/anoixa/media-album/api/common"
	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/internal/owner"
	svcMedia "github.com/anoixa/media-album/internal/services/media"
	"github.com/gin-gonic/gin"
)

// Uploader 上传服务
type Uploader interface {
	Ingest(ctx context.Context, in svcMedia.UploadInput) (*svcMedia.UploadResult, error)
}

// Finalizer 提交、排序与编辑服务
type Finalizer interface {
	Finalize(ctx context.Context, albumID uint, keptIDs []uint) error
	FinalizeForOwner(ctx context.Context, ref owner.Ref, albumID *uint, keptIDs []uint) (uint, error)
	Reorder(ctx context.Context, albumID uint, orderedIDs []uint) error
	UpdateAltText(ctx context.Context, mediaID uint, altText map[string]string) (*models.Media, error)
}

// Deleter 删除服务
type Deleter interface {
	Delete(ctx context.Context, mediaID uint) error
}

// Lister 查询服务
type Lister interface {
	List(ctx context.Context, in svcMedia.ListInput) ([]svcMedia.Item, error)
}

// Handler 媒体处理器
type Handler struct {
	uploader  Uploader
	finalizer Finalizer
	deleter   Deleter
	lister    Lister
}

// NewHandler 创建媒体处理器
func NewHandler(uploader Uploader, finalizer Finalizer, deleter Deleter, lister Lister) *Handler {
	return &Handler{
		uploader:  uploader,
		finalizer: finalizer,
		deleter:   deleter,
		lister:    lister,
	}
}

// Register 注册 /media 路由，upload 额外挂载限流等中间件
func (h *Handler) Register(group *gin.RouterGroup, uploadMiddleware ...gin.HandlerFunc) {
	mediaGroup := group.Group("/media")
	{
		mediaGroup.POST("/upload", append(uploadMiddleware, h.Upload)...) // POST /api/media/upload
		mediaGroup.POST("/list", h.List)                                  // POST /api/media/list
		mediaGroup.POST("/finalize", h.Finalize)                          // POST /api/media/finalize
		mediaGroup.POST("/positions", h.UpdatePositions)                  // POST /api/media/positions
		mediaGroup.POST("/:id/edit", h.Edit)                              // POST /api/media/{id}/edit
		mediaGroup.POST("/:id/delete", h.Delete)                          // POST /api/media/{id}/delete
	}
}

// parseID 解析路径中的媒体 ID
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		common.RespondError(c, http.StatusBadRequest, "Invalid media ID format")
		return 0, false
	}
	return uint(id), true
}
