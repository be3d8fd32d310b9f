package media

import (
	"net/http"

	"github.com/anoixa/media-album/api/common"
	"github.com/anoixa/media-album/internal/owner"
	svcMedia "github.com/anoixa/media-album/internal/services/media"
	"github.com/gin-gonic/gin"
)

type finalizeRequest struct {
	AlbumID        *uint   `json:"albumId"`
	OwnerType      string  `json:"ownerType" binding:"max=100"`
	OwnerID        string  `json:"ownerId" binding:"max=100"`
	Context        string  `json:"context" binding:"max=100"`
	IDs            *[]uint `json:"ids"`
	PreviewVariant string  `json:"previewVariant" binding:"max=200"`
}

type finalizeResponse struct {
	AlbumID uint            `json:"albumId"`
	Items   []svcMedia.Item `json:"items"`
}

// Finalize 所有者表单提交：保留 ids 中的媒体并按顺序排序，其余删除
// 返回提交后的相册 ID 与按最终顺序排列的媒体列表
func (h *Handler) Finalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	// 缺少 ids 与空列表含义不同，空列表会删除全部媒体
	if req.IDs == nil {
		common.RespondError(c, http.StatusBadRequest, "ids is required")
		return
	}

	var (
		albumID uint
		err     error
	)
	switch {
	case req.OwnerType != "" || req.OwnerID != "":
		ref := owner.Ref{Type: req.OwnerType, ID: req.OwnerID, Context: req.Context}
		albumID, err = h.finalizer.FinalizeForOwner(c.Request.Context(), ref, req.AlbumID, *req.IDs)
	case req.AlbumID != nil:
		albumID = *req.AlbumID
		err = h.finalizer.Finalize(c.Request.Context(), albumID, *req.IDs)
	default:
		common.RespondError(c, http.StatusBadRequest, "albumId or ownerType and ownerId are required")
		return
	}
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	resp := finalizeResponse{AlbumID: albumID, Items: []svcMedia.Item{}}
	if albumID != 0 {
		items, err := h.lister.List(c.Request.Context(), svcMedia.ListInput{AlbumID: &albumID, PreviewSpec: req.PreviewVariant})
		if err != nil {
			common.RespondAppError(c, err)
			return
		}
		resp.Items = append(resp.Items, items...)
	}

	common.RespondSuccessMessage(c, "Media finalized", resp)
}

type positionsRequest struct {
	AlbumID uint   `json:"albumId" binding:"required"`
	IDs     []uint `json:"ids"`
}

// UpdatePositions 重新排序相册内的媒体
func (h *Handler) UpdatePositions(c *gin.Context) {
	var req positionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.finalizer.Reorder(c.Request.Context(), req.AlbumID, req.IDs); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccessMessage(c, "Positions updated", nil)
}
