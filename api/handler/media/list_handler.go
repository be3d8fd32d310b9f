package media

import (
	"net/http"

	"github.com/anoixa/media-album/api/common"
	"github.com/anoixa/media-album/internal/owner"
	svcMedia "github.com/anoixa/media-album/internal/services/media"
	"github.com/gin-gonic/gin"
)

type listRequest struct {
	AlbumID        *uint  `json:"albumId"`
	OwnerType      string `json:"ownerType" binding:"max=100"`
	OwnerID        string `json:"ownerId" binding:"max=100"`
	Context        string `json:"context" binding:"max=100"`
	MediaID        *uint  `json:"mediaId"`
	PreviewVariant string `json:"previewVariant" binding:"max=200"`
}

// List 按相册、所有者或单个媒体查询
func (h *Handler) List(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.lister.List(c.Request.Context(), svcMedia.ListInput{
		AlbumID:     req.AlbumID,
		MediaID:     req.MediaID,
		Owner:       owner.Ref{Type: req.OwnerType, ID: req.OwnerID, Context: req.Context},
		PreviewSpec: req.PreviewVariant,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, items)
}
