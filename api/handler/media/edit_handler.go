package media

import (
	"net/http"

	"github.com/anoixa/media-album/api/common"
	"github.com/gin-gonic/gin"
)

type editRequest struct {
	AltText map[string]string `json:"altText" binding:"required"`
}

type editResponse struct {
	ID      uint              `json:"id"`
	AltText map[string]string `json:"altText"`
}

// Edit 更新替代文本
func (h *Handler) Edit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	media, err := h.finalizer.UpdateAltText(c.Request.Context(), id, req.AltText)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, editResponse{ID: media.ID, AltText: media.AltText})
}

// Delete 删除单个媒体及其文件
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.deleter.Delete(c.Request.Context(), id); err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccessMessage(c, "Media deleted", gin.H{"id": id})
}
