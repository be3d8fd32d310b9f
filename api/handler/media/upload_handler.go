package media

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/anoixa/media-album/api/common"
	"github.com/anoixa/media-album/internal/owner"
	svcMedia "github.com/anoixa/media-album/internal/services/media"
	"github.com/gin-gonic/gin"
)

// Upload 处理单文件上传
// 表单字段：file, owner_type, owner_id, context, album_id, autosave, preview_variant, image_variants[]
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "A file is required under the 'file' key")
		return
	}

	in := svcMedia.UploadInput{
		Filename: fileHeader.Filename,
		Owner: owner.Ref{
			Type:    strings.TrimSpace(c.PostForm("owner_type")),
			ID:      strings.TrimSpace(c.PostForm("owner_id")),
			Context: strings.TrimSpace(c.PostForm("context")),
		},
		Autosave:    isTruthy(c.PostForm("autosave")),
		PreviewSpec: c.PostForm("preview_variant"),
		WarmSpecs:   variantList(c),
	}

	if raw := strings.TrimSpace(c.PostForm("album_id")); raw != "" {
		albumID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || albumID == 0 {
			common.RespondError(c, http.StatusBadRequest, "Invalid album_id")
			return
		}
		id := uint(albumID)
		in.AlbumID = &id
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer file.Close()
	in.File = file

	result, err := h.uploader.Ingest(c.Request.Context(), in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, result)
}

// variantList 同时接受 image_variants[] 与 image_variants
func variantList(c *gin.Context) []string {
	raw := slices.Concat(c.PostFormArray("image_variants[]"), c.PostFormArray("image_variants"))
	specs := make([]string, 0, len(raw))
	for _, spec := range raw {
		if spec = strings.TrimSpace(spec); spec != "" {
			specs = append(specs, spec)
		}
	}
	return specs
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
