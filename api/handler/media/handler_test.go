package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anoixa/media-album/api/common"
	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/owner"
	svcMedia "github.com/anoixa/media-album/internal/services/media"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServices struct {
	uploadIn   svcMedia.UploadInput
	uploadBody string
	uploadErr  error

	finalizedAlbum uint
	finalizedIDs   []uint
	ownerRef       owner.Ref
	ownerAlbum     *uint
	reordered      []uint
	altText        map[string]string
	deleted        uint
	err            error

	ownerAlbumID uint
	listIn       svcMedia.ListInput
	listCalls    int
	items        []svcMedia.Item
}

func (f *fakeServices) Ingest(ctx context.Context, in svcMedia.UploadInput) (*svcMedia.UploadResult, error) {
	f.uploadIn = in
	body, _ := io.ReadAll(in.File)
	f.uploadBody = string(body)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	key := "k-1"
	return &svcMedia.UploadResult{ID: 7, URL: "/uploads/1/7/a.jpg", PreviewURL: "/uploads/1/7/crop_200_200_70/a.jpg", AlbumID: 1, TempKey: &key, Name: in.Filename}, nil
}

func (f *fakeServices) Finalize(ctx context.Context, albumID uint, keptIDs []uint) error {
	f.finalizedAlbum = albumID
	f.finalizedIDs = keptIDs
	return f.err
}

func (f *fakeServices) FinalizeForOwner(ctx context.Context, ref owner.Ref, albumID *uint, keptIDs []uint) (uint, error) {
	f.ownerRef = ref
	f.ownerAlbum = albumID
	f.finalizedIDs = keptIDs
	return f.ownerAlbumID, f.err
}

func (f *fakeServices) Reorder(ctx context.Context, albumID uint, orderedIDs []uint) error {
	f.finalizedAlbum = albumID
	f.reordered = orderedIDs
	return f.err
}

func (f *fakeServices) UpdateAltText(ctx context.Context, mediaID uint, altText map[string]string) (*models.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.altText = altText
	return &models.Media{ID: mediaID, AltText: altText}, nil
}

func (f *fakeServices) Delete(ctx context.Context, mediaID uint) error {
	f.deleted = mediaID
	return f.err
}

func (f *fakeServices) List(ctx context.Context, in svcMedia.ListInput) ([]svcMedia.Item, error) {
	f.listIn = in
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.items != nil {
		return f.items, nil
	}
	return []svcMedia.Item{{ID: 1, URL: "/uploads/1/1/a.jpg", Name: "a.jpg", AltText: map[string]string{}}}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *fakeServices) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &fakeServices{}
	router := gin.New()
	NewHandler(fake, fake, fake, fake).Register(router.Group("/api"))
	return router, fake
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestUpload 测试上传表单解析
func TestUpload(t *testing.T) {
	router, fake := setupTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "holiday.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("image-bytes"))
	_ = mw.WriteField("owner_type", "listing")
	_ = mw.WriteField("owner_id", "42")
	_ = mw.WriteField("context", "gallery")
	_ = mw.WriteField("album_id", "3")
	_ = mw.WriteField("autosave", "true")
	_ = mw.WriteField("preview_variant", "crop,100,100")
	_ = mw.WriteField("image_variants[]", "resize,800,")
	_ = mw.WriteField("image_variants[]", " ")
	_ = mw.WriteField("image_variants", "compositeBlur,400,300")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image-bytes", fake.uploadBody)
	assert.Equal(t, "holiday.jpg", fake.uploadIn.Filename)
	assert.Equal(t, owner.Ref{Type: "listing", ID: "42", Context: "gallery"}, fake.uploadIn.Owner)
	require.NotNil(t, fake.uploadIn.AlbumID)
	assert.Equal(t, uint(3), *fake.uploadIn.AlbumID)
	assert.True(t, fake.uploadIn.Autosave)
	assert.Equal(t, "crop,100,100", fake.uploadIn.PreviewSpec)
	assert.Equal(t, []string{"resize,800,", "compositeBlur,400,300"}, fake.uploadIn.WarmSpecs)

	data := decode(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 7, data["id"])
	assert.Equal(t, "/uploads/1/7/a.jpg", data["url"])
	assert.Equal(t, "/uploads/1/7/crop_200_200_70/a.jpg", data["previewUrl"])
	assert.EqualValues(t, 1, data["albumId"])
	assert.Equal(t, "k-1", data["tempKey"])
}

// TestUpload_Errors 测试上传错误映射
func TestUpload_Errors(t *testing.T) {
	router, fake := setupTestRouter(t)

	send := func(fields map[string]string, withFile bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if withFile {
			part, _ := mw.CreateFormFile("file", "a.jpg")
			_, _ = part.Write([]byte("x"))
		}
		for k, v := range fields {
			_ = mw.WriteField(k, v)
		}
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, send(nil, false).Code)
	assert.Equal(t, http.StatusBadRequest, send(map[string]string{"album_id": "abc"}, true).Code)

	fake.uploadErr = apperr.Validation("media.ingest", "unsupported file type")
	w := send(nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Msg, "unsupported file type")

	fake.uploadErr = apperr.Storage("media.ingest", "1/2/a.jpg", io.ErrShortWrite)
	w = send(nil, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "1/2/a.jpg")
}

// TestList 测试查询请求
func TestList(t *testing.T) {
	router, fake := setupTestRouter(t)

	w := postJSON(router, "/api/media/list", map[string]interface{}{
		"ownerType": "listing", "ownerId": "42", "context": "gallery", "previewVariant": "resize,300,",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, owner.Ref{Type: "listing", ID: "42", Context: "gallery"}, fake.listIn.Owner)
	assert.Equal(t, "resize,300,", fake.listIn.PreviewSpec)
	assert.Nil(t, fake.listIn.AlbumID)

	items := decode(t, w).Data.([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "a.jpg", items[0].(map[string]interface{})["name"])

	fake.err = apperr.NotFound("media.list", "album 9 not found")
	w = postJSON(router, "/api/media/list", map[string]interface{}{"albumId": 9})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, fake.listIn.AlbumID)
	assert.Equal(t, uint(9), *fake.listIn.AlbumID)
}

// TestFinalize 测试提交请求
func TestFinalize(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		check      func(t *testing.T, f *fakeServices)
	}{
		{
			name:       "by album",
			body:       map[string]interface{}{"albumId": 5, "ids": []uint{3, 1}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *fakeServices) {
				assert.Equal(t, uint(5), f.finalizedAlbum)
				assert.Equal(t, []uint{3, 1}, f.finalizedIDs)
			},
		},
		{
			name:       "by owner with album",
			body:       map[string]interface{}{"albumId": 5, "ownerType": "listing", "ownerId": "42", "ids": []uint{}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *fakeServices) {
				assert.Equal(t, owner.Ref{Type: "listing", ID: "42"}, f.ownerRef)
				require.NotNil(t, f.ownerAlbum)
				assert.Equal(t, uint(5), *f.ownerAlbum)
				assert.Empty(t, f.finalizedIDs)
				assert.Zero(t, f.finalizedAlbum)
			},
		},
		{
			name:       "missing ids",
			body:       map[string]interface{}{"albumId": 5},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing target",
			body:       map[string]interface{}{"ids": []uint{1}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fake := setupTestRouter(t)
			w := postJSON(router, "/api/media/finalize", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, fake)
			}
		})
	}
}

func decodeFinalize(t *testing.T, w *httptest.ResponseRecorder) finalizeResponse {
	t.Helper()
	var resp struct {
		Status string           `json:"status"`
		Data   finalizeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	return resp.Data
}

// TestFinalize_ReturnsCommittedList 测试提交后按最终顺序返回媒体列表
func TestFinalize_ReturnsCommittedList(t *testing.T) {
	router, fake := setupTestRouter(t)
	fake.items = []svcMedia.Item{
		{ID: 3, URL: "/uploads/5/3/c.jpg", PreviewURL: "/uploads/5/3/crop_50_50_70/c.jpg", Name: "c.jpg"},
		{ID: 1, URL: "/uploads/5/1/a.jpg", PreviewURL: "/uploads/5/1/crop_50_50_70/a.jpg", Name: "a.jpg"},
	}

	w := postJSON(router, "/api/media/finalize", map[string]interface{}{
		"albumId": 5, "ids": []uint{3, 1}, "previewVariant": "crop,50,50",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeFinalize(t, w)
	assert.Equal(t, uint(5), data.AlbumID)
	require.Len(t, data.Items, 2)
	assert.Equal(t, uint(3), data.Items[0].ID)
	assert.Equal(t, uint(1), data.Items[1].ID)
	assert.Equal(t, "/uploads/5/3/crop_50_50_70/c.jpg", data.Items[0].PreviewURL)

	require.NotNil(t, fake.listIn.AlbumID)
	assert.Equal(t, uint(5), *fake.listIn.AlbumID)
	assert.Equal(t, "crop,50,50", fake.listIn.PreviewSpec)
	assert.Empty(t, fake.listIn.Owner.Type)
}

// TestFinalize_OwnerResolvedAlbum 测试按所有者提交时使用解析出的相册查询
func TestFinalize_OwnerResolvedAlbum(t *testing.T) {
	router, fake := setupTestRouter(t)
	fake.ownerAlbumID = 8
	fake.items = []svcMedia.Item{{ID: 4, Name: "d.jpg"}}

	w := postJSON(router, "/api/media/finalize", map[string]interface{}{
		"ownerType": "listing", "ownerId": "42", "context": "gallery", "ids": []uint{4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeFinalize(t, w)
	assert.Equal(t, uint(8), data.AlbumID)
	require.Len(t, data.Items, 1)
	assert.Equal(t, uint(4), data.Items[0].ID)
	require.NotNil(t, fake.listIn.AlbumID)
	assert.Equal(t, uint(8), *fake.listIn.AlbumID)
}

// TestFinalize_OwnerWithoutAlbum 测试所有者没有相册时返回空列表
func TestFinalize_OwnerWithoutAlbum(t *testing.T) {
	router, fake := setupTestRouter(t)

	w := postJSON(router, "/api/media/finalize", map[string]interface{}{
		"ownerType": "listing", "ownerId": "99", "ids": []uint{},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"items":[]`)

	data := decodeFinalize(t, w)
	assert.Zero(t, data.AlbumID)
	assert.Empty(t, data.Items)
	assert.Zero(t, fake.listCalls)
}

// TestFinalize_ServiceError 测试提交失败时不查询列表
func TestFinalize_ServiceError(t *testing.T) {
	router, fake := setupTestRouter(t)
	fake.err = apperr.NotFound("media.finalize", "album 5 not found")

	w := postJSON(router, "/api/media/finalize", map[string]interface{}{"albumId": 5, "ids": []uint{1}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, fake.listCalls)
}

// TestUpdatePositions 测试排序请求
func TestUpdatePositions(t *testing.T) {
	router, fake := setupTestRouter(t)

	w := postJSON(router, "/api/media/positions", map[string]interface{}{"albumId": 2, "ids": []uint{9, 8}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(2), fake.finalizedAlbum)
	assert.Equal(t, []uint{9, 8}, fake.reordered)

	w = postJSON(router, "/api/media/positions", map[string]interface{}{"ids": []uint{9}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	fake.err = apperr.Validation("media.reorder", "duplicate media id 9")
	w = postJSON(router, "/api/media/positions", map[string]interface{}{"albumId": 2, "ids": []uint{9, 9}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestEditAndDelete 测试编辑与删除
func TestEditAndDelete(t *testing.T) {
	router, fake := setupTestRouter(t)

	w := postJSON(router, "/api/media/12/edit", map[string]interface{}{"altText": map[string]string{"en": "Lake"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"en": "Lake"}, fake.altText)

	w = postJSON(router, "/api/media/abc/edit", map[string]interface{}{"altText": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/api/media/12/edit", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/api/media/12/delete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(12), fake.deleted)

	fake.err = apperr.NotFound("media.delete", "media 13 not found")
	w = postJSON(router, "/api/media/13/delete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(decode(t, w).Msg, "not found"))
}
