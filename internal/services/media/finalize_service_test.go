package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anoixa/media-album/database/models"
	"github.com/anoixa/media-album/internal/apperr"
	"github.com/anoixa/media-album/internal/owner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) positions(t *testing.T, albumID uint) []uint {
	t.Helper()
	var items []models.Media
	require.NoError(t, e.db.Where("album_id = ?", albumID).Order("position ASC, id ASC").Find(&items).Error)
	ids := make([]uint, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ID)
	}
	return ids
}

// TestFinalize_KeepsOrderAndDeletesRest 测试保留、排序与删除
func TestFinalize_KeepsOrderAndDeletesRest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.ingest(t, UploadInput{})
	b := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID)})
	c := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID)})
	removedPath := env.mediaRow(t, b.ID).URL

	require.NoError(t, env.finalize.Finalize(ctx, a.AlbumID, []uint{c.ID, a.ID}))

	assert.Equal(t, []uint{c.ID, a.ID}, env.positions(t, a.AlbumID))
	assert.Equal(t, 0, env.mediaRow(t, c.ID).Position)
	assert.Equal(t, 1, env.mediaRow(t, a.ID).Position)
	assert.False(t, env.mediaRow(t, c.ID).IsTemporary())
	assert.False(t, env.mediaRow(t, a.ID).IsTemporary())
	assert.EqualValues(t, 2, env.count(t, &models.Media{}))

	assert.False(t, env.fileExists(t, removedPath))
	assert.True(t, env.fileExists(t, env.mediaRow(t, a.ID).URL))

	// 重复提交结果不变
	require.NoError(t, env.finalize.Finalize(ctx, a.AlbumID, []uint{c.ID, a.ID}))
	assert.Equal(t, []uint{c.ID, a.ID}, env.positions(t, a.AlbumID))
}

// TestFinalize_EmptyListDeletesAll 测试空列表删除全部媒体
func TestFinalize_EmptyListDeletesAll(t *testing.T) {
	env := newTestEnv(t)

	a := env.ingest(t, UploadInput{Autosave: true})
	b := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID)})
	c := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID)})

	var paths []string
	for _, r := range []*UploadResult{a, b, c} {
		path := env.mediaRow(t, r.ID).URL
		require.True(t, env.fileExists(t, path))
		paths = append(paths, path)
	}

	require.NoError(t, env.finalize.Finalize(context.Background(), a.AlbumID, []uint{}))
	assert.Zero(t, env.count(t, &models.Media{}))
	assert.EqualValues(t, 1, env.count(t, &models.Album{}))
	for _, path := range paths {
		assert.False(t, env.fileExists(t, path), path)
	}
}

// TestFinalize_IgnoresForeignIDs 测试忽略不属于该相册的 ID
func TestFinalize_IgnoresForeignIDs(t *testing.T) {
	env := newTestEnv(t)

	a := env.ingest(t, UploadInput{})
	other := env.ingest(t, UploadInput{})
	require.NotEqual(t, a.AlbumID, other.AlbumID)

	require.NoError(t, env.finalize.Finalize(context.Background(), a.AlbumID, []uint{other.ID, a.ID, 9999}))

	assert.Equal(t, 1, env.mediaRow(t, a.ID).Position)
	assert.True(t, env.mediaRow(t, other.ID).IsTemporary(), "media of other albums must not change")
}

// TestFinalize_Errors 测试校验与不存在的相册
func TestFinalize_Errors(t *testing.T) {
	env := newTestEnv(t)
	a := env.ingest(t, UploadInput{})

	err := env.finalize.Finalize(context.Background(), a.AlbumID, []uint{a.ID, a.ID})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
	assert.True(t, env.mediaRow(t, a.ID).IsTemporary())

	err = env.finalize.Finalize(context.Background(), 9999, []uint{a.ID})
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

// TestFinalizeForOwner 测试表单提交流程
func TestFinalizeForOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := owner.Ref{Type: "listing", ID: "7", Context: "gallery"}

	t.Run("owner album", func(t *testing.T) {
		a := env.ingest(t, UploadInput{Owner: ref})
		b := env.ingest(t, UploadInput{Owner: ref})

		albumID, err := env.finalize.FinalizeForOwner(ctx, ref, nil, []uint{b.ID})
		require.NoError(t, err)
		assert.Equal(t, a.AlbumID, albumID)
		assert.Equal(t, []uint{b.ID}, env.positions(t, a.AlbumID))
		assert.False(t, env.mediaRow(t, b.ID).IsTemporary())
	})

	t.Run("attach album uploaded before owner existed", func(t *testing.T) {
		newRef := owner.Ref{Type: "listing", ID: "8"}
		staged := env.ingest(t, UploadInput{Owner: owner.Ref{Type: "listing"}})

		albumID, err := env.finalize.FinalizeForOwner(ctx, newRef, uintPtr(staged.AlbumID), []uint{staged.ID})
		require.NoError(t, err)
		assert.Equal(t, staged.AlbumID, albumID)

		var attachment models.AlbumAttachment
		require.NoError(t, env.db.Where("owner_type = ? AND owner_id = ?", "listing", "8").First(&attachment).Error)
		assert.Equal(t, staged.AlbumID, attachment.AlbumID)
		assert.Equal(t, "default", attachment.Context)
		assert.False(t, env.mediaRow(t, staged.ID).IsTemporary())
	})

	t.Run("owner without album", func(t *testing.T) {
		before := env.count(t, &models.Album{})
		albumID, err := env.finalize.FinalizeForOwner(ctx, owner.Ref{Type: "listing", ID: "99"}, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, albumID)
		assert.Equal(t, before, env.count(t, &models.Album{}))
	})

	t.Run("invalid owner", func(t *testing.T) {
		_, err := env.finalize.FinalizeForOwner(ctx, owner.Ref{Type: "listing"}, nil, nil)
		assert.True(t, errors.Is(err, apperr.ErrValidation))

		_, err = env.finalize.FinalizeForOwner(ctx, owner.Ref{Type: "invoice", ID: "1"}, nil, nil)
		assert.True(t, errors.Is(err, apperr.ErrConfiguration), "got %v", err)
	})
}

// TestReorder 测试重新排序
func TestReorder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.ingest(t, UploadInput{Autosave: true})
	b := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID), Autosave: true})
	c := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID), Autosave: true})
	d := env.ingest(t, UploadInput{AlbumID: uintPtr(a.AlbumID), Autosave: true})

	require.NoError(t, env.finalize.Reorder(ctx, a.AlbumID, []uint{d.ID, 12345, b.ID}))
	assert.Equal(t, []uint{d.ID, b.ID, a.ID, c.ID}, env.positions(t, a.AlbumID))
	assert.Equal(t, 3, env.mediaRow(t, c.ID).Position)

	err := env.finalize.Reorder(ctx, a.AlbumID, []uint{a.ID, a.ID})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	err = env.finalize.Reorder(ctx, 9999, []uint{a.ID})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

// TestUpdateAltText 测试替代文本编辑
func TestUpdateAltText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingest(t, UploadInput{})

	m, err := env.finalize.UpdateAltText(ctx, a.ID, map[string]string{"en": "  A quiet lake ", "de": "", "fr": "Un lac"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"en": "A quiet lake", "fr": "Un lac"}, m.AltText)
	assert.Equal(t, map[string]string{"en": "A quiet lake", "fr": "Un lac"}, env.mediaRow(t, a.ID).AltText)

	_, err = env.finalize.UpdateAltText(ctx, a.ID, map[string]string{"en": strings.Repeat("x", 1001)})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.finalize.UpdateAltText(ctx, a.ID, map[string]string{" ": "text"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.finalize.UpdateAltText(ctx, 9999, map[string]string{"en": "x"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
