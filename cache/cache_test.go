package cache

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dims struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

func TestKeyBuilder(t *testing.T) {
	kb := NewKeyBuilder("dims")
	assert.Equal(t, "dims", kb.Build())
	assert.Equal(t, "dims:a.jpg:1024", kb.Build("a.jpg", "1024"))
}

func TestNew_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider, err := New(ctx, &config.Config{CacheType: "memory"})
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "memory", provider.Name())

	var got dims
	err = provider.Get(ctx, "missing", &got)
	assert.True(t, types.IsCacheMiss(err))

	require.NoError(t, provider.Set(ctx, "k", dims{Width: 2000, Height: 1500}, time.Minute))
	require.NoError(t, provider.Get(ctx, "k", &got))
	assert.Equal(t, dims{Width: 2000, Height: 1500}, got)

	require.NoError(t, provider.Delete(ctx, "k"))
	assert.True(t, types.IsCacheMiss(provider.Get(ctx, "k", &got)))
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(context.Background(), &config.Config{CacheType: "memcached"})
	assert.Error(t, err)
}
