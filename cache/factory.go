package cache

import (
	"context"
	"fmt"

	"github.com/anoixa/media-album/cache/memory"
	"github.com/anoixa/media-album/cache/redis"
	"github.com/anoixa/media-album/cache/types"
	"github.com/anoixa/media-album/config"
	"github.com/anoixa/media-album/utils"
)

// New 根据配置创建缓存提供者
// Redis 不可用时回退到内存缓存
func New(ctx context.Context, cfg *config.Config) (types.Provider, error) {
	switch cfg.CacheType {
	case "", "memory":
		return memory.NewMemory(memory.DefaultConfig())
	case "redis":
		provider, err := redis.NewRedis(ctx, redis.Config{
			Addr:     cfg.CacheRedisAddr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
		})
		if err != nil {
			log := utils.Logger("cache")
			log.Warn().Err(err).Msg("redis unavailable, falling back to memory cache")
			return memory.NewMemory(memory.DefaultConfig())
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}
