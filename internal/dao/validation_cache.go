package dao

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	redisComp "github.com/grand-thief-cash/tvaccess/internal/application/components/redis"
	infraConsts "github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
	"github.com/grand-thief-cash/tvaccess/internal/tvapi"
)

// ValidationCache 缓存 subject-exists 结论，避免同一用户在相邻批量运行里被
// 反复查询。丢失或出错一律当作未命中。
type ValidationCache interface {
	core.Component
	Lookup(ctx context.Context, subject string) (exists bool, hit bool)
	Store(ctx context.Context, subject string, exists bool)
}

type validationCacheImpl struct {
	*core.BaseComponent
	Redis  *redisComp.RedisComponent `infra:"dep:redis?"`
	ttl    time.Duration
	prefix string
}

func NewValidationCache(ttl time.Duration, prefix string) ValidationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &validationCacheImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_VALIDATION_CACHE, infraConsts.COMPONENT_LOGGING),
		ttl:           ttl,
		prefix:        prefix,
	}
}

func (v *validationCacheImpl) Lookup(ctx context.Context, subject string) (bool, bool) {
	if v.Redis == nil {
		return false, false
	}
	val, err := v.Redis.Client().Get(ctx, v.prefix+subject).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Debugf(ctx, "validation cache get %s: %v", subject, err)
		}
		return false, false
	}
	return val == "1", true
}

func (v *validationCacheImpl) Store(ctx context.Context, subject string, exists bool) {
	if v.Redis == nil {
		return
	}
	val := "0"
	if exists {
		val = "1"
	}
	if err := v.Redis.Client().Set(ctx, v.prefix+subject, val, v.ttl).Err(); err != nil {
		logging.Debugf(ctx, "validation cache set %s: %v", subject, err)
	}
}

// CachedProvider decorates SubjectExists with the cache. Lookup errors are
// never cached; PerformOperation always passes through.
type CachedProvider struct {
	tvapi.AccessProvider
	cache ValidationCache
}

func NewCachedProvider(p tvapi.AccessProvider, cache ValidationCache) *CachedProvider {
	return &CachedProvider{AccessProvider: p, cache: cache}
}

func (p *CachedProvider) SubjectExists(ctx context.Context, subject string) (bool, error) {
	if exists, hit := p.cache.Lookup(ctx, subject); hit {
		return exists, nil
	}
	exists, err := p.AccessProvider.SubjectExists(ctx, subject)
	if err != nil {
		return exists, err
	}
	p.cache.Store(ctx, subject, exists)
	return exists, nil
}
