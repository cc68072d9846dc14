// internal/application/components/redis/redis_component.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
	"github.com/grand-thief-cash/tvaccess/internal/application/consts"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// 启动探活给足网络预算, 健康检查收紧避免拖慢巡检。
const (
	startPingTimeout  = 5 * time.Second
	healthPingTimeout = 2 * time.Second
)

// RedisComponent 持有 UniversalClient。上层的预校验缓存通过 Client() 取用;
// 组件只负责连接生命周期, 不做任何键空间约定。
type RedisComponent struct {
	*core.BaseComponent
	cfg    *Config
	client redis.UniversalClient
}

func NewRedisComponent(cfg *Config) *RedisComponent {
	return &RedisComponent{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_REDIS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (rc *RedisComponent) Start(ctx context.Context) error {
	if err := rc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if err := rc.cfg.validate(); err != nil {
		return err
	}
	client := redis.NewUniversalClient(rc.cfg.universalOptions())

	pingCtx, cancel := context.WithTimeout(ctx, startPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}
	// ping 通过才挂到组件上, 失败时不留半开的 client。
	rc.client = client

	logging.Info(ctx, "redis component started",
		zap.String("mode", rc.cfg.Mode),
		zap.Strings("addrs", rc.cfg.Addresses),
	)
	return nil
}

func (rc *RedisComponent) Stop(ctx context.Context) error {
	defer rc.BaseComponent.Stop(ctx)
	if rc.client != nil {
		_ = rc.client.Close()
		logging.Info(ctx, "redis component stopped")
	}
	return nil
}

func (rc *RedisComponent) HealthCheck() error {
	if err := rc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if rc.client == nil {
		return fmt.Errorf("redis client nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthPingTimeout)
	defer cancel()
	return rc.client.Ping(ctx).Err()
}

// Client 在 Start 成功之前返回 nil。
func (rc *RedisComponent) Client() redis.UniversalClient {
	return rc.client
}
