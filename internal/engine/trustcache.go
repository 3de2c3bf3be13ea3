package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/infra"
	"go.uber.org/zap"
)

type TrustRepository interface {
	GetTrustConfig(ctx context.Context, orgID string) (domain.TrustConfig, error)
}

// TrustCache хранит настройки доверия организаций в памяти.
// Промах идет в репозиторий, изменения с других инстансов приходят через Redis Pub/Sub.
type TrustCache struct {
	mu      sync.RWMutex
	configs map[string]domain.TrustConfig

	repo   TrustRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewTrustCache(repo TrustRepository, rdb *redis.Client, logger *zap.Logger) *TrustCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrustCache{
		configs: make(map[string]domain.TrustConfig),
		repo:    repo,
		rdb:     rdb,
		logger:  logger.Named("trust-cache"),
	}
}

// Get Hot Path: память, затем репозиторий. Без репозитория отдает настройки по умолчанию.
func (c *TrustCache) Get(ctx context.Context, orgID string) (domain.TrustConfig, error) {
	c.mu.RLock()
	cfg, ok := c.configs[orgID]
	c.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	if c.repo == nil {
		return domain.DefaultTrustConfig(orgID), nil
	}

	cfg, err := c.repo.GetTrustConfig(ctx, orgID)
	if err != nil {
		return domain.TrustConfig{}, fmt.Errorf("engine: load trust config %s: %w", orgID, err)
	}

	c.mu.Lock()
	c.configs[orgID] = cfg
	c.mu.Unlock()
	return cfg, nil
}

func (c *TrustCache) Invalidate(orgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.configs, orgID)
}

func (c *TrustCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = make(map[string]domain.TrustConfig)
}

// Publish сбрасывает локальную запись и оповещает остальные инстансы.
func (c *TrustCache) Publish(ctx context.Context, orgID string) error {
	c.Invalidate(orgID)
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Publish(ctx, infra.RedisChanTrustUpdate, orgID+":true").Err(); err != nil {
		return fmt.Errorf("engine: publish trust update: %w", err)
	}
	return nil
}

// StartListener блокирует до отмены ctx.
func (c *TrustCache) StartListener(ctx context.Context) {
	if c.rdb == nil {
		c.logger.Warn("redis is not configured, trust cache invalidation disabled")
		return
	}
	ListenStateResilient(ctx, c.rdb, c.logger, infra.RedisChanTrustUpdate,
		func() error {
			// Пропущенные сигналы неизвестны, поэтому кэш сбрасывается целиком
			c.Reset()
			return nil
		},
		func(orgID string, _ bool) {
			c.Invalidate(orgID)
			c.logger.Debug("trust config invalidated", zap.String("org_id", orgID))
		})
}
