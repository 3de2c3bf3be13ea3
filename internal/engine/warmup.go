package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WarmupState прогревает L1 (RAM) и L2 (Redis) кэши.
// Возвращает объединение ids из БД и уже лежащих в Redis.
func WarmupState(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	ids []string,
	redisKey string,
	lockKey string,
	updateL1 func([]string), // Callback для обновления локальной мапы
) error {
	// 1. Обновляем локальный кэш (L1) данными из БД
	updateL1(ids)

	if rdb == nil {
		return nil
	}

	// 2. Подтягиваем то, что другие инстансы успели записать в Redis
	if members, err := rdb.SMembers(ctx, redisKey).Result(); err == nil {
		updateL1(members)
	} else {
		logger.Warn("could not read Redis set", zap.String("key", redisKey), zap.Error(err))
	}

	// 3. Распределенная блокировка (SetNX), чтобы только один инстанс обновлял Redis
	ok, err := rdb.SetNX(ctx, lockKey, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой уже греет кэш
	}

	if len(ids) == 0 {
		return nil
	}

	logger.Info("warming up Redis cache from DB", zap.String("key", redisKey), zap.Int("count", len(ids)))
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	return rdb.SAdd(ctx, redisKey, members...).Err()
}
