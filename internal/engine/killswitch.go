package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/spaceai-governor/internal/infra"
	"go.uber.org/zap"
)

// PausedAgentsProvider отдает идентификаторы агентов, поставленных на паузу в БД.
type PausedAgentsProvider interface {
	PausedAgentIDs(ctx context.Context) ([]string, error)
}

// KillSwitchManager держит L1-кэш агентов на паузе.
// Источник правды БД, Redis раздает сигналы между инстансами.
type KillSwitchManager struct {
	mu            sync.RWMutex
	blockedAgents map[string]struct{}
	rdb           *redis.Client
	repo          PausedAgentsProvider
	logger        *zap.Logger
}

// NewKillSwitchManager rdb и repo могут быть nil (деградированный режим, только память).
func NewKillSwitchManager(rdb *redis.Client, repo PausedAgentsProvider, logger *zap.Logger) *KillSwitchManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KillSwitchManager{
		blockedAgents: make(map[string]struct{}),
		rdb:           rdb,
		repo:          repo,
		logger:        logger.Named("kill-switch"),
	}
}

// Init загружает текущее состояние блокировок при старте сервиса
func (m *KillSwitchManager) Init(ctx context.Context) error {
	var ids []string
	if m.repo != nil {
		var err error
		if ids, err = m.repo.PausedAgentIDs(ctx); err != nil {
			return fmt.Errorf("engine: load paused agents: %w", err)
		}
	}

	// Полная перезагрузка L1: сигналы "resume" могли потеряться, пока не было связи
	m.mu.Lock()
	m.blockedAgents = make(map[string]struct{}, len(ids))
	m.mu.Unlock()

	err := WarmupState(ctx, m.rdb, m.logger, ids, infra.RedisKeyPausedAgents, infra.RedisKeyLockPaused, func(batch []string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range batch {
			m.blockedAgents[id] = struct{}{}
		}
	})
	if err != nil {
		return fmt.Errorf("engine: warmup paused agents: %w", err)
	}

	m.logger.Info("kill-switch state loaded", zap.Int("paused", m.count()))
	return nil
}

// StartListener подписывается на Redis и обновляет состояние. Блокирует до отмены ctx.
func (m *KillSwitchManager) StartListener(ctx context.Context) {
	if m.rdb == nil {
		m.logger.Warn("redis is not configured, kill-switch listener disabled")
		return
	}
	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanKillSwitch,
		func() error { return m.Init(ctx) },
		func(agentID string, paused bool) {
			if paused {
				m.MarkAsBlocked(agentID)
				m.logger.Info("agent paused", zap.String("agent_id", agentID))
				return
			}
			m.Unblock(agentID)
			m.logger.Info("agent resumed", zap.String("agent_id", agentID))
		})
}

// Publish рассылает сигнал паузы/возобновления всем инстансам и обновляет L1.
func (m *KillSwitchManager) Publish(ctx context.Context, agentID string, paused bool) error {
	if paused {
		m.MarkAsBlocked(agentID)
	} else {
		m.Unblock(agentID)
	}
	if m.rdb == nil {
		return nil
	}

	pipe := m.rdb.TxPipeline()
	if paused {
		pipe.SAdd(ctx, infra.RedisKeyPausedAgents, agentID)
	} else {
		pipe.SRem(ctx, infra.RedisKeyPausedAgents, agentID)
	}
	pipe.Publish(ctx, infra.RedisChanKillSwitch, fmt.Sprintf("%s:%t", agentID, paused))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("engine: publish kill-switch signal: %w", err)
	}
	return nil
}

func (m *KillSwitchManager) IsBlocked(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, blocked := m.blockedAgents[agentID]
	return blocked
}

func (m *KillSwitchManager) MarkAsBlocked(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockedAgents[agentID] = struct{}{}
}

func (m *KillSwitchManager) Unblock(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blockedAgents, agentID)
}

func (m *KillSwitchManager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blockedAgents)
}
