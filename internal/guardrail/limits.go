package guardrail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-governor/internal/domain"
)

// ActiveTaskCounter считает задачи организации в queued, in_progress и review (без удаленных).
type ActiveTaskCounter interface {
	GetActiveTaskCount(ctx context.Context, orgID string) (int, error)
}

type LimitResult struct {
	WithinLimits bool     `json:"within_limits"`
	Violations   []string `json:"violations"`
}

// LimitChecker носит рекомендательный характер: нарушения возвращаются строками,
// а блокировать или предупреждать решает вызывающий.
type LimitChecker struct {
	store  ActiveTaskCounter
	logger *zap.Logger
}

func NewLimitChecker(store ActiveTaskCounter, logger *zap.Logger) *LimitChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LimitChecker{store: store, logger: logger.Named("limits")}
}

func (c *LimitChecker) CheckHardLimits(ctx context.Context, cfg domain.TrustConfig, orgID string) LimitResult {
	res := LimitResult{WithinLimits: true, Violations: []string{}}

	// Degraded mode: без хранилища ограничений нет
	if c == nil || c.store == nil {
		return res
	}
	if cfg.MaxTotalActiveTasks <= 0 {
		return res
	}

	count, err := c.store.GetActiveTaskCount(ctx, orgID)
	if err != nil {
		c.logger.Warn("active task count unavailable, skipping hard limit check",
			zap.String("organization_id", orgID), zap.Error(err))
		return res
	}

	if count >= cfg.MaxTotalActiveTasks {
		res.WithinLimits = false
		res.Violations = append(res.Violations, fmt.Sprintf(
			"active task limit reached: %d of %d tasks are queued, in progress or in review",
			count, cfg.MaxTotalActiveTasks))
	}
	return res
}
