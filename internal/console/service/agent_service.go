package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AgentRepository хранилище флага паузы агента (источник правды).
type AgentRepository interface {
	SetPaused(ctx context.Context, agentID string, paused bool) error
}

// KillSwitch рассылает сигнал паузы всем инстансам.
type KillSwitch interface {
	Publish(ctx context.Context, agentID string, paused bool) error
}

type AgentService struct {
	repo   AgentRepository
	ks     KillSwitch
	logger *zap.Logger
}

// NewAgentService repo может быть nil: тогда пауза живет только в kill-switch.
func NewAgentService(repo AgentRepository, ks KillSwitch, logger *zap.Logger) *AgentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentService{
		repo:   repo,
		ks:     ks,
		logger: logger.Named("agent-service"),
	}
}

// updatePauseState: унифицированный механизм переключения паузы.
// Обновляет БД и транслирует сигнал в Redis.
func (s *AgentService) updatePauseState(ctx context.Context, agentID string, paused bool, actionName string) error {
	// 1. Persistence Layer
	if s.repo != nil {
		if err := s.repo.SetPaused(ctx, agentID, paused); err != nil {
			s.logger.Error("failed to update agent pause state in DB",
				zap.String("agent_id", agentID),
				zap.String("action", actionName),
				zap.Error(err))
			return fmt.Errorf("%s database error: %w", actionName, err)
		}
	}

	// 2. Real-time Signaling: БД уже обновлена, остальные инстансы подхватят ее при переподключении
	if err := s.ks.Publish(ctx, agentID, paused); err != nil {
		s.logger.Warn("runtime signal delivery failed",
			zap.String("agent_id", agentID),
			zap.String("action", actionName),
			zap.Error(err))
		return nil
	}

	s.logger.Info("agent state updated successfully",
		zap.String("agent_id", agentID),
		zap.String("action", actionName),
		zap.Bool("paused", paused))
	return nil
}

func (s *AgentService) PauseAgent(ctx context.Context, agentID string) error {
	return s.updatePauseState(ctx, agentID, true, "kill-switch-pause")
}

func (s *AgentService) ResumeAgent(ctx context.Context, agentID string) error {
	return s.updatePauseState(ctx, agentID, false, "kill-switch-resume")
}
