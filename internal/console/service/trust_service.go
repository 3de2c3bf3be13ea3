package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/spaceai-governor/internal/domain"
	"go.uber.org/zap"
)

// ErrStoreUnavailable изменения невозможны без хранилища.
var ErrStoreUnavailable = errors.New("store is not configured")

type TrustRepository interface {
	SaveTrustConfig(ctx context.Context, cfg domain.TrustConfig) error
}

type TrustCache interface {
	Get(ctx context.Context, orgID string) (domain.TrustConfig, error)
	Publish(ctx context.Context, orgID string) error
}

type TrustService struct {
	repo   TrustRepository
	cache  TrustCache
	logger *zap.Logger
}

func NewTrustService(repo TrustRepository, cache TrustCache, logger *zap.Logger) *TrustService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrustService{repo: repo, cache: cache, logger: logger.Named("trust-service")}
}

// Get одно чтение настроек на вызов: из памяти, при промахе из БД.
func (s *TrustService) Get(ctx context.Context, orgID string) (domain.TrustConfig, error) {
	return s.cache.Get(ctx, orgID)
}

// Save проверяет, сохраняет и инвалидирует кэш на всех инстансах.
func (s *TrustService) Save(ctx context.Context, cfg domain.TrustConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.repo == nil {
		return ErrStoreUnavailable
	}
	if err := s.repo.SaveTrustConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save trust config: %w", err)
	}

	if err := s.cache.Publish(ctx, cfg.OrganizationID); err != nil {
		s.logger.Warn("trust invalidation signal failed",
			zap.String("org_id", cfg.OrganizationID), zap.Error(err))
	}
	s.logger.Info("trust config updated", zap.String("org_id", cfg.OrganizationID))
	return nil
}
