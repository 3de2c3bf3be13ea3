package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type TrustRepo struct {
	db *sql.DB
}

func NewTrustRepo(db *sql.DB) *TrustRepo {
	return &TrustRepo{db: db}
}

const trustColumns = `task_execution, decomposition, skill_creation, tool_usage,
	content_publishing, external_actions, spending, agent_creation, max_total_active_tasks`

// GetTrustConfig без строки в БД возвращает настройки по умолчанию.
func (r *TrustRepo) GetTrustConfig(ctx context.Context, orgID string) (domain.TrustConfig, error) {
	query := `SELECT ` + trustColumns + ` FROM trust_configs WHERE organization_id = $1`

	cfg := domain.TrustConfig{OrganizationID: orgID}
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&cfg.TaskExecution, &cfg.Decomposition, &cfg.SkillCreation, &cfg.ToolUsage,
		&cfg.ContentPublishing, &cfg.ExternalActions, &cfg.Spending, &cfg.AgentCreation,
		&cfg.MaxTotalActiveTasks,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultTrustConfig(orgID), nil
	}
	if err != nil {
		return domain.TrustConfig{}, fmt.Errorf("postgres: get trust config: %w", err)
	}
	return cfg, nil
}

// SaveTrustConfig upsert по organization_id.
func (r *TrustRepo) SaveTrustConfig(ctx context.Context, cfg domain.TrustConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO trust_configs (organization_id, ` + trustColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			task_execution = EXCLUDED.task_execution,
			decomposition = EXCLUDED.decomposition,
			skill_creation = EXCLUDED.skill_creation,
			tool_usage = EXCLUDED.tool_usage,
			content_publishing = EXCLUDED.content_publishing,
			external_actions = EXCLUDED.external_actions,
			spending = EXCLUDED.spending,
			agent_creation = EXCLUDED.agent_creation,
			max_total_active_tasks = EXCLUDED.max_total_active_tasks,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, cfg.OrganizationID,
		int(cfg.TaskExecution), int(cfg.Decomposition), int(cfg.SkillCreation), int(cfg.ToolUsage),
		int(cfg.ContentPublishing), int(cfg.ExternalActions), int(cfg.Spending), int(cfg.AgentCreation),
		cfg.MaxTotalActiveTasks)
	if err != nil {
		return fmt.Errorf("postgres: save trust config: %w", err)
	}
	return nil
}
