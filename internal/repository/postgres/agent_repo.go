package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type AgentRepo struct {
	db *sql.DB
}

// NewAgentRepo создает новый экземпляр репозитория
func NewAgentRepo(db *sql.DB) *AgentRepo {
	return &AgentRepo{db: db}
}

// FetchAgentsByIDs читает агентов одним запросом. Отсутствующие id в результат не попадают.
func (r *AgentRepo) FetchAgentsByIDs(ctx context.Context, ids []string) (map[string]domain.Agent, error) {
	out := make(map[string]domain.Agent, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, name, is_active, paused_at, consecutive_failures, max_consecutive_failures, health_status
		FROM agents
		WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a        domain.Agent
			pausedAt sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.IsActive, &pausedAt,
			&a.ConsecutiveFailures, &a.MaxConsecutiveFailures, &a.HealthStatus); err != nil {
			return nil, fmt.Errorf("postgres: scan agent: %w", err)
		}
		if pausedAt.Valid {
			a.PausedAt = &pausedAt.Time
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// PausedAgentIDs нужен для прогрева kill-switch при старте.
func (r *AgentRepo) PausedAgentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM agents WHERE paused_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list paused agents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetPaused ставит агента на паузу или снимает ее (Kill-switch)
func (r *AgentRepo) SetPaused(ctx context.Context, id string, paused bool) error {
	query := `UPDATE agents SET paused_at = NULL, updated_at = NOW() WHERE id = $1`
	if paused {
		query = `UPDATE agents SET paused_at = COALESCE(paused_at, NOW()), updated_at = NOW() WHERE id = $1`
	}

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update pause state: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("postgres: agent %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
