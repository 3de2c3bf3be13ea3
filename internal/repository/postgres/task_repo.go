package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// priorityRankSQL строится из domain.PriorityOrder, чтобы порядок в SQL и в памяти совпадал.
var priorityRankSQL = func() string {
	var b strings.Builder
	b.WriteString("CASE lower(priority)")
	for i, p := range domain.PriorityOrder {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(domain.PriorityOrder))
	return b.String()
}()

var fetchQueuedTasksQuery = `
	SELECT id, organization_id, title, status, assigned_agent_id, assigned_type, priority, created_at
	FROM tasks
	WHERE status = 'queued'
	  AND assigned_type = 'agent'
	  AND assigned_agent_id IS NOT NULL
	  AND deleted_at IS NULL
	ORDER BY ` + priorityRankSQL + `, created_at ASC
	LIMIT $1`

// FetchQueuedTasks возвращает задачи, готовые к диспетчеризации.
func (r *TaskRepo) FetchQueuedTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, fetchQueuedTasksQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch queued tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0, limit)
	for rows.Next() {
		var (
			t       domain.Task
			agentID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Status, &agentID,
			&t.AssignedType, &t.Priority, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan task: %w", err)
		}
		if agentID.Valid {
			t.AssignedAgentID = &agentID.String
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetActiveTaskCount считает задачи queued, in_progress и review без удаленных.
func (r *TaskRepo) GetActiveTaskCount(ctx context.Context, orgID string) (int, error) {
	statuses := make([]string, 0, len(domain.ActiveTaskStatuses))
	for _, s := range domain.ActiveTaskStatuses {
		statuses = append(statuses, string(s))
	}

	query := `SELECT COUNT(*) FROM tasks WHERE organization_id = $1 AND status = ANY($2) AND deleted_at IS NULL`

	var count int
	if err := r.db.QueryRowContext(ctx, query, orgID, pq.Array(statuses)).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count active tasks: %w", err)
	}
	return count, nil
}

// TransitionStatus меняет статус, только если задача все еще в статусе from (compare-and-set).
func (r *TaskRepo) TransitionStatus(ctx context.Context, taskID string, from, to domain.TaskStatus) error {
	if err := domain.CanTransition(from, to); err != nil {
		return fmt.Errorf("postgres: task %s %s -> %s: %w", taskID, from, to, err)
	}

	query := `UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, string(to), taskID, string(from))
	if err != nil {
		return fmt.Errorf("postgres: update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Ничего не обновили: либо задачи нет, либо ее статус уже сменился
	var current domain.TaskStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1 AND deleted_at IS NULL`, taskID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: task %s: %w", taskID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("postgres: read task status: %w", err)
	}
	return fmt.Errorf("postgres: task %s is %s, expected %s: %w", taskID, current, from, domain.ErrInvalidTransition)
}
