package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type MilestoneRepo struct {
	db *sql.DB
}

func NewMilestoneRepo(db *sql.DB) *MilestoneRepo {
	return &MilestoneRepo{db: db}
}

const milestoneColumns = `id, organization_id, title, recurrence, next_run_at, task_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMilestone(row rowScanner) (domain.Milestone, error) {
	var (
		ms         domain.Milestone
		recurrence []byte
		nextRun    sql.NullTime
		taskID     sql.NullString
	)
	if err := row.Scan(&ms.ID, &ms.OrganizationID, &ms.Title, &recurrence, &nextRun, &taskID); err != nil {
		return ms, err
	}
	// Нечитаемое расписание дает пустой RecurrenceSpec: веха не срабатывает, остальные строки не теряются
	if len(recurrence) > 0 {
		if err := json.Unmarshal(recurrence, &ms.Recurrence); err != nil {
			ms.Recurrence = domain.RecurrenceSpec{}
		}
	}
	if nextRun.Valid {
		ms.NextRunAt = &nextRun.Time
	}
	ms.TaskID = taskID.String
	return ms, nil
}

// UpdateRecurrence сохраняет расписание и пересчитанный next_run_at в одном UPDATE.
func (r *MilestoneRepo) UpdateRecurrence(ctx context.Context, id string, spec domain.RecurrenceSpec, nextRunAt *time.Time) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("postgres: encode recurrence: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE milestones SET recurrence = $1, next_run_at = $2, updated_at = NOW() WHERE id = $3`,
		raw, nullTime(nextRunAt), id)
	if err != nil {
		return fmt.Errorf("postgres: update recurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("postgres: milestone %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *MilestoneRepo) SetNextRun(ctx context.Context, id string, nextRunAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE milestones SET next_run_at = $1, last_run_at = NOW(), updated_at = NOW() WHERE id = $2`,
		nullTime(nextRunAt), id)
	if err != nil {
		return fmt.Errorf("postgres: set next run: %w", err)
	}
	return nil
}

// DueMilestones вехи с next_run_at <= now, самые просроченные первыми.
func (r *MilestoneRepo) DueMilestones(ctx context.Context, now time.Time, limit int) ([]domain.Milestone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones
		 WHERE next_run_at IS NOT NULL AND next_run_at <= $1
		 ORDER BY next_run_at ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: due milestones: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Milestone, 0)
	for rows.Next() {
		ms, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan milestone: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
