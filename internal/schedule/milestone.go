package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-governor/internal/domain"
	"go.uber.org/zap"
)

type MilestoneStore interface {
	UpdateRecurrence(ctx context.Context, id string, spec domain.RecurrenceSpec, nextRunAt *time.Time) error
	SetNextRun(ctx context.Context, id string, nextRunAt *time.Time) error
	DueMilestones(ctx context.Context, now time.Time, limit int) ([]domain.Milestone, error)
}

// TaskQueuer переводит задачу между статусами с проверкой исходного (CAS).
type TaskQueuer interface {
	TransitionStatus(ctx context.Context, taskID string, from, to domain.TaskStatus) error
}

type SweepResult struct {
	Due     int `json:"due"`
	Fired   int `json:"fired"`
	Failed  int `json:"failed"`
	Retired int `json:"retired"` // сняты без запуска: расписание не прочиталось
}

// Refresher держит next_run_at вех в согласии с их расписанием.
type Refresher struct {
	store     MilestoneStore
	tasks     TaskQueuer
	logger    *zap.Logger
	batchSize int
}

func NewRefresher(store MilestoneStore, tasks TaskQueuer, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		store:     store,
		tasks:     tasks,
		logger:    logger.Named("milestones"),
		batchSize: 100,
	}
}

// Refresh сохраняет новое расписание вехи и пересчитывает next_run_at.
func (r *Refresher) Refresh(ctx context.Context, id string, spec domain.RecurrenceSpec, now time.Time) (*time.Time, error) {
	var next *time.Time
	if t, ok := NextRun(spec, now); ok {
		next = &t
	}
	if err := r.store.UpdateRecurrence(ctx, id, spec, next); err != nil {
		return nil, fmt.Errorf("schedule: refresh milestone %s: %w", id, err)
	}
	return next, nil
}

// Sweep запускает вехи с next_run_at <= now и сдвигает их на следующий запуск.
// Сбой одной вехи не останавливает остальные.
func (r *Refresher) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	due, err := r.store.DueMilestones(ctx, now, r.batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("schedule: load due milestones: %w", err)
	}

	res := SweepResult{Due: len(due)}
	for _, ms := range due {
		if ctx.Err() != nil {
			break
		}
		log := r.logger.With(zap.String("milestone_id", ms.ID), zap.String("org_id", ms.OrganizationID))

		if ms.Recurrence.Type == "" {
			if err := r.store.SetNextRun(ctx, ms.ID, nil); err != nil {
				res.Failed++
				log.Warn("failed to retire milestone", zap.Error(err))
				continue
			}
			res.Retired++
			log.Warn("milestone recurrence is unreadable, retired without firing")
			continue
		}

		if ms.TaskID != "" && r.tasks != nil {
			err := r.tasks.TransitionStatus(ctx, ms.TaskID, domain.TaskPending, domain.TaskQueued)
			switch {
			case errors.Is(err, domain.ErrInvalidTransition):
				// задача уже в работе или в очереди, веха просто сдвигается
				log.Info("linked task is not pending, skipped", zap.String("task_id", ms.TaskID))
			case errors.Is(err, domain.ErrNotFound):
				// задачи больше нет, но веха все равно сдвигается, иначе она застрянет в выборке
				log.Warn("linked task not found, skipped", zap.String("task_id", ms.TaskID))
			case err != nil:
				res.Failed++
				log.Warn("failed to queue milestone task", zap.String("task_id", ms.TaskID), zap.Error(err))
				continue
			}
		}

		var next *time.Time
		if t, ok := NextRun(ms.Recurrence, now); ok {
			next = &t
		}
		if err := r.store.SetNextRun(ctx, ms.ID, next); err != nil {
			res.Failed++
			log.Warn("failed to advance milestone", zap.Error(err))
			continue
		}
		res.Fired++
	}

	if res.Due > 0 {
		r.logger.Info("milestone sweep finished",
			zap.Int("due", res.Due), zap.Int("fired", res.Fired),
			zap.Int("failed", res.Failed), zap.Int("retired", res.Retired))
	}
	return res, nil
}
