// Package dispatch выбирает задачи из очереди и передает их исполнителю.
//
// Один проход ProcessQueue берет до limit задач в порядке приоритета,
// проверяет доступность агентов одним батчем и исполняет задачи по очереди
// с фиксированной паузой. Ошибка одной задачи не прерывает батч.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-governor/internal/audit"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Коды ошибок исполнения в журнале событий.
const (
	CodeExecutorError   = "executor_error"
	CodeExecutionFailed = "execution_failed"
	CodeExecutorPanic   = "executor_panic"
)

var errExecutorPanic = errors.New("executor panic")

const (
	DefaultLimit     = 10
	MaxLimit         = 50
	DefaultTaskDelay = 500 * time.Millisecond
)

type TaskStore interface {
	// FetchQueuedTasks отдает задачи queued, назначенные агенту и не удаленные, в порядке диспетчеризации.
	FetchQueuedTasks(ctx context.Context, limit int) ([]domain.Task, error)
}

type AgentStore interface {
	FetchAgentsByIDs(ctx context.Context, ids []string) (map[string]domain.Agent, error)
}

// PauseChecker L1-кэш kill-switch.
type PauseChecker interface {
	IsBlocked(agentID string) bool
}

type TaskResult struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BatchResult struct {
	Processed int          `json:"processed"`
	Success   int          `json:"success"`
	Failed    int          `json:"failed"`
	Results   []TaskResult `json:"results"`
}

type Options struct {
	TaskDelay time.Duration
}

type Dispatcher struct {
	tasks    TaskStore
	agents   AgentStore
	executor Executor
	pauses   PauseChecker
	auditor  audit.Auditor
	limiter  *rate.Limiter
	metrics  *engine.Metrics
	logger   *zap.Logger
}

// NewDispatcher pauses, auditor и metrics могут быть nil.
// Каждая исполненная задача пишется в журнал событий через auditor.
func NewDispatcher(tasks TaskStore, agents AgentStore, executor Executor, pauses PauseChecker,
	auditor audit.Auditor, metrics *engine.Metrics, logger *zap.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	delay := opts.TaskDelay
	if delay <= 0 {
		delay = DefaultTaskDelay
	}
	return &Dispatcher{
		tasks:    tasks,
		agents:   agents,
		executor: executor,
		pauses:   pauses,
		auditor:  auditor,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		metrics:  metrics,
		logger:   logger.Named("dispatcher"),
	}
}

// NormalizeLimit приводит limit к диапазону 1..MaxLimit, неположительный дает DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// ProcessQueue выполняет один батч. Ошибка возвращается только если батч не удалось собрать.
// Отмена ctx прекращает выдачу новых задач, уже начатая задача доводится до конца.
func (d *Dispatcher) ProcessQueue(ctx context.Context, limit int) (BatchResult, error) {
	start := time.Now()
	defer func() { d.metrics.DispatchBatchDuration.Observe(time.Since(start).Seconds()) }()

	limit = NormalizeLimit(limit)
	result := BatchResult{Results: []TaskResult{}}

	tasks, err := d.tasks.FetchQueuedTasks(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("dispatch: fetch queued tasks: %w", err)
	}
	tasks = d.dispatchable(tasks)
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	domain.SortForDispatch(tasks)

	agents, err := d.loadAgents(ctx, tasks)
	if err != nil {
		return result, err
	}

	for i, task := range tasks {
		if i > 0 {
			if err := d.limiter.Wait(ctx); err != nil {
				break
			}
		} else {
			d.limiter.Allow()
		}
		if ctx.Err() != nil {
			break
		}

		res := d.dispatchOne(ctx, task, agents)
		result.Results = append(result.Results, res)
		result.Processed++
		if res.Success {
			result.Success++
		} else {
			result.Failed++
		}
	}

	if ctx.Err() != nil && result.Processed < len(tasks) {
		d.logger.Warn("batch interrupted",
			zap.Int("processed", result.Processed),
			zap.Int("fetched", len(tasks)))
	}
	d.logger.Info("batch processed",
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// dispatchable отбрасывает строки, которые хранилище не должно было отдать.
func (d *Dispatcher) dispatchable(tasks []domain.Task) []domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if !t.Dispatchable() {
			d.logger.Warn("store returned a task that is not dispatchable, skipped",
				zap.String("task_id", t.ID), zap.String("status", string(t.Status)))
			continue
		}
		out = append(out, t)
	}
	return out
}

func (d *Dispatcher) loadAgents(ctx context.Context, tasks []domain.Task) (map[string]domain.Agent, error) {
	seen := make(map[string]struct{}, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.AssignedAgentID == nil {
			continue
		}
		if _, ok := seen[*t.AssignedAgentID]; ok {
			continue
		}
		seen[*t.AssignedAgentID] = struct{}{}
		ids = append(ids, *t.AssignedAgentID)
	}
	if len(ids) == 0 {
		return map[string]domain.Agent{}, nil
	}

	agents, err := d.agents.FetchAgentsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("dispatch: fetch agents: %w", err)
	}
	return agents, nil
}

func (d *Dispatcher) available(agents map[string]domain.Agent, agentID string) bool {
	agent, ok := agents[agentID]
	if !ok || !agent.IsAvailable() {
		return false
	}
	return d.pauses == nil || !d.pauses.IsBlocked(agentID)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, task domain.Task, agents map[string]domain.Agent) TaskResult {
	res := TaskResult{TaskID: task.ID}
	if task.AssignedAgentID != nil {
		res.AgentID = *task.AssignedAgentID
	}
	log := d.logger.With(zap.String("task_id", task.ID), zap.String("agent_id", res.AgentID))

	if res.AgentID == "" || !d.available(agents, res.AgentID) {
		res.Error = ErrAgentNotAvailable.Error()
		d.metrics.DispatchTasks.WithLabelValues("agent_unavailable").Inc()
		log.Info("task skipped, agent not available")
		return res
	}

	out, err := d.execute(ctx, task.ID, res.AgentID)
	code := ""
	switch {
	case errors.Is(err, errExecutorPanic):
		res.Error = err.Error()
		code = CodeExecutorPanic
	case err != nil:
		res.Error = err.Error()
		code = CodeExecutorError
	case !out.Success:
		res.Error = out.Error
		if res.Error == "" {
			res.Error = "execution failed"
		}
		code = CodeExecutionFailed
	default:
		res.Success = true
	}
	d.recordOutcome(task, res, code)

	if res.Success {
		d.metrics.DispatchTasks.WithLabelValues("success").Inc()
		log.Info("task executed")
	} else {
		d.metrics.DispatchTasks.WithLabelValues("failed").Inc()
		log.Warn("task execution failed", zap.String("error", res.Error))
	}
	return res
}

// execute изолирует исполнителя: отмена батча не рвет начатую задачу, паника превращается в ошибку.
func (d *Dispatcher) execute(ctx context.Context, taskID, agentID string) (out ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errExecutorPanic, r)
		}
	}()
	return d.executor.Execute(context.WithoutCancel(ctx), taskID, agentID)
}

// recordOutcome пишет итог исполнения в журнал. Сбой журнала не влияет на результат задачи.
func (d *Dispatcher) recordOutcome(task domain.Task, res TaskResult, code string) {
	if d.auditor == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit of task outcome panicked", zap.String("task_id", task.ID), zap.Any("panic", r))
		}
	}()

	success := res.Success
	event := audit.ExecutionEvent{
		EventType:      audit.EventTaskExecuted,
		OrganizationID: task.OrganizationID,
		AgentID:        res.AgentID,
		TaskID:         task.ID,
		Success:        &success,
	}
	if !success {
		event.EventType = audit.EventError
		event.ErrorCode = code
		event.ErrorMessage = res.Error
	}
	d.auditor.LogEvent(event)
}
