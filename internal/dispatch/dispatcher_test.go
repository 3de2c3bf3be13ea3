package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-governor/internal/audit"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"go.uber.org/zap/zaptest"
)

type fakeTasks struct {
	tasks     []domain.Task
	err       error
	lastLimit int
}

func (f *fakeTasks) FetchQueuedTasks(_ context.Context, limit int) ([]domain.Task, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

type fakeAgents struct {
	agents map[string]domain.Agent
	calls  [][]string
	err    error
}

func (f *fakeAgents) FetchAgentsByIDs(_ context.Context, ids []string) (map[string]domain.Agent, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.Agent)
	for _, id := range ids {
		if a, ok := f.agents[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

type recordingExecutor struct {
	mu    sync.Mutex
	order []string
	fn    func(taskID string) (ExecutionResult, error)
}

func (r *recordingExecutor) Execute(ctx context.Context, taskID, _ string) (ExecutionResult, error) {
	r.mu.Lock()
	r.order = append(r.order, taskID)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(taskID)
	}
	return ExecutionResult{Success: true}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []audit.ExecutionEvent
}

func (r *eventRecorder) Log(audit.Record) {}

func (r *eventRecorder) LogEvent(e audit.ExecutionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type pauseSet map[string]bool

func (p pauseSet) IsBlocked(id string) bool { return p[id] }

func healthyAgent(id string) domain.Agent {
	return domain.Agent{ID: id, IsActive: true, MaxConsecutiveFailures: 3, HealthStatus: domain.HealthHealthy}
}

func queuedTask(id, agentID string, p domain.Priority, created time.Time) domain.Task {
	return domain.Task{
		ID:              id,
		OrganizationID:  "org-1",
		Status:          domain.TaskQueued,
		AssignedAgentID: &agentID,
		AssignedType:    domain.AssigneeAgent,
		Priority:        p,
		CreatedAt:       created,
	}
}

func newTestDispatcher(t *testing.T, tasks TaskStore, agents AgentStore, exec Executor, pauses PauseChecker, m *engine.Metrics) *Dispatcher {
	t.Helper()
	return NewDispatcher(tasks, agents, exec, pauses, nil, m, zaptest.NewLogger(t), Options{TaskDelay: time.Millisecond})
}

func TestProcessQueue_PriorityOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("low", "a1", domain.PriorityLow, base),
		queuedTask("critical-1", "a1", domain.PriorityCritical, base.Add(time.Minute)),
		queuedTask("medium", "a1", domain.PriorityMedium, base.Add(2*time.Minute)),
		queuedTask("critical-2", "a1", domain.PriorityCritical, base.Add(3*time.Minute)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}
	exec := &recordingExecutor{}

	d := newTestDispatcher(t, store, agents, exec, nil, nil)
	res, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"critical-1", "critical-2", "medium", "low"}, exec.order)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 4, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestProcessQueue_UnavailableAgentDoesNotStopBatch(t *testing.T) {
	base := time.Now()
	paused := time.Now()
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("t1", "paused", domain.PriorityHigh, base),
		queuedTask("t2", "ok", domain.PriorityHigh, base.Add(time.Second)),
		queuedTask("t3", "missing", domain.PriorityHigh, base.Add(2*time.Second)),
		queuedTask("t4", "ok", domain.PriorityHigh, base.Add(3*time.Second)),
	}}
	pausedAgent := healthyAgent("paused")
	pausedAgent.PausedAt = &paused
	agents := &fakeAgents{agents: map[string]domain.Agent{
		"paused": pausedAgent,
		"ok":     healthyAgent("ok"),
	}}
	exec := &recordingExecutor{}

	d := newTestDispatcher(t, store, agents, exec, nil, nil)
	res, err := d.ProcessQueue(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"t2", "t4"}, exec.order)
	require.Len(t, res.Results, 4)
	assert.Equal(t, TaskResult{TaskID: "t1", AgentID: "paused", Error: "agent not available"}, res.Results[0])
	assert.True(t, res.Results[1].Success)
	assert.Equal(t, "agent not available", res.Results[2].Error)
	assert.True(t, res.Results[3].Success)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Failed)

	// один батчевый запрос на уникальные id
	require.Len(t, agents.calls, 1)
	assert.ElementsMatch(t, []string{"paused", "ok", "missing"}, agents.calls[0])
}

func TestProcessQueue_KillSwitchBlocksAgent(t *testing.T) {
	store := &fakeTasks{tasks: []domain.Task{queuedTask("t1", "a1", domain.PriorityHigh, time.Now())}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}
	exec := &recordingExecutor{}

	d := newTestDispatcher(t, store, agents, exec, pauseSet{"a1": true}, nil)
	res, err := d.ProcessQueue(context.Background(), 5)
	require.NoError(t, err)

	assert.Empty(t, exec.order)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, ErrAgentNotAvailable.Error(), res.Results[0].Error)
}

func TestProcessQueue_ExecutionFailuresAreIsolated(t *testing.T) {
	base := time.Now()
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("boom", "a1", domain.PriorityHigh, base),
		queuedTask("refused", "a1", domain.PriorityHigh, base.Add(time.Second)),
		queuedTask("panics", "a1", domain.PriorityHigh, base.Add(2*time.Second)),
		queuedTask("fine", "a1", domain.PriorityHigh, base.Add(3*time.Second)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}
	exec := &recordingExecutor{fn: func(id string) (ExecutionResult, error) {
		switch id {
		case "boom":
			return ExecutionResult{}, errors.New("connection reset")
		case "refused":
			return ExecutionResult{Success: false, Error: "tool failed"}, nil
		case "panics":
			panic("nil map")
		}
		return ExecutionResult{Success: true}, nil
	}}
	reg := prometheus.NewRegistry()
	m := engine.NewMetrics(reg)

	d := newTestDispatcher(t, store, agents, exec, nil, m)
	res, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, "connection reset", res.Results[0].Error)
	assert.Equal(t, "tool failed", res.Results[1].Error)
	assert.Contains(t, res.Results[2].Error, "executor panic")
	assert.True(t, res.Results[3].Success)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.DispatchTasks.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchTasks.WithLabelValues("success")))
}

func TestProcessQueue_LimitIsNormalized(t *testing.T) {
	for _, tc := range []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{7, 7},
		{50, 50},
		{500, MaxLimit},
	} {
		store := &fakeTasks{}
		d := newTestDispatcher(t, store, &fakeAgents{}, &recordingExecutor{}, nil, nil)
		res, err := d.ProcessQueue(context.Background(), tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, store.lastLimit, "limit %d", tc.in)
		assert.NotNil(t, res.Results)
	}
}

func TestProcessQueue_FetchError(t *testing.T) {
	d := newTestDispatcher(t, &fakeTasks{err: errors.New("db down")}, &fakeAgents{}, &recordingExecutor{}, nil, nil)
	_, err := d.ProcessQueue(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestProcessQueue_StopsBetweenTasksOnCancel(t *testing.T) {
	base := time.Now()
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("t1", "a1", domain.PriorityHigh, base),
		queuedTask("t2", "a1", domain.PriorityHigh, base.Add(time.Second)),
		queuedTask("t3", "a1", domain.PriorityHigh, base.Add(2*time.Second)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}

	ctx, cancel := context.WithCancel(context.Background())
	var seenCtxErr error
	exec := ExecutorFunc(func(execCtx context.Context, taskID, _ string) (ExecutionResult, error) {
		cancel()
		seenCtxErr = execCtx.Err()
		return ExecutionResult{Success: true}, nil
	})

	d := newTestDispatcher(t, store, agents, exec, nil, nil)
	res, err := d.ProcessQueue(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.True(t, res.Results[0].Success)
	assert.NoError(t, seenCtxErr, "running task must not observe batch cancellation")
}

func TestProcessQueue_SpacesInvocations(t *testing.T) {
	base := time.Now()
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("t1", "a1", domain.PriorityHigh, base),
		queuedTask("t2", "a1", domain.PriorityHigh, base.Add(time.Second)),
		queuedTask("t3", "a1", domain.PriorityHigh, base.Add(2*time.Second)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}

	d := NewDispatcher(store, agents, &recordingExecutor{}, nil, nil, nil, zaptest.NewLogger(t), Options{TaskDelay: 20 * time.Millisecond})
	start := time.Now()
	_, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestProcessQueue_RecordsExecutionOutcomes(t *testing.T) {
	base := time.Now()
	store := &fakeTasks{tasks: []domain.Task{
		queuedTask("boom", "a1", domain.PriorityHigh, base),
		queuedTask("refused", "a1", domain.PriorityHigh, base.Add(time.Second)),
		queuedTask("panics", "a1", domain.PriorityHigh, base.Add(2*time.Second)),
		queuedTask("fine", "a1", domain.PriorityHigh, base.Add(3*time.Second)),
		queuedTask("idle", "paused", domain.PriorityLow, base.Add(4*time.Second)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1"), "paused": healthyAgent("paused")}}
	exec := &recordingExecutor{fn: func(id string) (ExecutionResult, error) {
		switch id {
		case "boom":
			return ExecutionResult{}, errors.New("connection reset")
		case "refused":
			return ExecutionResult{Success: false, Error: "tool failed"}, nil
		case "panics":
			panic("nil map")
		}
		return ExecutionResult{Success: true}, nil
	}}
	rec := &eventRecorder{}

	d := NewDispatcher(store, agents, exec, pauseSet{"paused": true}, rec, nil, zaptest.NewLogger(t), Options{TaskDelay: time.Millisecond})
	res, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Processed)

	// пропуск из-за агента не исполнение: события нет
	require.Len(t, rec.events, 4)
	codes := map[string]string{}
	for _, e := range rec.events {
		assert.Equal(t, "org-1", e.OrganizationID)
		assert.Equal(t, "a1", e.AgentID)
		require.NotNil(t, e.Success)
		codes[e.TaskID] = e.ErrorCode
	}
	assert.Equal(t, map[string]string{
		"boom":    CodeExecutorError,
		"refused": CodeExecutionFailed,
		"panics":  CodeExecutorPanic,
		"fine":    "",
	}, codes)

	assert.Equal(t, audit.EventError, rec.events[0].EventType)
	assert.Equal(t, "connection reset", rec.events[0].ErrorMessage)
	assert.False(t, *rec.events[0].Success)
	assert.Equal(t, audit.EventTaskExecuted, rec.events[3].EventType)
	assert.True(t, *rec.events[3].Success)
}

type panickingRecorder struct{}

func (panickingRecorder) Log(audit.Record)              {}
func (panickingRecorder) LogEvent(audit.ExecutionEvent) { panic("storage exploded") }

func TestProcessQueue_AuditPanicDoesNotChangeResult(t *testing.T) {
	store := &fakeTasks{tasks: []domain.Task{queuedTask("t1", "a1", domain.PriorityHigh, time.Now())}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}

	d := NewDispatcher(store, agents, &recordingExecutor{}, nil, panickingRecorder{}, nil, zaptest.NewLogger(t), Options{TaskDelay: time.Millisecond})
	res, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
}

func TestProcessQueue_SkipsRowsThatAreNotDispatchable(t *testing.T) {
	base := time.Now()
	pending := queuedTask("pending", "a1", domain.PriorityCritical, base)
	pending.Status = domain.TaskPending
	human := queuedTask("human", "a1", domain.PriorityCritical, base)
	human.AssignedType = "user"
	deleted := queuedTask("deleted", "a1", domain.PriorityCritical, base)
	deleted.DeletedAt = &base

	store := &fakeTasks{tasks: []domain.Task{
		pending, human, deleted,
		queuedTask("ok", "a1", domain.PriorityLow, base.Add(time.Second)),
	}}
	agents := &fakeAgents{agents: map[string]domain.Agent{"a1": healthyAgent("a1")}}
	exec := &recordingExecutor{}

	d := newTestDispatcher(t, store, agents, exec, nil, nil)
	res, err := d.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, exec.order)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "ok", res.Results[0].TaskID)
}
