package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]TaskStatus{
		{TaskDraft, TaskPending},
		{TaskPending, TaskQueued},
		{TaskQueued, TaskInProgress},
		{TaskInProgress, TaskReview},
		{TaskInProgress, TaskFailed},
		{TaskInProgress, TaskCancelled},
		{TaskReview, TaskCompleted},
		{TaskReview, TaskInProgress},
		{TaskCompleted, TaskPending},
		{TaskFailed, TaskPending},
		{TaskCancelled, TaskPending},
	}
	for _, tr := range allowed {
		assert.NoError(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]TaskStatus{
		{TaskDraft, TaskQueued},
		{TaskQueued, TaskCompleted},
		{TaskReview, TaskFailed},
		{TaskCompleted, TaskInProgress},
		{TaskFailed, TaskQueued},
		{"unknown", TaskPending},
	}
	for _, tr := range denied {
		assert.ErrorIs(t, CanTransition(tr[0], tr[1]), ErrInvalidTransition, "%s -> %s", tr[0], tr[1])
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, TaskCompleted.IsTerminal())
	assert.True(t, TaskCancelled.IsTerminal())
	assert.False(t, TaskFailed.IsTerminal())
	assert.False(t, TaskQueued.IsTerminal())
}

func TestPriorityRank_ExplicitTable(t *testing.T) {
	assert.Equal(t, 0, PriorityRank(PriorityCritical))
	assert.Equal(t, 1, PriorityRank(PriorityHigh))
	assert.Equal(t, 2, PriorityRank(PriorityMedium))
	assert.Equal(t, 3, PriorityRank(PriorityLow))
	assert.Equal(t, 0, PriorityRank("CRITICAL"))
	assert.Equal(t, 4, PriorityRank("urgent"))
	assert.Equal(t, 4, PriorityRank(""))
}

func TestSortForDispatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "t1", Priority: PriorityLow, CreatedAt: base},
		{ID: "t2", Priority: PriorityCritical, CreatedAt: base.Add(time.Minute)},
		{ID: "t3", Priority: PriorityMedium, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "t4", Priority: PriorityCritical, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "t5", Priority: "someday", CreatedAt: base.Add(-time.Hour)},
	}

	SortForDispatch(tasks)

	ids := make([]string, 0, len(tasks))
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"t2", "t4", "t3", "t1", "t5"}, ids)
}

func TestTaskDispatchable(t *testing.T) {
	agent := "agent-1"
	empty := ""
	now := time.Now()

	ok := Task{Status: TaskQueued, AssignedType: AssigneeAgent, AssignedAgentID: &agent}
	require.True(t, ok.Dispatchable())

	cases := map[string]Task{
		"not queued":  {Status: TaskPending, AssignedType: AssigneeAgent, AssignedAgentID: &agent},
		"user task":   {Status: TaskQueued, AssignedType: "user", AssignedAgentID: &agent},
		"no agent":    {Status: TaskQueued, AssignedType: AssigneeAgent},
		"empty agent": {Status: TaskQueued, AssignedType: AssigneeAgent, AssignedAgentID: &empty},
		"deleted":     {Status: TaskQueued, AssignedType: AssigneeAgent, AssignedAgentID: &agent, DeletedAt: &now},
	}
	for name, tk := range cases {
		assert.False(t, tk.Dispatchable(), name)
	}
}
