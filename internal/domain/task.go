package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// TaskStatus: состояния конечного автомата задачи.
type TaskStatus string

const (
	TaskDraft      TaskStatus = "draft"
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// ActiveTaskStatuses учитываются в жестком лимите организации.
var ActiveTaskStatuses = []TaskStatus{TaskQueued, TaskInProgress, TaskReview}

var (
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrNotFound          = errors.New("not found")
)

var transitions = map[TaskStatus][]TaskStatus{
	TaskDraft:      {TaskPending},
	TaskPending:    {TaskQueued},
	TaskQueued:     {TaskInProgress},
	TaskInProgress: {TaskReview, TaskFailed, TaskCancelled},
	TaskReview:     {TaskCompleted, TaskInProgress},
	// Явное переоткрытие / повтор
	TaskCompleted: {TaskPending},
	TaskFailed:    {TaskPending},
	TaskCancelled: {TaskPending},
}

// CanTransition проверяет правила конечного автомата.
func CanTransition(from, to TaskStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// IsTerminal: completed и cancelled не диспатчатся, failed можно вернуть в pending.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// Priority задачи. Порядок задается только через PriorityRank, не строковым сравнением.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityOrder: явная таблица рангов, меньше = раньше.
var PriorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// PriorityRank возвращает ранг приоритета. Неизвестные значения уходят в конец очереди.
func PriorityRank(p Priority) int {
	for i, known := range PriorityOrder {
		if strings.EqualFold(string(p), string(known)) {
			return i
		}
	}
	return len(PriorityOrder)
}

const AssigneeAgent = "agent"

type Task struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organization_id"`
	Title           string     `json:"title,omitempty"`
	Status          TaskStatus `json:"status"`
	AssignedAgentID *string    `json:"assigned_agent_id,omitempty"`
	AssignedType    string     `json:"assigned_type"` // "agent" или "user"
	Priority        Priority   `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Dispatchable: задача стоит в очереди и назначена агенту.
func (t Task) Dispatchable() bool {
	return t.Status == TaskQueued &&
		t.AssignedType == AssigneeAgent &&
		t.AssignedAgentID != nil && *t.AssignedAgentID != "" &&
		t.DeletedAt == nil
}

// SortForDispatch стабильно упорядочивает задачи: ранг приоритета, затем самые старые.
func SortForDispatch(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := PriorityRank(tasks[i].Priority), PriorityRank(tasks[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
