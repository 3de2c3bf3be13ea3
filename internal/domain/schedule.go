package domain

import "time"

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceOnce    RecurrenceType = "once"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// RecurrenceSpec даты в формате YYYY-MM-DD. DayOfWeek: 0 = воскресенье.
type RecurrenceSpec struct {
	Type       RecurrenceType `json:"type"`
	Hour       int            `json:"hour"`
	DayOfWeek  *int           `json:"day_of_week,omitempty"`
	DayOfMonth *int           `json:"day_of_month,omitempty"`
	RunDate    string         `json:"run_date,omitempty"`
	EndDate    string         `json:"end_date,omitempty"`
}

// Milestone повторяющаяся точка плана. При срабатывании ставит связанную задачу в очередь.
type Milestone struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Title          string         `json:"title"`
	Recurrence     RecurrenceSpec `json:"recurrence"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	TaskID         string         `json:"task_id,omitempty"`
}
