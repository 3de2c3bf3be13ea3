package domain

import "time"

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFailing  HealthStatus = "failing"
)

type Agent struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name,omitempty"`
	IsActive               bool         `json:"is_active"`
	PausedAt               *time.Time   `json:"paused_at,omitempty"`
	ConsecutiveFailures    int          `json:"consecutive_failures"`
	MaxConsecutiveFailures int          `json:"max_consecutive_failures"`
	HealthStatus           HealthStatus `json:"health_status"`
}

// IsAvailable сообщает, может ли агент брать задачи: активен, не на паузе,
// предохранитель не сработал и здоровье не "failing".
func (a Agent) IsAvailable() bool {
	return a.IsActive &&
		a.PausedAt == nil &&
		a.ConsecutiveFailures < a.MaxConsecutiveFailures &&
		a.HealthStatus != HealthFailing
}
