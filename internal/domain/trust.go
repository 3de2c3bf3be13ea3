package domain

import (
	"errors"
	"fmt"
)

// TrustLevel определяет, насколько автономно агент может действовать в категории.
type TrustLevel int

const (
	TrustSupervised TrustLevel = 0 // Каждое действие требует человека
	TrustGuided     TrustLevel = 1
	TrustTrusted    TrustLevel = 2
	TrustAutonomous TrustLevel = 3
)

func (l TrustLevel) String() string {
	switch l {
	case TrustSupervised:
		return "supervised"
	case TrustGuided:
		return "guided"
	case TrustTrusted:
		return "trusted"
	case TrustAutonomous:
		return "autonomous"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid проверяет, что уровень входит в диапазон 0..3.
func (l TrustLevel) Valid() bool {
	return l >= TrustSupervised && l <= TrustAutonomous
}

// Category: корзина риска со своим порогом доверия.
type Category string

const (
	CategoryTaskExecution     Category = "task_execution"
	CategoryDecomposition     Category = "decomposition"
	CategorySkillCreation     Category = "skill_creation"
	CategoryToolUsage         Category = "tool_usage"
	CategoryContentPublishing Category = "content_publishing"
	CategoryExternalActions   Category = "external_actions"
	CategorySpending          Category = "spending"
	CategoryAgentCreation     Category = "agent_creation"
)

// Categories: полный набор категорий в стабильном порядке.
var Categories = []Category{
	CategoryTaskExecution,
	CategoryDecomposition,
	CategorySkillCreation,
	CategoryToolUsage,
	CategoryContentPublishing,
	CategoryExternalActions,
	CategorySpending,
	CategoryAgentCreation,
}

var ErrInvalidTrustConfig = errors.New("invalid trust configuration")

// TrustConfig: настройки доверия организации. Меняется только администраторами,
// для Evaluator доступна только на чтение.
type TrustConfig struct {
	OrganizationID string `json:"organization_id"`

	TaskExecution     TrustLevel `json:"task_execution"`
	Decomposition     TrustLevel `json:"decomposition"`
	SkillCreation     TrustLevel `json:"skill_creation"`
	ToolUsage         TrustLevel `json:"tool_usage"`
	ContentPublishing TrustLevel `json:"content_publishing"`
	ExternalActions   TrustLevel `json:"external_actions"`
	Spending          TrustLevel `json:"spending"`
	AgentCreation     TrustLevel `json:"agent_creation"`

	// Жесткий потолок активных задач (queued + in_progress + review). 0 значит без лимита.
	MaxTotalActiveTasks int `json:"max_total_active_tasks"`
}

// DefaultTrustConfig возвращает консервативные настройки для организации без записи в БД.
func DefaultTrustConfig(orgID string) TrustConfig {
	return TrustConfig{
		OrganizationID:      orgID,
		TaskExecution:       TrustGuided,
		Decomposition:       TrustGuided,
		SkillCreation:       TrustGuided,
		ToolUsage:           TrustGuided,
		ContentPublishing:   TrustGuided,
		ExternalActions:     TrustSupervised,
		Spending:            TrustSupervised,
		AgentCreation:       TrustSupervised,
		MaxTotalActiveTasks: 50,
	}
}

// Level возвращает уровень доверия для категории.
// Неизвестная категория трактуется как supervised (Zero Trust).
func (c TrustConfig) Level(cat Category) TrustLevel {
	switch cat {
	case CategoryTaskExecution:
		return c.TaskExecution
	case CategoryDecomposition:
		return c.Decomposition
	case CategorySkillCreation:
		return c.SkillCreation
	case CategoryToolUsage:
		return c.ToolUsage
	case CategoryContentPublishing:
		return c.ContentPublishing
	case CategoryExternalActions:
		return c.ExternalActions
	case CategorySpending:
		return c.Spending
	case CategoryAgentCreation:
		return c.AgentCreation
	default:
		return TrustSupervised
	}
}

// Validate проверяет инварианты перед сохранением.
func (c TrustConfig) Validate() error {
	for _, cat := range Categories {
		if lvl := c.Level(cat); !lvl.Valid() {
			return fmt.Errorf("%w: %s level %d out of range 0..3", ErrInvalidTrustConfig, cat, int(lvl))
		}
	}
	if c.MaxTotalActiveTasks < 0 {
		return fmt.Errorf("%w: max_total_active_tasks must not be negative", ErrInvalidTrustConfig)
	}
	return nil
}
