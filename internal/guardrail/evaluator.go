// Package guardrail решает, может ли агент выполнить действие при текущих
// настройках доверия организации, и проверяет организационные жесткие лимиты.
package guardrail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-governor/internal/audit"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/engine"
)

const rationaleUnguarded = "unguarded"

// Request: действие, которое агент хочет выполнить.
type Request struct {
	ActionID       string                 `json:"action_id"`
	Input          map[string]interface{} `json:"input,omitempty"`
	OrganizationID string                 `json:"organization_id"`
	TaskID         string                 `json:"task_id,omitempty"`
	AgentID        string                 `json:"agent_id,omitempty"`
}

// Decision не сохраняется напрямую, а проецируется в audit.Record.
type Decision struct {
	Allowed            bool                  `json:"allowed"`
	Decision           audit.DecisionOutcome `json:"decision"`
	Category           domain.Category       `json:"category,omitempty"`
	TrustLevelRequired domain.TrustLevel     `json:"trust_level_required"`
	TrustLevelCurrent  domain.TrustLevel     `json:"trust_level_current"`
	Rationale          string                `json:"rationale"`
}

type Blocked struct {
	Request  Request  `json:"request"`
	Decision Decision `json:"decision"`
}

type FilterResult struct {
	Allowed []Request `json:"allowed"`
	Blocked []Blocked `json:"blocked"`
}

type Evaluator struct {
	auditor audit.Auditor
	metrics *engine.Metrics
	logger  *zap.Logger
}

func NewEvaluator(auditor audit.Auditor, metrics *engine.Metrics, logger *zap.Logger) *Evaluator {
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		auditor: auditor,
		metrics: metrics,
		logger:  logger.Named("guardrails"),
	}
}

// Evaluate сравнивает уровень доверия организации с минимальным уровнем правила.
// Ровно одна запись аудита на вызов, независимо от исхода. Ошибки аудита
// не влияют на возвращаемое решение.
func (e *Evaluator) Evaluate(ctx context.Context, req Request, cfg domain.TrustConfig) Decision {
	rule, guarded := LookupRule(req.ActionID)

	var d Decision
	if !guarded {
		d = Decision{
			Allowed:   true,
			Decision:  audit.DecisionApproved,
			Rationale: rationaleUnguarded,
		}
	} else {
		current := cfg.Level(rule.Category)
		d = Decision{
			Allowed:            current >= rule.MinLevel,
			Category:           rule.Category,
			TrustLevelRequired: rule.MinLevel,
			TrustLevelCurrent:  current,
		}
		if d.Allowed {
			d.Decision = audit.DecisionApproved
			d.Rationale = fmt.Sprintf("%s trust level %d meets required level %d for %q",
				rule.Category, int(current), int(rule.MinLevel), rule.Label)
		} else {
			d.Decision = audit.DecisionDenied
			d.Rationale = fmt.Sprintf("%q blocked: %s trust level %d is below required level %d",
				rule.Label, rule.Category, int(current), int(rule.MinLevel))
		}
	}

	category := string(d.Category)
	if category == "" {
		category = rationaleUnguarded
	}
	e.metrics.GuardrailDecisions.WithLabelValues(category, string(d.Decision)).Inc()
	e.record(ctx, req, rule, d, category)

	return d
}

// FilterRequests оценивает каждое действие независимо и делит их по исходу.
// Первый отказ не останавливает оценку остальных.
func (e *Evaluator) FilterRequests(ctx context.Context, reqs []Request, cfg domain.TrustConfig) FilterResult {
	res := FilterResult{
		Allowed: make([]Request, 0, len(reqs)),
		Blocked: make([]Blocked, 0),
	}
	for _, req := range reqs {
		d := e.Evaluate(ctx, req, cfg)
		if d.Allowed {
			res.Allowed = append(res.Allowed, req)
		} else {
			res.Blocked = append(res.Blocked, Blocked{Request: req, Decision: d})
		}
	}
	return res
}

func (e *Evaluator) record(ctx context.Context, req Request, rule Rule, d Decision, category string) {
	if e.auditor == nil {
		return
	}
	// Журнал не в критическом пути: паника в приемнике не должна дойти до агента
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("audit record dropped", zap.Any("panic", r), zap.String("action", req.ActionID))
		}
	}()

	metadata := map[string]interface{}{
		"trace_id": engine.TraceID(ctx),
	}
	if rule.Label != "" {
		metadata["label"] = rule.Label
	}
	if len(req.Input) > 0 {
		metadata["input"] = req.Input
	}

	e.auditor.Log(audit.Record{
		OrganizationID:     req.OrganizationID,
		TaskID:             req.TaskID,
		AgentID:            req.AgentID,
		Category:           category,
		Action:             req.ActionID,
		Decision:           d.Decision,
		DecidedBy:          audit.DecidedByGuardrails,
		TrustLevelRequired: int(d.TrustLevelRequired),
		TrustLevelCurrent:  int(d.TrustLevelCurrent),
		Rationale:          d.Rationale,
		Metadata:           metadata,
	})
}
