package audit

import "time"

type DecisionOutcome string

const (
	DecisionApproved DecisionOutcome = "approved"
	DecisionDenied   DecisionOutcome = "denied"
)

// DecidedByGuardrails проставляется для всех решений движка правил.
const DecidedByGuardrails = "guardrail_engine"

// Record: одна строка журнала решений. После записи неизменяема.
type Record struct {
	ID                 string                 `json:"id"`
	OrganizationID     string                 `json:"organization_id"`
	TaskID             string                 `json:"task_id,omitempty"`
	AgentID            string                 `json:"agent_id,omitempty"`
	Category           string                 `json:"category"`
	Action             string                 `json:"action"`
	Decision           DecisionOutcome        `json:"decision"`
	DecidedBy          string                 `json:"decided_by"`
	TrustLevelRequired int                    `json:"trust_level_required"`
	TrustLevelCurrent  int                    `json:"trust_level_current"`
	Rationale          string                 `json:"rationale"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	Timestamp          time.Time              `json:"timestamp"`
}

type EventType string

const (
	EventLLMCall       EventType = "llm_call"
	EventToolCall      EventType = "tool_call"
	EventPlanGenerated EventType = "plan_generated"
	EventPlanApproved  EventType = "plan_approved"
	EventError         EventType = "error"
	EventTaskExecuted  EventType = "task_executed"
)

// ExecutionEvent: учет стоимости и использования инструментов.
// CostCents всегда вычисляется на нашей стороне (см. EstimateCostCents).
type ExecutionEvent struct {
	ID             string                 `json:"id"`
	EventType      EventType              `json:"event_type"`
	OrganizationID string                 `json:"organization_id"`
	Provider       string                 `json:"provider,omitempty"`
	Model          string                 `json:"model,omitempty"`
	InputTokens    int                    `json:"input_tokens,omitempty"`
	OutputTokens   int                    `json:"output_tokens,omitempty"`
	CostCents      int64                  `json:"cost_cents"`
	ToolName       string                 `json:"tool_name,omitempty"`
	ToolInput      map[string]interface{} `json:"tool_input,omitempty"`
	ToolOutput     string                 `json:"tool_output,omitempty"` // Обрезается до MaxToolOutputBytes
	Success        *bool                  `json:"success,omitempty"`
	AgentID        string                 `json:"agent_id,omitempty"`
	TaskID         string                 `json:"task_id,omitempty"`
	StepIndex      *int                   `json:"step_index,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}
