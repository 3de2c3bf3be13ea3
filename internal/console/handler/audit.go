package handler

import (
	"net/http"

	"github.com/xela07ax/spaceai-governor/internal/audit"
)

// EventRecorder журнал событий исполнения. Стоимость LLM-вызова считается внутри.
type EventRecorder interface {
	LogLLMCall(c audit.LLMCall)
	LogToolCall(c audit.ToolCall)
}

type AuditHandler struct {
	recorder EventRecorder
}

func NewAuditHandler(recorder EventRecorder) *AuditHandler {
	return &AuditHandler{recorder: recorder}
}

// executionEventRequest: cost_cents от клиента не принимается.
type executionEventRequest struct {
	EventType      audit.EventType        `json:"event_type"`
	OrganizationID string                 `json:"organization_id"`
	AgentID        string                 `json:"agent_id"`
	TaskID         string                 `json:"task_id"`
	StepIndex      *int                   `json:"step_index"`
	Provider       string                 `json:"provider"`
	Model          string                 `json:"model"`
	InputTokens    int                    `json:"input_tokens"`
	OutputTokens   int                    `json:"output_tokens"`
	ToolName       string                 `json:"tool_name"`
	ToolInput      map[string]interface{} `json:"tool_input"`
	ToolOutput     string                 `json:"tool_output"`
	Success        *bool                  `json:"success"`
}

type executionEventResponse struct {
	EventType audit.EventType `json:"event_type"`
	CostCents int64           `json:"cost_cents"`
}

// Ingest POST /v1/audit/events
func (h *AuditHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "audit sink is not configured")
		return
	}
	var req executionEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	resp := executionEventResponse{EventType: req.EventType}
	switch req.EventType {
	case audit.EventLLMCall:
		if req.Model == "" || req.InputTokens < 0 || req.OutputTokens < 0 {
			writeError(w, http.StatusBadRequest, "llm_call requires model and non-negative token counts")
			return
		}
		h.recorder.LogLLMCall(audit.LLMCall{
			OrganizationID: req.OrganizationID,
			Provider:       req.Provider,
			Model:          req.Model,
			InputTokens:    req.InputTokens,
			OutputTokens:   req.OutputTokens,
			AgentID:        req.AgentID,
			TaskID:         req.TaskID,
			StepIndex:      req.StepIndex,
		})
		resp.CostCents = audit.EstimateCostCents(req.Model, req.InputTokens, req.OutputTokens)

	case audit.EventToolCall:
		if req.ToolName == "" || req.Success == nil {
			writeError(w, http.StatusBadRequest, "tool_call requires tool_name and success")
			return
		}
		h.recorder.LogToolCall(audit.ToolCall{
			OrganizationID: req.OrganizationID,
			ToolName:       req.ToolName,
			Input:          req.ToolInput,
			Output:         req.ToolOutput,
			Success:        *req.Success,
			AgentID:        req.AgentID,
			TaskID:         req.TaskID,
			StepIndex:      req.StepIndex,
		})

	default:
		writeError(w, http.StatusBadRequest, "event_type must be llm_call or tool_call")
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}
