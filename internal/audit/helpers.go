package audit

import "unicode/utf8"

// MaxToolOutputBytes ограничивает размер вывода инструмента в строке журнала.
const MaxToolOutputBytes = 10000

// TruncateUTF8 обрезает строку до limit байт, не разрывая многобайтовые символы.
func TruncateUTF8(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

type LLMCall struct {
	OrganizationID string
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	AgentID        string
	TaskID         string
	StepIndex      *int
}

// LogLLMCall пишет событие вызова модели с вычисленной стоимостью.
func (s *Sink) LogLLMCall(c LLMCall) {
	s.LogEvent(ExecutionEvent{
		EventType:      EventLLMCall,
		OrganizationID: c.OrganizationID,
		Provider:       c.Provider,
		Model:          c.Model,
		InputTokens:    c.InputTokens,
		OutputTokens:   c.OutputTokens,
		CostCents:      EstimateCostCents(c.Model, c.InputTokens, c.OutputTokens),
		AgentID:        c.AgentID,
		TaskID:         c.TaskID,
		StepIndex:      c.StepIndex,
	})
}

type ToolCall struct {
	OrganizationID string
	ToolName       string
	Input          map[string]interface{}
	Output         string
	Success        bool
	AgentID        string
	TaskID         string
	StepIndex      *int
}

// LogToolCall: вывод инструмента обрезается внутри LogEvent.
func (s *Sink) LogToolCall(c ToolCall) {
	success := c.Success
	s.LogEvent(ExecutionEvent{
		EventType:      EventToolCall,
		OrganizationID: c.OrganizationID,
		ToolName:       c.ToolName,
		ToolInput:      c.Input,
		ToolOutput:     c.Output,
		Success:        &success,
		AgentID:        c.AgentID,
		TaskID:         c.TaskID,
		StepIndex:      c.StepIndex,
	})
}

func (s *Sink) LogPlanGenerated(orgID, agentID, taskID string, steps int) {
	s.LogEvent(ExecutionEvent{
		EventType:      EventPlanGenerated,
		OrganizationID: orgID,
		AgentID:        agentID,
		TaskID:         taskID,
		Metadata:       map[string]interface{}{"steps": steps},
	})
}

func (s *Sink) LogPlanApproved(orgID, agentID, taskID, approvedBy string) {
	s.LogEvent(ExecutionEvent{
		EventType:      EventPlanApproved,
		OrganizationID: orgID,
		AgentID:        agentID,
		TaskID:         taskID,
		Metadata:       map[string]interface{}{"approved_by": approvedBy},
	})
}

func (s *Sink) LogError(orgID, agentID, taskID, code, message string) {
	failed := false
	s.LogEvent(ExecutionEvent{
		EventType:      EventError,
		OrganizationID: orgID,
		AgentID:        agentID,
		TaskID:         taskID,
		Success:        &failed,
		ErrorCode:      code,
		ErrorMessage:   message,
	})
}
