package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ExecutionResult исход выполнения задачи на стороне исполнителя.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Executor внешняя граница: LLM-вызовы и инструменты живут по ту сторону.
// Ошибка означает сбой транспорта, неуспех задачи возвращается в ExecutionResult.
type Executor interface {
	Execute(ctx context.Context, taskID, agentID string) (ExecutionResult, error)
}

// ExecutorFunc адаптер для функций.
type ExecutorFunc func(ctx context.Context, taskID, agentID string) (ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, taskID, agentID string) (ExecutionResult, error) {
	return f(ctx, taskID, agentID)
}

type executeRequest struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
}

// HTTPExecutor отправляет задачу воркеру исполнения по HTTP.
type HTTPExecutor struct {
	url    string
	client *http.Client
}

func NewHTTPExecutor(url string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPExecutor{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, taskID, agentID string) (ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{TaskID: taskID, AgentID: agentID})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch: executor call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch: read executor response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ExecutionResult{}, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("executor returned %d", resp.StatusCode),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return ExecutionResult{}, fmt.Errorf("dispatch: executor returned %d: %s", resp.StatusCode, truncate(raw))
	}

	var result ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ExecutionResult{}, fmt.Errorf("dispatch: decode executor response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && result.Error == "" {
		result.Success = false
		result.Error = fmt.Sprintf("executor returned %d", resp.StatusCode)
	}
	return result, nil
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return time.Second
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// IsThrottle проверяет, что исполнитель отказал до начала выполнения.
func IsThrottle(err error) bool {
	var tErr *ThrottleError
	return errors.As(err, &tErr)
}
