package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrAgentNotAvailable попадает в результат задачи, если агент выключен, на паузе или сбоит.
var ErrAgentNotAvailable = errors.New("agent not available")

// ThrottleError исполнитель отказал до начала работы и просит повторить позже.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
