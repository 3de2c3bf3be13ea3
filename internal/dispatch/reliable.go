package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"go.uber.org/zap"
)

// BreakerSettings настройки предохранителя исполнителя.
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration // Время, через которое CB попробует "закрыться"
	ConsecutiveFailures uint32
	ThrottleAttempts    uint
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.Name == "" {
		s.Name = "task-executor"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval <= 0 {
		s.Interval = 5 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.ThrottleAttempts == 0 {
		s.ThrottleAttempts = 3
	}
	return s
}

// ReliableExecutor оборачивает исполнителя в Circuit Breaker.
// Повтор допускается только при ThrottleError: задача еще не начинала выполняться.
type ReliableExecutor struct {
	next     Executor
	cb       *gobreaker.CircuitBreaker
	attempts uint
}

func NewReliableExecutor(next Executor, s BreakerSettings, metrics *engine.Metrics, logger *zap.Logger) *ReliableExecutor {
	s = s.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("executor-cb")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))
	}

	return &ReliableExecutor{next: next, cb: cb, attempts: s.ThrottleAttempts}
}

func (r *ReliableExecutor) Execute(ctx context.Context, taskID, agentID string) (ExecutionResult, error) {
	out, err := r.cb.Execute(func() (interface{}, error) {
		var result ExecutionResult
		err := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.RetryIf(IsThrottle),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		).Do(func() error {
			var callErr error
			result, callErr = r.next.Execute(ctx, taskID, agentID)
			return callErr
		})
		return result, err
	})
	if err != nil {
		return ExecutionResult{}, err
	}
	return out.(ExecutionResult), nil
}

// State текущее состояние предохранителя.
func (r *ReliableExecutor) State() gobreaker.State {
	return r.cb.State()
}
