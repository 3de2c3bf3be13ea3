package audit

/*
Файл sink.go реализует best-effort журнал решений и событий исполнения.

- Non-blocking Logging: Log/LogEvent никогда не блокируют вызывающего. При переполнении
  буфера запись сбрасывается (Load Shedding) с ошибкой в локальный лог и метрикой.
- Batching: события копятся в памяти и уходят в хранилище пачками по таймеру или
  при достижении размера батча.
- Error Channel: ошибки записи не теряются молча, их вычитывает фоновая горутина
  и пишет в лог уровнем Warn.
- Drain Pattern: Stop закрывает вход, ждет финальный flush и закрывает канал ошибок.
- Degraded Mode: если хранилище не сконфигурировано, Sink работает как no-op.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-governor/internal/engine"
)

// Storage определяет, куда физически будут сохраняться записи (append-only).
type Storage interface {
	WriteRecords(ctx context.Context, records []Record) error
	WriteEvents(ctx context.Context, events []ExecutionEvent) error
}

// Auditor: минимальный контракт для компонентов, которые пишут в журнал.
type Auditor interface {
	Log(record Record)
	LogEvent(event ExecutionEvent)
}

type Options struct {
	BufferSize         int
	BatchSize          int
	FlushInterval      time.Duration
	WriteTimeout       time.Duration
	MaxToolOutputBytes int
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.MaxToolOutputBytes <= 0 {
		o.MaxToolOutputBytes = MaxToolOutputBytes
	}
	return o
}

type entry struct {
	record *Record
	event  *ExecutionEvent
}

type writeError struct {
	kind  string
	count int
	err   error
}

type Sink struct {
	ch      chan entry
	errs    chan writeError
	repo    Storage
	logger  *zap.Logger
	metrics *engine.Metrics
	opts    Options

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
	drainWg sync.WaitGroup
}

func NewSink(repo Storage, logger *zap.Logger, metrics *engine.Metrics, opts Options) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	opts = opts.withDefaults()
	return &Sink{
		ch:      make(chan entry, opts.BufferSize),
		errs:    make(chan writeError, 64),
		repo:    repo,
		logger:  logger.With(zap.String("mod", "audit")),
		metrics: metrics,
		opts:    opts,
	}
}

// Enabled: false означает degraded mode (хранилище не сконфигурировано).
func (s *Sink) Enabled() bool {
	return s.repo != nil
}

func (s *Sink) Start() {
	if !s.Enabled() {
		s.logger.Warn("audit storage not configured, sink runs as no-op")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	s.drainWg.Add(1)
	go s.drainErrors()

	s.wg.Add(1)
	go s.worker()
}

// Stop запирает вход и ждет, пока воркер всё допишет.
func (s *Sink) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	close(s.ch) // Новые события больше не принимаются
	s.mu.Unlock()

	if !started {
		return
	}
	s.logger.Info("stopping auditor: flushing buffer...")
	s.wg.Wait()
	close(s.errs)
	s.drainWg.Wait()
	s.logger.Info("auditor stopped gracefully")
}

func (s *Sink) Log(record Record) {
	if !s.Enabled() {
		return
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	s.enqueue(entry{record: &record}, record.ID)
}

func (s *Sink) LogEvent(event ExecutionEvent) {
	if !s.Enabled() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.ToolOutput = TruncateUTF8(event.ToolOutput, s.opts.MaxToolOutputBytes)
	s.enqueue(entry{event: &event}, event.ID)
}

func (s *Sink) enqueue(e entry, id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.AuditDropped.WithLabelValues("stopped").Inc()
		s.logger.Warn("audit entry dropped: auditor is stopping", zap.String("id", id))
		return
	}

	// Load Shedding: при Backpressure не ждем, а сбрасываем
	select {
	case s.ch <- e:
		s.metrics.AuditBufferFill.Set(float64(len(s.ch)))
	default:
		s.metrics.AuditDropped.WithLabelValues("buffer_full").Inc()
		s.logger.Error("audit_buffer_overflow", zap.String("id", id))
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()

	records := make([]Record, 0, s.opts.BatchSize)
	events := make([]ExecutionEvent, 0, s.opts.BatchSize)
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(records) > 0 {
			s.write("record", len(records), func(ctx context.Context) error {
				return s.repo.WriteRecords(ctx, records)
			})
			records = records[:0]
		}
		if len(events) > 0 {
			s.write("event", len(events), func(ctx context.Context) error {
				return s.repo.WriteEvents(ctx, events)
			})
			events = events[:0]
		}
		s.metrics.AuditBufferFill.Set(float64(len(s.ch)))
	}

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				flush() // Финальный сброс
				return
			}
			if e.record != nil {
				records = append(records, *e.record)
			}
			if e.event != nil {
				events = append(events, *e.event)
			}
			if len(records)+len(events) >= s.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Sink) write(kind string, count int, fn func(ctx context.Context) error) {
	// Используем Background, так как контекст вызывающего давно мог завершиться
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.metrics.AuditWriteFailures.WithLabelValues(kind).Inc()
		select {
		case s.errs <- writeError{kind: kind, count: count, err: err}:
		default:
			s.metrics.AuditDropped.WithLabelValues("error_channel_full").Inc()
		}
	}
}

func (s *Sink) drainErrors() {
	defer s.drainWg.Done()
	for we := range s.errs {
		s.logger.Warn("audit write failed, batch dropped",
			zap.String("kind", we.kind),
			zap.Int("count", we.count),
			zap.Error(we.err),
		)
	}
}
