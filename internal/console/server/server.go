package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/spaceai-governor/internal/console/handler"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"go.uber.org/zap"
)

// Handlers обработчики бизнес-доменов.
type Handlers struct {
	Guardrails *handler.GuardrailHandler // /v1/guardrails, /v1/organizations/{org}/limits
	Trust      *handler.TrustHandler     // /v1/organizations/{org}/trust
	Dispatch   *handler.DispatchHandler  // /v1/dispatch, /v1/tasks
	Agents     *handler.AgentHandler     // /v1/agents (Kill-switch)
	Schedule   *handler.ScheduleHandler  // /v1/schedule, /v1/milestones
	Audit      *handler.AuditHandler     // /v1/audit/events
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	h      Handlers
}

// NewConsoleServer инициализирует API со всеми зависимостями
func NewConsoleServer(logger *zap.Logger, h Handlers) *ConsoleServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConsoleServer{
		router: chi.NewRouter(),
		logger: logger.Named("console-api"),
		h:      h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// Healthcheck для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		// Guardrails (синхронная проверка действий агента)
		r.Post("/guardrails/evaluate", s.h.Guardrails.Evaluate)
		r.Post("/guardrails/filter", s.h.Guardrails.Filter)

		// Настройки организации
		r.Route("/organizations/{org}", func(r chi.Router) {
			r.Get("/limits", s.h.Guardrails.Limits)
			r.Get("/trust", s.h.Trust.Get)
			r.Put("/trust", s.h.Trust.Put)
		})

		// Очередь задач
		r.Post("/dispatch/run", s.h.Dispatch.Run)
		r.Post("/tasks/{id}/transition", s.h.Dispatch.Transition)

		// Управление Агентами (Kill-Switch)
		r.Route("/agents/{id}", func(r chi.Router) {
			r.Post("/pause", s.h.Agents.Pause)
			r.Post("/resume", s.h.Agents.Resume)
		})

		// Расписания
		r.Post("/schedule/next-run", s.h.Schedule.NextRun)
		r.Put("/milestones/{id}/recurrence", s.h.Schedule.UpdateRecurrence)

		// События исполнения от агентов (LLM и инструменты)
		r.Post("/audit/events", s.h.Audit.Ingest)
	})
}

// requestLogger пишет access-лог через zap вместо стандартного middleware.Logger.
func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("trace_id", engine.TraceID(r.Context())),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
