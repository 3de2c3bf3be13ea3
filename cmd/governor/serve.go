package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/spaceai-governor/internal/console/server"
	"github.com/xela07ax/spaceai-governor/internal/engine"
	"github.com/xela07ax/spaceai-governor/internal/infra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console API, the dispatch and milestone schedulers, metrics and gRPC health",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Контекст жизненного цикла: SIGINT/SIGTERM останавливают слушателей и серверы
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.start(ctx); err != nil {
		return err
	}

	sched, err := newJobs(a)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Экспортируем метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	apiSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewConsoleServer(logger, a.handlers()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 3)
	go func() {
		logger.Info("metrics server started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- fmt.Errorf("failed to listen gRPC: %w", err)
			return
		}
		logger.Info("gRPC health server started", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("failed to serve gRPC: %w", err)
		}
	}()
	go func() {
		logger.Info("governor started", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("console api: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("governor stopping...")
	case err = <-errCh:
		logger.Error("server failed, shutting down", zap.Error(err))
	}

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if serr := apiSrv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("console api shutdown failed", zap.Error(serr))
	}
	if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("metrics server shutdown failed", zap.Error(serr))
	}
	grpcSrv.GracefulStop()
	logger.Info("governor exited properly")
	return err
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

// newJobs регистрирует периодические задачи: пачку диспетчеризации и обход вех.
func newJobs(a *app) (*engine.Scheduler, error) {
	sched := engine.NewScheduler(a.logger, a.location)

	if a.cfg.Dispatch.Enabled && a.dispatcher != nil {
		limit := a.cfg.Dispatch.Limit
		err := sched.Register("dispatch", a.cfg.Dispatch.Schedule, 0, func(ctx context.Context) error {
			res, err := a.dispatcher.ProcessQueue(ctx, limit)
			if err != nil {
				return err
			}
			if res.Processed > 0 {
				a.logger.Info("dispatch batch finished",
					zap.Int("processed", res.Processed),
					zap.Int("success", res.Success),
					zap.Int("failed", res.Failed))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if a.cfg.Schedule.Enabled && a.refresher != nil {
		err := sched.Register("milestone-sweep", a.cfg.Schedule.Sweep, time.Minute, func(ctx context.Context) error {
			res, err := a.refresher.Sweep(ctx, time.Now().In(a.location))
			if err != nil {
				return err
			}
			if res.Due > 0 {
				a.logger.Info("milestone sweep finished",
					zap.Int("due", res.Due),
					zap.Int("fired", res.Fired),
					zap.Int("failed", res.Failed),
					zap.Int("retired", res.Retired))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	a.logger.Info("scheduler configured", zap.Int("jobs", sched.Entries()),
		zap.String("timezone", a.location.String()),
		zap.Bool("audit", a.sink.Enabled()),
		zap.String("redis_namespace", infra.RedisNamespace))
	return sched, nil
}
