// Command api serves the public HTTP surface of §6: the Request Pipeline,
// backed by the Persistence Gateway, with a Job Fabric producer handle that
// is enqueue-only in remote mode and a full in-process fabric in local mode.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/auth"
	"github.com/obsplane/observability/internal/bootstrap"
	"github.com/obsplane/observability/internal/handlers"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/logger"
	"github.com/obsplane/observability/internal/middleware"
	"github.com/obsplane/observability/internal/pipeline"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx := context.Background()

	base, err := bootstrap.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "api: bootstrap failed:", err)
		os.Exit(1)
	}
	defer base.Database.Close()
	defer base.Cache.Close()

	var queue jobs.Queue
	var scheduler jobs.Scheduler
	localMode := base.Config.JobFabricMode != "remote"

	if localMode {
		localQueue := jobs.NewLocalQueue(base.Registry, base.Config.WorkerPoolSize, base.Config.DLQRingSize)
		if err := localQueue.Subscribe(ctx, nil); err != nil {
			logger.HTTP().Fatal().Err(err).Msg("failed to start local job fabric")
		}
		localScheduler := jobs.NewLocalScheduler(localQueue)
		if err := bootstrap.InstallDefaultSchedules(localScheduler); err != nil {
			logger.HTTP().Error().Err(err).Msg("failed to install default schedules")
		}
		localScheduler.Start(ctx)
		queue, scheduler = localQueue, localScheduler
	} else {
		remoteQueue, err := jobs.NewRemoteQueue(ctx, base.Config.NatsURL, base.Registry)
		if err != nil {
			logger.HTTP().Fatal().Err(err).Msg("failed to connect remote job fabric")
		}
		queue = remoteQueue
		scheduler = jobs.NewRemoteScheduler(remoteQueue)
	}

	coordinator := pipeline.NewCoordinator(base.Gateways.Logs, base.Gateways.RequestSnapshots, queue,
		base.Config.MetricBatchSize, base.Config.MetricFlushInterval)

	replayBaseURL := base.Config.ReplayBaseURL
	if replayBaseURL == "" {
		replayBaseURL = fmt.Sprintf("http://localhost:%d", base.Config.Port)
	}

	if base.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	middleware.Install(engine, middleware.ChainConfig{
		ConsoleFrontendURL: base.Config.ConsoleFrontendURL,
		IsProduction:       base.Config.IsProduction(),
		Version:            "1.0.0",
		Environment:        base.Config.NodeEnv,
		GeoLookup:          base.GeoLookup,
		Coordinator:        coordinator,
	})

	chaosLimiter := middleware.NewRateLimiter(1, 5)
	replayLimiter := middleware.NewRateLimiter(5, 10)

	public := engine.Group("/api/v1")
	handlers.NewUserHandler(base.Gateways.Users).RegisterRoutes(public)

	authHandler := handlers.NewAuthHandler(base.Gateways.Users, base.JWT, base.Refresh)
	authHandler.RegisterRoutes(public)

	private := engine.Group("/api/v1", auth.RequireAuth(base.JWT))
	private.GET("/auth/me", authHandler.Me)
	handlers.NewHealthHandler(base.Database.DB(), base.Gateways.WorkerStats, base.Cache, bootstrap.WorkerMode(base.Config)).RegisterRoutes(private)
	handlers.NewLogsHandler(base.Gateways.Logs).RegisterRoutes(private)
	handlers.NewMetricsHandler(base.Gateways.RequestSnapshots, base.Gateways.MetricWindows).RegisterRoutes(private)
	handlers.NewReplayHandler(base.Gateways.RequestSnapshots, replayBaseURL).RegisterRoutes(private.Group("", replayLimiter.Middleware()))
	handlers.NewChaosHandler().RegisterRoutes(private.Group("", chaosLimiter.Middleware()))

	if localMode {
		handlers.NewWorkerHandler(base.Registry, queue, scheduler, base.Gateways.WorkerStats, base.Database.DB(), bootstrap.WorkerMode(base.Config)).
			RegisterRoutes(engine)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", base.Config.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.HTTP().Info().Int("port", base.Config.Port).Bool("local_job_fabric", localMode).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.HTTP().Fatal().Err(err).Msg("api server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.HTTP().Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.HTTP().Warn().Err(err).Msg("http server forced to shutdown")
	}

	coordinator.Stop(shutdownGrace)
	if localMode {
		scheduler.Stop()
	}
	_ = queue.Close()

	logger.HTTP().Info().Msg("api server stopped")
}
