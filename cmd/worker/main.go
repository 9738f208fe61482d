// Command worker boots the Persistence Gateway, the full Job Fabric consumer
// and scheduler, the Metric Aggregator (dispatched as ordinary job handlers),
// the Maintenance Loops, and the operator-facing worker HTTP surface of §4.E.
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

	"github.com/obsplane/observability/internal/bootstrap"
	"github.com/obsplane/observability/internal/handlers"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx := context.Background()

	base, err := bootstrap.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker: bootstrap failed:", err)
		os.Exit(1)
	}
	defer base.Database.Close()
	defer base.Cache.Close()

	var queue jobs.Queue
	var scheduler jobs.Scheduler

	if base.Config.JobFabricMode == "remote" {
		remoteQueue, err := jobs.NewRemoteQueue(ctx, base.Config.NatsURL, base.Registry)
		if err != nil {
			logger.HTTP().Fatal().Err(err).Msg("failed to connect remote job fabric")
		}
		if err := remoteQueue.Subscribe(ctx, nil); err != nil {
			logger.HTTP().Fatal().Err(err).Msg("failed to subscribe remote job fabric")
		}
		queue = remoteQueue
		scheduler = jobs.NewRemoteScheduler(remoteQueue)
	} else {
		localQueue := jobs.NewLocalQueue(base.Registry, base.Config.WorkerPoolSize, base.Config.DLQRingSize)
		if err := localQueue.Subscribe(ctx, nil); err != nil {
			logger.HTTP().Fatal().Err(err).Msg("failed to start local job fabric")
		}
		queue = localQueue
		scheduler = jobs.NewLocalScheduler(localQueue)
	}

	if err := bootstrap.InstallDefaultSchedules(scheduler); err != nil {
		logger.HTTP().Error().Err(err).Msg("failed to install default schedules")
	}
	scheduler.Start(ctx)

	if base.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	handlers.NewWorkerHandler(base.Registry, queue, scheduler, base.Gateways.WorkerStats, base.Database.DB(), bootstrap.WorkerMode(base.Config)).
		RegisterRoutes(engine)

	workerPort := base.Config.Port + 1
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", workerPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.HTTP().Info().Int("port", workerPort).Str("mode", base.Config.JobFabricMode).Msg("worker surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.HTTP().Fatal().Err(err).Msg("worker server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.HTTP().Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.HTTP().Warn().Err(err).Msg("worker http server forced to shutdown")
	}

	scheduler.Stop()
	_ = queue.Close()

	logger.HTTP().Info().Msg("worker stopped")
}
