package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/triage-api/config"
	"github.com/jwalitptl/triage-api/internal/handler/health"
	"github.com/jwalitptl/triage-api/internal/repository/postgres"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/messaging/redis"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Logging.JSON,
	}).WithFields(map[string]interface{}{"component": "outbox_worker"})
	log.Logger = *appLog.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		appLog.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLog)
	if err != nil {
		appLog.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics("outbox_processor", reg)

	repos := postgres.NewRepositories(db)

	workerCfg := cfg.Outbox.ToWorkerConfig()
	workerCfg.ChannelPrefix = cfg.Redis.ChannelPrefix
	processor, err := worker.NewOutboxProcessor(repos.Outbox, broker, workerCfg, appLog, m)
	if err != nil {
		appLog.Fatal(err, "Failed to create outbox processor")
	}
	cleanup := worker.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLog, m)

	healthSrv := newHealthServer(cfg.Outbox.HealthPort, reg, db.PingContext, broker.Ping)
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error(err, "Health check server failed")
			stop()
		}
	}()

	if pending, err := repos.Outbox.CountPending(ctx); err == nil {
		appLog.Info("Outbox backlog", "pending", pending)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	appLog.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "Health server forced to shutdown")
	}
}

func newHealthServer(port int, reg *prometheus.Registry, dbPing, redisPing health.Check) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := health.NewHandler(nil, reg)
	h.AddCheck("database", dbPing)
	h.AddCheck("redis", redisPing)
	h.RegisterRoutes(engine.Group(""))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
