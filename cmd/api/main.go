package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/triage-api/config"
	"github.com/jwalitptl/triage-api/internal/email"
	consultationhandler "github.com/jwalitptl/triage-api/internal/handler/consultation"
	diagnosishandler "github.com/jwalitptl/triage-api/internal/handler/diagnosis"
	"github.com/jwalitptl/triage-api/internal/handler/health"
	knowledgehandler "github.com/jwalitptl/triage-api/internal/handler/knowledge"
	promhandler "github.com/jwalitptl/triage-api/internal/handler/prometheus"
	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/repository/postgres"
	"github.com/jwalitptl/triage-api/internal/router"
	"github.com/jwalitptl/triage-api/internal/service/audit"
	"github.com/jwalitptl/triage-api/internal/service/consultation"
	"github.com/jwalitptl/triage-api/internal/service/diagnosis"
	"github.com/jwalitptl/triage-api/internal/service/guideline"
	"github.com/jwalitptl/triage-api/internal/service/notification"
	"github.com/jwalitptl/triage-api/pkg/embedding"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/security"
)

const metricsNamespace = "triage"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Logging.JSON,
	})
	log.Logger = *appLog.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kb, err := knowledge.LoadDir(cfg.Pipeline.KnowledgeDir)
	if err != nil {
		appLog.Fatal(err, "failed to load knowledge base")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(metricsNamespace, reg)

	auditSvc, err := audit.NewFileService(cfg.Logging.AuditPath)
	if err != nil {
		appLog.Fatal(err, "failed to initialize audit log")
	}
	defer auditSvc.Sync()

	recorderOpts := []consultation.Option{
		consultation.WithAudit(auditSvc),
		consultation.WithMetrics(m),
	}

	sealKey, err := cfg.Security.SealKeyBytes()
	if err != nil {
		appLog.Fatal(err, "invalid security configuration")
	}
	if sealKey != nil {
		sealer, err := security.NewSealer(sealKey)
		if err != nil {
			appLog.Fatal(err, "failed to initialize input sealing")
		}
		recorderOpts = append(recorderOpts, consultation.WithSealer(sealer))
	} else if cfg.Database.Enabled {
		appLog.Warn("security.seal_key is not set, consultation inputs are stored unsealed")
	}
	if cfg.Security.FingerprintKey != "" {
		fp, err := security.NewFingerprinter([]byte(cfg.Security.FingerprintKey))
		if err != nil {
			appLog.Fatal(err, "failed to initialize patient fingerprinting")
		}
		recorderOpts = append(recorderOpts, consultation.WithFingerprinter(fp))
	}

	var notifier *notification.Service
	if cfg.Notification.Enabled {
		mailer := email.NewSMTPService(email.Config{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			Username: cfg.Notification.Username,
			Password: cfg.Notification.Password,
			From:     cfg.Notification.From,
		})
		notifier = notification.NewService(mailer, cfg.Notification.OnCall, appLog)
		recorderOpts = append(recorderOpts, consultation.WithNotifier(notifier))
		defer notifier.Wait()
	}

	var extraHandlers []router.Handler
	checks := map[string]health.Check{}
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			appLog.Fatal(err, "failed to connect to database")
		}
		defer db.Close()

		repos := postgres.NewRepositories(db)
		recorderOpts = append(recorderOpts, consultation.WithRepository(repos.Consultations))
		extraHandlers = append(extraHandlers, consultationhandler.NewHandler(repos.Consultations))
		checks["database"] = db.PingContext
	}

	recorder := consultation.NewRecorder(appLog, recorderOpts...)
	guidelines := guideline.NewService(kb)

	coordinator := diagnosis.NewCoordinator(
		diagnosis.NewStages(kb, newEmbedder(cfg.Embedding), appLog),
		diagnosis.WithPersistence(recorder),
		diagnosis.WithGuidelines(guidelines),
		diagnosis.WithMetrics(m),
		diagnosis.WithLogger(appLog),
	)
	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	err = coordinator.Initialize(initCtx)
	cancelInit()
	if err != nil {
		appLog.Fatal(err, "failed to initialize diagnosis pipeline")
	}

	healthH := health.NewHandler(coordinator.Ready, reg)
	for name, check := range checks {
		healthH.AddCheck(name, check)
	}

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Security.AllowedOrigins

	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	r := router.NewRouter(router.RouterConfig{
		Mode:           mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RateLimit:      limit,
		RateBurst:      cfg.RateLimit.Burst,
		CORSConfig:     cors,
		Metrics:        promhandler.New(metricsNamespace, reg),
	}, append([]router.Handler{
		healthH,
		diagnosishandler.NewHandler(coordinator),
		knowledgehandler.NewHandler(kb, guidelines),
	}, extraHandlers...)...)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "server forced to shutdown")
	}

	appLog.Info("server exited properly")
}

// newEmbedder wires the optional similarity capability. Cache hits skip the
// breaker; misses go through it with a per-call timeout.
func newEmbedder(cfg config.EmbeddingConfig) embedding.Provider {
	if !cfg.Enabled {
		return embedding.NullProvider{}
	}
	client := embedding.NewOllamaClient(cfg.URL, cfg.Model)
	guarded := embedding.NewGuardedProvider(client, cfg.Timeout, cfg.FailureThreshold, cfg.Cooldown)
	return embedding.NewCachedProvider(guarded, cfg.CacheTTL)
}
