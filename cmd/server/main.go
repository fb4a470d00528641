package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/monosonet/modcore/internal/api/middleware"
	"github.com/monosonet/modcore/internal/api/rest"
	"github.com/monosonet/modcore/internal/api/websocket"
	"github.com/monosonet/modcore/internal/config"
	"github.com/monosonet/modcore/internal/moderation/classifier"
	"github.com/monosonet/modcore/internal/moderation/ratelimit"
	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/signals"
	"github.com/monosonet/modcore/internal/moderation/types"
	"github.com/monosonet/modcore/internal/pkg/audit"
	"github.com/monosonet/modcore/internal/pkg/logger"
	appmetrics "github.com/monosonet/modcore/internal/pkg/metrics"
	"github.com/monosonet/modcore/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Int("port", cfg.Port).Str("database_driver", cfg.DatabaseDriver).Msg("modcore starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pinger, err := openRepository(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open durable store")
	}
	defer func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr(cfg.RedisURL)})
	defer redisClient.Close()
	limiter := ratelimit.NewLimiter(redisClient, time.Duration(cfg.RateLimitWindowMs)*time.Millisecond, cfg.RateLimitRequests, log)

	signalStore := buildSignalStore(cfg)
	signalStore.Start(ctx)
	defer signalStore.Stop()

	classifierConfig := classifier.DefaultConfig()
	classifierConfig.MinConfidenceThreshold = cfg.MinConfidenceThreshold
	classifierConfig.BatchSize = cfg.MLBatchSize
	classifierConfig.CacheSize = cfg.ClassificationCacheSize
	classifierConfig.SupportedLanguages = cfg.SupportedLanguages
	classifierConfig.MinLangConfidence = cfg.MinLangConfidence
	classifierConfig.MaxConcurrentInferences = cfg.MaxConcurrentInferences
	classifierConfig.MLInferenceTimeout = time.Duration(cfg.MLInferenceTimeoutMs) * time.Millisecond
	classifierConfig.ModelHealthCheckInterval = time.Duration(cfg.ModelHealthCheckSec) * time.Second

	rules := classifier.NewRuleClassifier()
	detector := classifier.NewDetector(classifierConfig.SupportedLanguages, classifierConfig.DefaultLanguage, classifierConfig.MinLangConfidence)
	models := classifier.NewModelManager(classifierConfig.MaxConcurrentInferences, classifierConfig.CacheSize, classifierConfig.ModelHealthCheckInterval)
	models.Register(classifier.NewHeuristicModel("heuristic-v1", classifierConfig.ModelVersion, rules))
	models.StartHealthChecks(ctx)
	defer models.Stop()

	cache, err := classifier.NewResultCache(classifierConfig.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build classification result cache")
	}

	prodClassifier := classifier.New(classifierConfig, detector, models, rules, cache, signalStore, appmetrics.ClassifierSink{})

	reportsConfig := reports.Config{
		MaxReportsPerUser:   cfg.MaxReportsPerUser,
		ReportWindow:        time.Duration(cfg.ReportWindowHours) * time.Hour,
		DerivedSignalTTL:    time.Duration(cfg.DerivedSignalTTLDays) * 24 * time.Hour,
		EscalationThreshold: cfg.EscalationThreshold,
	}
	reportManager := reports.New(reportsConfig, store, signalStore, cfg.Specialists, appmetrics.ReportsSink{})

	auditor := audit.NewLogger(log)

	wsHub := websocket.NewHub(ctx)
	go wsHub.Run()
	defer wsHub.Stop()

	go websocket.RelayPipelineResults(ctx, signalStore, wsHub, log)
	go websocket.RelayReportEvents(ctx, reportManager, wsHub, log)

	router := mux.NewRouter()

	handler := rest.NewHandler(prodClassifier, reportManager)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	rest.SetupRoutes(apiRouter, handler)

	healthz := rest.NewHealthzHandler(pinger)
	router.HandleFunc("/health", healthz.Live).Methods(http.MethodGet)
	router.HandleFunc("/healthz/live", healthz.Live).Methods(http.MethodGet)
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods(http.MethodGet)
	if cfg.PrometheusEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	wsHandler := websocket.NewHandler(ctx, wsHub, cfg.AllowedOrigins, log)
	router.HandleFunc("/ws/events", wsHandler.ServeWS).Methods(http.MethodGet)

	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog(log))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimitRequests))
	router.Use(middleware.AuditLog(auditor))
	router.Use(middleware.MaxBodySize(1<<20, middleware.DefaultBatchMaxBodyBytes))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Forwarded-For"},
		AllowCredentials: true,
	})
	handlerWithCORS := c.Handler(router)

	listener, actualPort, err := bindFirstAvailable(cfg.Port, cfg.Port+99)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind listener")
	}
	defer listener.Close()

	srv := &http.Server{
		Handler:      handlerWithCORS,
		ReadTimeout:  cfg.RequestTimeout(),
		WriteTimeout: cfg.RequestTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", actualPort).Msg("modcore listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("modcore exited gracefully")
}

func buildSignalStore(cfg *config.Config) *signals.Store {
	storeConfig := signals.StoreConfig{
		MaxSignals:               cfg.MaxSignals,
		SignalTTL:                cfg.SignalTTL(),
		MaxPipelineWorkers:       cfg.PipelineWorkers,
		CleanupInterval:          time.Duration(cfg.SignalCleanupIntervalMin) * time.Minute,
		EnableRealTimeProcessing: true,
	}
	ruleEngine := signals.NewRuleEngine()
	runner := signals.NewPipelineRunner(cfg.PipelineWorkers, nil)
	store := signals.NewStore(storeConfig, ruleEngine, runner, appmetrics.SignalsSink{})
	runner.SetWindowSource(store)

	for _, rule := range defaultSignalRules() {
		store.AddRule(rule)
	}
	runner.AddPipeline(defaultSignalPipeline(cfg))

	return store
}

// defaultSignalRules seeds the rule engine with a three-tier confidence
// ladder over high_confidence_violation signals, carrying forward
// original_source's evaluate_policy thresholds (block and investigate above
// 0.9, flag and escalate above 0.7, notify above 0.5), plus a standing rule against content_spam
// signals. Deployments that need policy tuning beyond this ladder add or
// replace rules via Store.AddRule.
func defaultSignalRules() []types.SignalRule {
	now := time.Now()
	return []types.SignalRule{
		{
			ID:          "critical-violation-block",
			Name:        "Block and investigate on critical-confidence violations",
			SignalTypes: []types.SignalType{types.SignalHighConfidenceViolation},
			Conditions: []types.SignalCondition{
				{Field: "confidence", Operator: types.OpGreaterThan, Value: 0.9},
			},
			Actions: []types.SignalAction{
				{ActionType: types.ActionBlockUser},
				{ActionType: types.ActionTriggerInvestigation},
			},
			Priority:  10,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "high-violation-flag",
			Name:        "Flag and escalate on high-confidence violations",
			SignalTypes: []types.SignalType{types.SignalHighConfidenceViolation},
			Conditions: []types.SignalCondition{
				{Field: "confidence", Operator: types.OpGreaterThan, Value: 0.7},
			},
			Actions: []types.SignalAction{
				{ActionType: types.ActionFlagForReview},
				{ActionType: types.ActionEscalateToSpecialist},
			},
			Priority:  20,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "moderate-violation-notify",
			Name:        "Notify on moderate-confidence violations",
			SignalTypes: []types.SignalType{types.SignalHighConfidenceViolation},
			Conditions: []types.SignalCondition{
				{Field: "confidence", Operator: types.OpGreaterThan, Value: 0.5},
			},
			Actions: []types.SignalAction{
				{ActionType: types.ActionSendNotification},
			},
			Priority:  30,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "spam-score-update",
			Name:        "Update user score on spam signals",
			SignalTypes: []types.SignalType{types.SignalContentSpam},
			Actions: []types.SignalAction{
				{ActionType: types.ActionUpdateUserScore},
			},
			Priority:  40,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// defaultSignalPipeline seeds the runner with a single risk-aggregation
// pipeline so every signal that reaches processingLoop does real
// pipeline work, not just rule matching.
func defaultSignalPipeline(cfg *config.Config) types.SignalPipeline {
	return types.SignalPipeline{
		ID:   "signal-triage",
		Name: "Signal triage",
		Stages: []types.PipelineStage{
			{
				ID:         "aggregate-risk",
				Name:       "Aggregate user risk score",
				Processor:  types.StageSignalAggregator,
				TimeoutMs:  2000,
				RetryCount: 1,
			},
		},
		Enabled:       true,
		MaxConcurrent: cfg.PipelineWorkers,
		TimeoutMs:     5000,
	}
}

// openRepository opens the configured durable store, returning it both as
// a reports.ReportStore and as the narrow rest.Pinger healthz needs.
func openRepository(cfg *config.Config) (reports.ReportStore, rest.Pinger, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	default:
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	}
}

func redisAddr(url string) string {
	const prefix = "redis://"
	addr := url
	if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
		addr = addr[len(prefix):]
	}
	if idx := lastSlash(addr); idx >= 0 {
		addr = addr[:idx]
	}
	return addr
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func bindFirstAvailable(minPort, maxPort int) (net.Listener, int, error) {
	for port := minPort; port <= maxPort; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			var errno *syscall.Errno
			if errors.As(err, &errno) && *errno == syscall.EADDRINUSE {
				continue
			}
			return nil, 0, err
		}
		return l, port, nil
	}
	return nil, 0, fmt.Errorf("no port available in range %d..%d", minPort, maxPort)
}
