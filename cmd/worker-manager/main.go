// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	awsclients "center-onboarding/internal/common/aws"
	"center-onboarding/internal/common/cache"
	"center-onboarding/internal/common/camunda"
	"center-onboarding/internal/common/config"
	"center-onboarding/internal/common/database"
	commonhttp "center-onboarding/internal/common/http"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/observability"
	"center-onboarding/internal/store"
	"center-onboarding/pkg/registry"

	publishevent "center-onboarding/internal/workers/communication/publish-event"
	sendwelcomeemail "center-onboarding/internal/workers/communication/send-welcome-email"
	applytoolcall "center-onboarding/internal/workers/conversation/apply-tool-call"
	checkreadiness "center-onboarding/internal/workers/conversation/check-readiness"
	resolvecity "center-onboarding/internal/workers/geography/resolve-city"
	createfromconversation "center-onboarding/internal/workers/provisioning/create-from-conversation"
	provisiontenant "center-onboarding/internal/workers/provisioning/provision-tenant"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func connectPostgres(ctx context.Context, name string, cfg config.PostgresConfig, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(name, cfg)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, fmt.Sprintf("PostgreSQL %s connection", name))
	return pg, err
}

// buildCache returns the Redis cache when enabled, otherwise an in-process one.
func buildCache(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.Cache, func()) {
	maxTTL := config.GetSeconds(cfg.Onboarding.PlaceCacheTTL)
	if sports := config.GetSeconds(cfg.Onboarding.SportsCacheTTL); sports > maxTTL {
		maxTTL = sports
	}
	memory := cache.NewMemoryCache(cfg.Onboarding.CacheSize, maxTTL)
	if !cfg.Database.Redis.Enabled {
		log.Info("redis disabled, using in-process cache", nil)
		return memory, func() {}
	}

	var redisClient *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		log.Warn("redis unavailable, using in-process cache", map[string]interface{}{"error": err.Error()})
		return memory, func() {}
	}
	log.Info("Redis connected successfully", nil)
	prefix := cfg.Database.Redis.KeyPrefix
	if prefix == "" {
		prefix = cfg.App.Name + ":"
	}
	return cache.NewRedisCache(redisClient.Client, prefix), func() { redisClient.Close() }
}

// buildEmitter wires the Elasticsearch analytics sink and the SNS domain
// event publisher. Either may be absent.
func buildEmitter(ctx context.Context, cfg *config.Config, awsCfg *awsclients.Clients, log logger.Logger) *publishevent.Emitter {
	var sink publishevent.AnalyticsSink
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			log.Warn("elasticsearch unavailable, analytics events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			sink = publishevent.NewElasticsearchSink(esClient, cfg.Database.Elasticsearch.EventsIndex)
			log.Info("Elasticsearch connected successfully", nil)
		}
	}

	var publisher *publishevent.SNSPublisher
	if awsCfg != nil && awsCfg.SNS != nil {
		publisher = publishevent.NewSNSPublisher(awsCfg.SNS, cfg.Integrations.AWS.SNS.TopicARN)
	}

	return publishevent.NewEmitter(sink, publisher, log, config.GetDuration(cfg.Onboarding.NotificationTimeout))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.Build(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager...", map[string]interface{}{"environment": cfg.App.Environment})

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("otel metrics exporter unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFromApp(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected successfully", nil)

	// --- Databases ---
	appDB, err := connectPostgres(ctx, "conversations", cfg.Database.Postgres, log)
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer appDB.Close()

	provisioningDB, err := connectPostgres(ctx, "provisioning", cfg.Database.Provisioning, log)
	if err != nil {
		zapLog.Fatal("provisioning postgres failed after retries", zap.Error(err))
	}
	defer provisioningDB.Close()
	log.Info("PostgreSQL connected successfully", nil)

	sharedCache, closeCache := buildCache(ctx, cfg, log)
	defer closeCache()

	// --- External services ---
	awsClients, err := awsclients.NewClients(ctx, cfg.Integrations.AWS.Region,
		cfg.Integrations.AWS.SES.Enabled, cfg.Integrations.AWS.SNS.Enabled)
	if err != nil {
		zapLog.Fatal("aws configuration failed", zap.Error(err))
	}
	emitter := buildEmitter(ctx, cfg, awsClients, log)

	var places resolvecity.PlaceLookup
	if p := cfg.Integrations.Places; p.Enabled {
		places = resolvecity.NewHTTPPlaceLookup(
			commonhttp.NewClient("places", config.GetDuration(p.Timeout), p.MaxRetries),
			p.BaseURL, p.APIKey, sharedCache, config.GetSeconds(cfg.Onboarding.PlaceCacheTTL),
		)
	}

	tools, err := registry.Default()
	if err != nil {
		zapLog.Fatal("tool registry failed to load", zap.Error(err))
	}
	activities, err := registry.DefaultActivities()
	if err != nil {
		zapLog.Fatal("activity registry failed to load", zap.Error(err))
	}
	if err := activities.Validate(); err != nil {
		zapLog.Fatal("activity registry is invalid", zap.Error(err))
	}

	// --- Domain services ---
	conversations := store.NewConversationRepository(appDB.SQLX(), log, cfg.Onboarding.MaxUpdateAttempts)
	summaries := store.NewTenantSummaryRepository(appDB.SQLX())

	geo := resolvecity.NewGeographyStore()
	resolver := resolvecity.NewResolver(provisioningDB.DB, geo, places, log)

	licenceAmount, err := decimal.NewFromString(cfg.Onboarding.LicenceAmount)
	if err != nil {
		zapLog.Fatal("invalid onboarding.licence_amount", zap.Error(err))
	}
	opts := provisiontenant.DefaultOptions()
	opts.LicenceAmount = licenceAmount
	provisioner := provisiontenant.NewProvisioner(
		provisioningDB.DB, geo,
		provisiontenant.NewSportCatalog(sharedCache, config.GetSeconds(cfg.Onboarding.SportsCacheTTL)),
		opts, log,
	)

	welcomeCfg := sendwelcomeemail.FromAppConfig(cfg)
	var welcome *sendwelcomeemail.Notifier
	if awsClients.SES != nil {
		welcome = sendwelcomeemail.NewNotifier(awsClients.SES, welcomeCfg, log)
	}

	// --- Workers ---
	manager := camunda.NewWorkerManager(zeebe.GetClient(), activities, obs, log)

	applyHandler, err := applytoolcall.NewHandler(applytoolcall.HandlerOptions{
		Config:        applytoolcall.FromAppConfig(cfg),
		Conversations: conversations,
		Registry:      tools,
		Events:        emitter,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create apply-tool-call handler", zap.Error(err))
	}
	manager.Register(camunda.RegistrationFor(cfg, applytoolcall.TaskType, applyHandler))

	readinessHandler, err := checkreadiness.NewHandler(checkreadiness.FromAppConfig(cfg), conversations, log)
	if err != nil {
		zapLog.Fatal("failed to create check-readiness handler", zap.Error(err))
	}
	manager.Register(camunda.RegistrationFor(cfg, checkreadiness.TaskType, readinessHandler))

	cityHandler, err := resolvecity.NewHandler(resolvecity.FromAppConfig(cfg), resolver, log)
	if err != nil {
		zapLog.Fatal("failed to create resolve-city handler", zap.Error(err))
	}
	manager.Register(camunda.RegistrationFor(cfg, resolvecity.TaskType, cityHandler))

	deps := createfromconversation.Dependencies{
		Conversations: conversations,
		Summaries:     summaries,
		Cities:        resolver,
		Provisioner:   provisioner,
		Events:        emitter,
		Observability: obs,
	}
	if welcome != nil {
		deps.Welcome = welcome
	}
	createHandler, err := createfromconversation.NewHandler(createfromconversation.FromAppConfig(cfg), deps, log)
	if err != nil {
		zapLog.Fatal("failed to create create-tenant-from-conversation handler", zap.Error(err))
	}
	manager.Register(camunda.RegistrationFor(cfg, createfromconversation.TaskType, createHandler))

	if welcome != nil {
		welcomeHandler, err := sendwelcomeemail.NewHandler(welcomeCfg, welcome, log)
		if err != nil {
			zapLog.Fatal("failed to create send-welcome-email handler", zap.Error(err))
		}
		manager.Register(camunda.RegistrationFor(cfg, sendwelcomeemail.TaskType, welcomeHandler))
	} else {
		log.Info("SES disabled, send-welcome-email worker not started", nil)
	}

	log.Info("workers registered", map[string]interface{}{"taskTypes": manager.TaskTypes()})

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"conversations": appDB.Ping,
			"provisioning":  provisioningDB.Ping,
			"zeebe":         zeebe.HealthCheck,
		} {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
