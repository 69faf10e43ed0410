// cmd/claims-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"claimsflow/internal/api"
	"claimsflow/internal/claims"
	"claimsflow/internal/claims/memstore"
	"claimsflow/internal/claims/pgstore"
	"claimsflow/internal/claims/search"
	awsclient "claimsflow/internal/common/aws"
	"claimsflow/internal/common/camunda"
	"claimsflow/internal/common/config"
	"claimsflow/internal/common/database"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/observability"
	"claimsflow/internal/enrichment"
	"claimsflow/internal/intake"
	"claimsflow/internal/notifications"
	"claimsflow/internal/policy"
	"claimsflow/internal/triage"
	"claimsflow/internal/workflow"

	nc "claimsflow/internal/workers/communication/notify-claim"
	aa "claimsflow/internal/workers/triage/assign-adjuster"
	rc "claimsflow/internal/workers/triage/route-claim"
	sc "claimsflow/internal/workers/triage/score-claim"
	"claimsflow/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// checkRegistry warns when a started worker has no entry in the activity
// catalog BPMN modelers work from.
func checkRegistry(path string, taskTypes []string, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry invalid", zap.String("path", path), zap.Error(err))
		return
	}
	if missing := reg.Missing(taskTypes); len(missing) > 0 {
		log.Warn("workers missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting claims manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("sessionStore", cfg.Intake.SessionStore),
	)

	tracing, err := observability.NewTracing(cfg.App.Name, cfg.App.Version, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	var checks []api.Option

	// --- Claim store ---
	var store claims.Store
	var pg *database.PostgresClient
	if cfg.Storage.Backend == "postgres" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.ApplySchema(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		store = pgstore.New(pg.DB)
		checks = append(checks, api.WithReadinessCheck("postgres", pg.Ping))
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		store = memstore.New()
	}

	// --- Redis (sessions and policy cache) ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			if cfg.Intake.SessionStore == "redis" {
				zapLog.Fatal("redis failed after retries", zap.Error(err))
			}
			zapLog.Warn("redis unavailable, continuing without policy cache", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			checks = append(checks, api.WithReadinessCheck("redis", rdb.Ping))
			zapLog.Info("Redis connected successfully")
		}
	}

	var sessions intake.SessionStore
	if cfg.Intake.SessionStore == "redis" {
		sessions = intake.NewRedisStore(rdb.Client, cfg.Intake.SessionKeyPrefix, cfg.SessionIdleTimeout())
	} else {
		sessions = intake.NewMemoryStore(cfg.SessionIdleTimeout())
	}

	var policies intake.PolicyLookup
	if pg != nil {
		var cache *redis.Client
		if rdb != nil {
			cache = rdb.Client
		}
		policies = policy.NewStore(pg.DB, cache, config.GetDuration(cfg.Integrations.Policy.CacheTTL), log)
	} else {
		policies = policy.NewStatic().WithTemplate(policy.DemoTemplate())
	}

	// --- Repository collaborators ---
	repoOpts := []claims.Option{}
	apiOpts := []api.Option{}

	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		indexer := search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.ClaimIndex, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("claim index setup failed", zap.Error(err))
		}
		repoOpts = append(repoOpts, claims.WithObserver(indexer))
		apiOpts = append(apiOpts, api.WithSearcher(indexer))
		checks = append(checks, api.WithReadinessCheck("elasticsearch", esClient.Ping))
		zapLog.Info("Elasticsearch connected successfully")
	}

	var dispatcher *notifications.Dispatcher
	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		sdkCfg, err := awsclient.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		var dispatchOpts []notifications.DispatchOption
		if awsCfg.SES.Enabled {
			dispatchOpts = append(dispatchOpts, notifications.WithEmail(awsclient.NewSESClient(sdkCfg, awsCfg.SES.FromEmail), awsCfg.SES.FromEmail))
		}
		if awsCfg.SNS.Enabled {
			dispatchOpts = append(dispatchOpts, notifications.WithSMS(awsclient.NewSNSClient(sdkCfg, awsCfg.SNS.DefaultSMSSenderID), awsCfg.SNS.DefaultSMSSenderID))
		}
		dispatcher = notifications.NewDispatcher(log, dispatchOpts...)
		repoOpts = append(repoOpts, claims.WithNotificationSink(dispatcher))
		zapLog.Info("Notification delivery enabled",
			zap.Bool("email", awsCfg.SES.Enabled),
			zap.Bool("sms", awsCfg.SNS.Enabled),
		)
	}

	repo := claims.NewRepository(store, log, repoOpts...)

	seed := cfg.Triage.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	triageSvc := triage.NewService(repo, triage.NewSource(seed), obs, log)

	// --- Process engine ---
	var creator intake.ClaimCreator = repo
	var zeebe *camunda.Client
	var workers []*camunda.CamundaWorker
	var started []string
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks = append(checks, api.WithReadinessCheck("zeebe", zeebe.HealthCheck))
		zapLog.Info("Zeebe client connected successfully")

		creator = workflow.NewLauncher(repo, zeebe, cfg.Camunda.ProcessID, log)

		handlers := map[string]camunda.JobHandler{
			sc.TaskType: sc.NewHandler(sc.LoadConfig(config.GetWorkerConfig(cfg, sc.TaskType)), triageSvc, log),
			rc.TaskType: rc.NewHandler(rc.LoadConfig(config.GetWorkerConfig(cfg, rc.TaskType)), triageSvc, log),
			aa.TaskType: aa.NewHandler(aa.LoadConfig(config.GetWorkerConfig(cfg, aa.TaskType)), triageSvc, log),
			nc.TaskType: nc.NewHandler(nc.LoadConfig(config.GetWorkerConfig(cfg, nc.TaskType)), repo, log),
		}
		for taskType, handler := range handlers {
			if !config.IsWorkerEnabled(cfg, taskType) {
				zapLog.Info("Worker disabled", zap.String("taskType", taskType))
				continue
			}
			wcfg := config.GetWorkerConfig(cfg, taskType)
			w := camunda.NewWorker(zeebe.GetClient(), taskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log)
			w.Start()
			workers = append(workers, w)
			started = append(started, taskType)
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
		checkRegistry(cfg.Camunda.RegistryPath, started, zapLog)
	}

	// --- Intake ---
	engineOpts := []intake.Option{}
	if cfg.Integrations.Enrichment.Enabled {
		engineOpts = append(engineOpts, intake.WithEnricher(enrichment.NewClient(cfg.Integrations.Enrichment, log)))
	}
	engine := intake.NewEngine(sessions, policies, creator, log, engineOpts...)

	// --- HTTP ---
	apiOpts = append(apiOpts, checks...)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.New(log, engine, repo, triageSvc, apiOpts...).Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	zapLog.Info("Claims manager stopped")
}
