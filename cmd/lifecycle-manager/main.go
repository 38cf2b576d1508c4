// cmd/lifecycle-manager/main.go
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

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/common/config"
	"admissions-lifecycle/internal/common/database"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/observability"
	"admissions-lifecycle/internal/common/zoho"
	"admissions-lifecycle/internal/crmsync"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/lifecycle"
	"admissions-lifecycle/internal/mapping"
	"admissions-lifecycle/internal/notify"
	"admissions-lifecycle/internal/ops"
	"admissions-lifecycle/internal/retention"
	"admissions-lifecycle/internal/store"

	ad "admissions-lifecycle/internal/workers/application/application-decide"
	aef "admissions-lifecycle/internal/workers/application/application-edit-fields"
	ai "admissions-lifecycle/internal/workers/application/application-intake"
	al "admissions-lifecycle/internal/workers/application/application-list"
	alq "admissions-lifecycle/internal/workers/audit/audit-log-query"
	csr "admissions-lifecycle/internal/workers/crm/crm-sync-retry"
	dn "admissions-lifecycle/internal/workers/dashboard/dashboard-navigation"
	fmu "admissions-lifecycle/internal/workers/integrations/field-mapping-update"
	as "admissions-lifecycle/internal/workers/reporting/application-stats"
	rps "admissions-lifecycle/internal/workers/retention/retention-purge-sweep"
)

const identityCacheTTL = 5 * time.Minute

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

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
		return config.GetDuration(ms)
	}
	return fallback
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lifecycle manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	clk := clock.System()

	// --- Zeebe ---
	var zb *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zb, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zb.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
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
	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rc *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rc, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rc.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rc.Close()
	zapLog.Info("Redis connected successfully")

	// --- Audit log, mirrored to Elasticsearch when configured ---
	var recorder audit.Recorder = audit.NewPostgresRecorder(pg.DB, clk)
	var searcher alq.Searcher
	if cfg.Database.Elasticsearch.Enabled() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping()
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index := cfg.Database.Elasticsearch.AuditIndex
		if err := es.EnsureAuditIndex(ctx, index); err != nil {
			zapLog.Fatal("audit index setup failed", zap.Error(err))
		}
		indexing := audit.NewIndexingRecorder(recorder, es.Client, index, log)
		recorder, searcher = indexing, indexing
		zapLog.Info("Elasticsearch audit mirror enabled", zap.String("index", index))
	}

	// --- Identity ---
	var resolver identity.Resolver
	if kc := cfg.Auth.Keycloak; kc.URL != "" {
		resolver = identity.NewKeycloakResolver(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	} else {
		zapLog.Warn("keycloak not configured, using static actors", zap.Int("actors", len(cfg.Auth.StaticActors)))
		resolver = identity.NewStaticResolver(cfg.Auth.StaticActors)
	}
	resolver = identity.NewCachedResolver(resolver, rc.Client, identityCacheTTL)

	// --- CRM ---
	var adapter crmsync.Adapter
	if z := cfg.Integrations.Zoho; z.Enabled {
		crm := zoho.NewCRMClient(z.BaseURL, z.AuthToken, config.GetDuration(cfg.Sync.Timeout))
		adapter = crmsync.NewZohoAdapter(crm, z.Module, rc.Client, time.Duration(z.CacheTTL)*time.Second, log)
	} else {
		zapLog.Warn("zoho disabled, decisions sync to the in-memory adapter")
		adapter = crmsync.NewMemoryAdapter()
	}

	// --- Notifications ---
	publishers := notify.Fanout{camunda.NewSyncRetryMessenger(zb)}
	aws := cfg.Integrations.AWS
	if aws.SNS.Enabled {
		sns, err := notify.NewSNSPublisher(ctx, aws.Region, aws.SNS.SyncRetryTopicARN)
		if err != nil {
			zapLog.Fatal("sns publisher init failed", zap.Error(err))
		}
		publishers = append(publishers, sns)
	}
	var reporter notify.SweepReporter = notify.Nop{}
	if aws.SES.Enabled {
		ses, err := notify.NewSESMailer(ctx, aws.Region, aws.SES.FromEmail, aws.SES.Recipients)
		if err != nil {
			zapLog.Fatal("ses mailer init failed", zap.Error(err))
		}
		reporter = ses
	}

	// --- Engine ---
	gate := authz.NewGate(cfg.Authz.RolePermissions)
	mappings := mapping.NewService(mapping.NewTable(mapping.DefaultMappings()), mapping.NewPostgresRepository(pg.DB), gate, recorder, log)
	if err := mappings.Load(ctx); err != nil {
		zapLog.Fatal("field mappings load failed", zap.Error(err))
	}

	engine := lifecycle.New(lifecycle.Deps{
		Store:       store.NewPostgresStore(pg.DB),
		Gate:        gate,
		Recorder:    recorder,
		Projector:   mappings.Table(),
		Adapter:     adapter,
		Notifier:    publishers,
		Clock:       clk,
		Policy:      retention.NewPolicy(cfg.Retention.PendingDays, cfg.Retention.DecidedDays),
		Logger:      log,
		SyncTimeout: config.GetDuration(cfg.Sync.Timeout),
		ListBatch:   cfg.Retention.SweepBatch,
	})

	// --- Workers ---
	decideCfg := ad.LoadConfig()
	decideCfg.Timeout = workerTimeout(cfg, ad.TaskType, decideCfg.Timeout)
	decide := ad.NewHandler(decideCfg, engine, resolver, log)

	intakeCfg := ai.LoadConfig()
	intakeCfg.Timeout = workerTimeout(cfg, ai.TaskType, intakeCfg.Timeout)
	intake := ai.NewHandler(intakeCfg, engine, clk, log)

	sweepCfg := rps.LoadConfig(cfg.Retention)
	sweepCfg.Timeout = workerTimeout(cfg, rps.TaskType, sweepCfg.Timeout)
	sweep := rps.NewHandler(sweepCfg, engine, rc.Locker, reporter, clk, obs, log)

	retryCfg := csr.LoadConfig()
	retryCfg.Timeout = workerTimeout(cfg, csr.TaskType, retryCfg.Timeout)
	resync := csr.NewHandler(retryCfg, engine, log)

	listCfg := al.LoadConfig()
	listCfg.Timeout = workerTimeout(cfg, al.TaskType, listCfg.Timeout)
	list := al.NewHandler(listCfg, engine, gate, resolver, clk, log)

	editCfg := aef.LoadConfig()
	editCfg.Timeout = workerTimeout(cfg, aef.TaskType, editCfg.Timeout)
	edit := aef.NewHandler(editCfg, engine, resolver, log)

	statsCfg := as.LoadConfig()
	statsCfg.Timeout = workerTimeout(cfg, as.TaskType, statsCfg.Timeout)
	stats := as.NewHandler(statsCfg, engine, gate, resolver, clk, log)

	mappingCfg := fmu.LoadConfig()
	mappingCfg.Timeout = workerTimeout(cfg, fmu.TaskType, mappingCfg.Timeout)
	mappingUpdate := fmu.NewHandler(mappingCfg, mappings, resolver, log)

	auditCfg := alq.LoadConfig()
	auditCfg.Timeout = workerTimeout(cfg, alq.TaskType, auditCfg.Timeout)
	auditQuery := alq.NewHandler(auditCfg, recorder, searcher, gate, resolver, log)

	navCfg := dn.LoadConfig()
	navCfg.Timeout = workerTimeout(cfg, dn.TaskType, navCfg.Timeout)
	navigation := dn.NewHandler(navCfg, gate, resolver, nil, log)

	var workers []worker.JobWorker
	for _, w := range []struct {
		taskType string
		handler  camunda.HandlerFunc
	}{
		{ad.TaskType, decide.Handle},
		{ai.TaskType, intake.Handle},
		{rps.TaskType, sweep.Handle},
		{csr.TaskType, resync.Handle},
		{al.TaskType, list.Handle},
		{aef.TaskType, edit.Handle},
		{as.TaskType, stats.Handle},
		{fmu.TaskType, mappingUpdate.Handle},
		{alq.TaskType, auditQuery.Handle},
		{dn.TaskType, navigation.Handle},
	} {
		if jw := camunda.StartWorker(zb.GetClient(), w.taskType, config.GetWorkerConfig(cfg, w.taskType), w.handler, obs, log); jw != nil {
			workers = append(workers, jw)
		}
	}
	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	var scheduler *ops.Scheduler
	if schedule := cfg.Retention.SweepSchedule; schedule != "" {
		scheduler, err = ops.NewScheduler(schedule, sweepCfg.Timeout, func(ctx context.Context) error {
			_, err := sweep.Execute(ctx, &rps.Input{})
			return err
		}, log)
		if err != nil {
			zapLog.Fatal("invalid retention.sweep_schedule", zap.String("schedule", schedule), zap.Error(err))
		}
		scheduler.Start()
		zapLog.Info("in-process sweep scheduled", zap.String("schedule", schedule))
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr: cfg.App.HTTPAddr,
		Handler: ops.NewRouter(cfg.App.Name, map[string]ops.Check{
			"zeebe":    zb.HealthCheck,
			"postgres": pg.Ping,
			"redis":    rc.Ping,
		}, 5*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Lifecycle manager stopped")
}
