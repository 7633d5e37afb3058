// Package main - точка входа фонового процесса (Worker) Skill Ascent.
//
// Worker держит по одному контроллеру сверки бейджей на активного
// пользователя:
// - слушает ленту изменений навыков в Redis
// - направляет уведомления в реестр контроллеров
// - при необходимости принимает события из общей шины (Redis Pub/Sub)
// - по расписанию вытесняет простаивающие контроллеры и пишет метрики
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/skill-ascent/skill-ascent/config"
	"github.com/skill-ascent/skill-ascent/internal/application/saga"
	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/messaging"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/postgres"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/redis"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/scheduler"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/scheduler/jobs"
	"github.com/skill-ascent/skill-ascent/pkg/circuitbreaker"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
	"github.com/skill-ascent/skill-ascent/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.UsePostgres() {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.Redis.Disabled {
		return errors.New("worker needs Redis for the skill change feed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting Skill Ascent Worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Location.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	poolOpts := postgres.DefaultPoolOptions()
	poolOpts.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolOpts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolOpts.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	poolOpts.QueryTimeout = cfg.Database.QueryTimeout

	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL, poolOpts)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis connection...")
		_ = redisCache.Close()
	}()
	log.Info("Redis connection established")

	feed := redis.NewChangeFeed(redisCache, cfg.Redis.ChangeFeedChannel, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	skillRepo := postgres.NewSkillRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)

	var badgeStore badge.Store = badgeRepo
	if cfg.Features.IsEnabled(config.FeatureSnapshotCache, "") {
		badgeStore = redis.NewBadgeCache(badgeRepo, redisCache, cfg.Redis.SnapshotTTL, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// Шина общая для всех экземпляров: события badge.* видны другим
	// процессам, а badges.changed от них приходит сюда.
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	// writerID помечает badges.changed этого процесса, свои события реестр пропускает.
	writerID := "worker-" + uuid.NewString()
	busClient := messaging.NewGoRedisClient(redisCache.Client())
	localBus := messaging.DefaultInMemoryEventBusConfig()
	localBus.Logger = log
	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         busClient,
		InstanceID:     writerID,
		Forward:        messaging.ForwardBadgeEvents,
		LocalBusConfig: localBus,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. РЕЕСТР КОНТРОЛЛЕРОВ СВЕРКИ
	// ─────────────────────────────────────────────────────────────────────────
	// Прерыватели общие: хранилище одно на все контроллеры.
	storeBreaker := circuitbreaker.BadgeStoreBreaker(cfg.Badges.BreakerThreshold, cfg.Badges.BreakerTimeout, breakerLogger(log))
	skillBreaker := circuitbreaker.SkillSourceBreaker(cfg.Badges.BreakerThreshold, cfg.Badges.BreakerTimeout, breakerLogger(log))
	writeRetrier := retry.BadgeWriteRetrier(cfg.Badges.WriteMaxAttempts, cfg.Badges.WriteInitialDelay, cfg.Badges.WriteMaxDelay,
		func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying badge write",
				logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
		})

	factory := func(userID string) *saga.BadgeReconciliation {
		flags := cfg.Features
		return saga.NewBadgeReconciliation(saga.ReconciliationDeps{
			Skills:       skillRepo,
			Badges:       badgeStore,
			Evaluator:    badge.NewEvaluator(badge.WithLocation(cfg.App.Location)),
			Publisher:    eventBus,
			WriteRetrier: writeRetrier,
			StoreBreaker: storeBreaker,
			SkillBreaker: skillBreaker,
			Logger:       log.With(logger.UserID(userID)),
		}, saga.ReconciliationConfig{
			CatalogBackfill:     cfg.Badges.CatalogBackfill && flags.IsEnabled(config.FeatureCatalogBackfill, userID),
			SkipUnchanged:       flags.IsEnabled(config.FeatureSkipUnchanged, userID),
			PublishUnlockEvents: flags.IsEnabled(config.FeatureUnlockEvents, userID),
			CycleTimeout:        cfg.Badges.CycleTimeout,
			WriterID:            writerID,
		})
	}

	registry := saga.NewReconciliationRegistry(factory, saga.RegistryConfig{
		IdleTTL:  cfg.Badges.IdleTTL,
		WriterID: writerID,
		// Версии ленты вытесненных пользователей больше не нужны.
		OnEvict: func(userID string) { feed.Forget(userID) },
	}, log)

	if err := eventBus.Subscribe(shared.EventBadgesChanged, registry.HandleEvent); err != nil {
		return fmt.Errorf("failed to subscribe registry: %w", err)
	}
	if err := eventBus.Subscribe(shared.EventBadgeUnlocked, logUnlock(log)); err != nil {
		return fmt.Errorf("failed to subscribe unlock log: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})

	evictJob := jobs.NewEvictControllersJob(registry, log, jobs.DefaultEvictControllersConfig())
	if err := sched.Register(evictJob, scheduler.NewIntervalSchedule(cfg.Badges.EvictionInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", evictJob.Name(), err)
	}
	metricsJob := jobs.NewReportMetricsJob(eventBus, registry, log)
	if err := sched.Register(metricsJob, &scheduler.Every{Interval: time.Minute, Align: true}); err != nil {
		return fmt.Errorf("failed to register %s: %w", metricsJob.Name(), err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. WORKER LOOP
	// ─────────────────────────────────────────────────────────────────────────
	var wg sync.WaitGroup
	listenErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		listenErr <- feed.Listen(ctx, func(ctx context.Context, notice redis.ChangeNotice) error {
			_, err := registry.SkillsChanged(ctx, notice.UserID)
			if errors.Is(err, shared.ErrWriteFailure) {
				// Контроллер остаётся Ready, дельта повторится на следующем цикле.
				log.Warn("badge delta not saved",
					logger.UserID(notice.UserID), logger.Err(err))
				return nil
			}
			return err
		})
	}()

	log.Info("Skill Ascent Worker is running",
		logger.String("channel", feed.Channel()),
		logger.Duration("idle_ttl", cfg.Badges.IdleTTL),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-listenErr:
		log.Error("change feed stopped", logger.Err(runErr))
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	done := make(chan struct{})
	go func() {
		if err := sched.Stop(); err != nil {
			log.Warn("failed to stop scheduler", logger.Err(err))
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully", logger.Int("controllers", registry.Len()))
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out")
	}
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat

	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.IsDevelopment() {
		// Текстовый формат для development (лучше читается)
		opts.Format = "console"
	}

	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

func redisConfig(rc config.RedisConfig) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.URL = rc.URL
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout
	return cfg
}

func breakerLogger(log *logger.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	}
}

func logUnlock(log *logger.Logger) shared.EventHandler {
	return func(e shared.Event) error {
		payload := e.Payload()
		log.Info("badge unlocked",
			logger.UserID(e.AggregateID()),
			logger.Any("badge_id", payload["badge_id"]))
		return nil
	}
}
