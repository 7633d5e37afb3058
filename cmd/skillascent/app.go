package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/config"
	"github.com/skill-ascent/skill-ascent/internal/application/command"
	"github.com/skill-ascent/skill-ascent/internal/application/saga"
	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/messaging"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/postgres"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/redis"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/sqlite"
	"github.com/skill-ascent/skill-ascent/pkg/circuitbreaker"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
	"github.com/skill-ascent/skill-ascent/pkg/retry"
)

// eventBus is the in-process bus, or the Redis-backed one when Redis is attached.
type eventBus interface {
	shared.EventPublisher
	SubscribeAll(handler shared.EventHandler) error
	Close() error
}

// app holds the stores and collaborators one command invocation needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	out    io.Writer
	errOut io.Writer
	userID string

	// writerID marks the badges.changed events of this invocation.
	writerID string

	// Exactly one of pg and lite is set.
	pg     *postgres.Connection
	lite   *sqlite.Store
	dbPath string

	skills skill.Repository
	badges badge.Store

	// feed is nil unless Redis is configured.
	feed *redis.ChangeFeed
	bus  eventBus

	closers []func()
}

// openApp loads configuration and opens the store: PostgreSQL when
// DATABASE_URL is set and --db is not, SQLite otherwise.
func openApp(cmd *cobra.Command) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cmd)

	// Commands that need a user fail in the domain layer when it is empty.
	userID, err := resolveUser(cmd)
	if err != nil {
		log.Debug("no user resolved", logger.Err(err))
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		userID:   userID,
		writerID: "cli-" + uuid.NewString(),
	}

	local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: a.log})
	if err := local.SubscribeAll(a.logEvent); err != nil {
		return nil, err
	}
	a.bus = local

	ctx := cmd.Context()
	dbFlag, _ := cmd.Flags().GetString("db")
	if cfg.UsePostgres() && dbFlag == "" {
		err = a.openPostgres(ctx)
	} else {
		err = a.openSQLite(ctx, cmd)
	}
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openSQLite(ctx context.Context, cmd *cobra.Command) error {
	path, err := resolveDBPath(cmd, a.cfg)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}

	st, err := sqlite.Open(ctx, path, sqlite.Options{BusyTimeout: a.cfg.SQLite.BusyTimeout})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = st.Close() })

	a.lite = st
	a.dbPath = path
	a.skills = st.Skills()
	a.badges = st.Badges()
	a.log.Debug("using sqlite store", logger.String("path", path))
	return nil
}

func (a *app) openPostgres(ctx context.Context) error {
	db := a.cfg.Database

	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = int32(db.MaxOpenConns)
	opts.MaxConnLifetime = db.ConnMaxLifetime
	opts.MaxConnIdleTime = db.ConnMaxIdleTime
	opts.QueryTimeout = db.QueryTimeout

	conn, err := postgres.NewConnection(ctx, db.URL, opts)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	a.pg = conn

	if db.AutoMigrate {
		if _, err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	a.skills = postgres.NewSkillRepository(conn)
	a.badges = postgres.NewBadgeRepository(conn)
	a.log.Debug("using postgres store")

	a.attachRedis(ctx)
	return nil
}

// attachRedis announces changes on the shared change feed and the shared
// event bus, and keeps the worker's badge snapshots fresh. Redis is optional
// for the CLI.
func (a *app) attachRedis(ctx context.Context) {
	rc := a.cfg.Redis
	if rc.Disabled || rc.URL == "" {
		return
	}

	cache, err := redis.NewCache(ctx, redisConfig(rc))
	if err != nil {
		a.log.Warn("redis unavailable, change feed disabled", logger.Err(err))
		return
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })

	a.feed = redis.NewChangeFeed(cache, rc.ChangeFeedChannel, a.log)
	if a.cfg.Features.IsEnabled(config.FeatureSnapshotCache, a.userID) {
		a.badges = redis.NewBadgeCache(a.badges, cache, rc.SnapshotTTL, a.log)
	}

	remote, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(cache.Client()),
		InstanceID:     a.writerID,
		Forward:        messaging.ForwardBadgeEvents,
		LocalBusConfig: messaging.InMemoryEventBusConfig{Logger: a.log},
		Logger:         a.log,
	})
	if err != nil {
		a.log.Warn("redis event bus unavailable, badge events stay local", logger.Err(err))
		return
	}
	if err := remote.SubscribeAll(a.logEvent); err != nil {
		_ = remote.Close()
		return
	}
	_ = a.bus.Close()
	a.bus = remote
}

// Close releases everything openApp acquired, newest first.
func (a *app) Close() {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}

// controller builds a reconciliation controller for the current user.
func (a *app) controller() *saga.BadgeReconciliation {
	b := a.cfg.Badges
	flags := a.cfg.Features

	return saga.NewBadgeReconciliation(saga.ReconciliationDeps{
		Skills:       a.skills,
		Badges:       a.badges,
		Evaluator:    badge.NewEvaluator(badge.WithLocation(a.cfg.App.Location)),
		Publisher:    a.bus,
		WriteRetrier: retry.BadgeWriteRetrier(b.WriteMaxAttempts, b.WriteInitialDelay, b.WriteMaxDelay, nil),
		StoreBreaker: circuitbreaker.BadgeStoreBreaker(b.BreakerThreshold, b.BreakerTimeout, nil),
		SkillBreaker: circuitbreaker.SkillSourceBreaker(b.BreakerThreshold, b.BreakerTimeout, nil),
		Logger:       a.log,
	}, saga.ReconciliationConfig{
		CatalogBackfill:     b.CatalogBackfill && flags.IsEnabled(config.FeatureCatalogBackfill, a.userID),
		SkipUnchanged:       flags.IsEnabled(config.FeatureSkipUnchanged, a.userID),
		PublishUnlockEvents: flags.IsEnabled(config.FeatureUnlockEvents, a.userID),
		CycleTimeout:        b.CycleTimeout,
		WriterID:            a.writerID,
	})
}

// bootstrap binds a controller to the user. Badges unlocked while binding
// (a catalog backfill, a change made elsewhere) are returned.
func (a *app) bootstrap(ctx context.Context) (*saga.BadgeReconciliation, []badge.Badge, error) {
	ctrl := a.controller()

	res, err := ctrl.UserChanged(ctx, a.userID)
	if err != nil && ctrl.State() != saga.StateReady {
		return nil, nil, err
	}
	if err != nil {
		a.warn("badges not saved: %v", err)
	}

	var unlocked []badge.Badge
	if res != nil {
		unlocked = res.NewlyAchieved
	}
	return ctrl, unlocked, nil
}

// mutate runs fn with a skill handler whose change notifications reconcile
// the user's badges in-process. report prints the outcome, followed by the
// badges that were unlocked.
func (a *app) mutate(
	ctx context.Context,
	fn func(*command.SkillHandler) (*command.MutationResult, error),
	report func(*command.MutationResult),
) error {
	ctrl, unlocked, err := a.bootstrap(ctx)
	if err != nil {
		return err
	}

	reconcile := skill.NotifierFunc(func(ctx context.Context, _ string) error {
		res, err := ctrl.SkillsChanged(ctx)
		if res != nil {
			unlocked = append(unlocked, res.NewlyAchieved...)
		}
		return err
	})

	notifier := skill.MultiNotifier{reconcile}
	if a.feed != nil {
		notifier = append(notifier, a.feed)
	}

	h := command.NewSkillHandler(a.skills, notifier, a.bus, a.log, command.SkillHandlerConfig{})
	result, err := fn(h)
	if err != nil {
		return err
	}

	report(result)
	if result.NotifyErr != nil {
		a.warn("badges not updated: %v", result.NotifyErr)
	}
	a.printUnlocked(unlocked)
	return nil
}

func (a *app) printUnlocked(badges []badge.Badge) {
	for _, b := range badges {
		fmt.Fprintf(a.out, "%s Badge unlocked: %s (%s)\n", b.IconName.Glyph(), b.Name, b.Description)
	}
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.errOut, "warning: "+format+"\n", args...)
}

func (a *app) logEvent(e shared.Event) error {
	a.log.Debug("event",
		logger.String("event_type", string(e.EventType())),
		logger.String("aggregate_id", e.AggregateID()))
	return nil
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	level := logger.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output: cmd.ErrOrStderr(),
		Level:  level,
		Format: "console",
	})
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
