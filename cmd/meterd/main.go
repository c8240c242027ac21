// Command meterd runs the fitmeter metering service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/fitmeter/internal/api"
	"github.com/dmitrymomot/fitmeter/migrations"
	"github.com/dmitrymomot/fitmeter/pkg/clientip"
	"github.com/dmitrymomot/fitmeter/pkg/config"
	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/httpserver"
	"github.com/dmitrymomot/fitmeter/pkg/identity"
	"github.com/dmitrymomot/fitmeter/pkg/logger"
	"github.com/dmitrymomot/fitmeter/pkg/metrics"
	"github.com/dmitrymomot/fitmeter/pkg/milestone"
	"github.com/dmitrymomot/fitmeter/pkg/mongo"
	"github.com/dmitrymomot/fitmeter/pkg/pg"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/redis"
	"github.com/dmitrymomot/fitmeter/pkg/requestid"
	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("meterd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg api.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
		logger.WithContextExtractors(requestid.LogExtractor(), identity.LogExtractor()),
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		logOpts = append(logOpts, logger.WithLevel(level))
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	var (
		pgCfg     pg.Config
		httpCfg   httpserver.Config
		authCfg   identity.Config
		paddleCfg subscription.PaddleConfig
	)
	if err := errors.Join(
		config.Load(&pgCfg),
		config.Load(&httpCfg),
		config.Load(&authCfg),
		config.Load(&paddleCfg),
	); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, migrations.FS, pgCfg, log.With(logger.Component("migrate"))); err != nil {
		return err
	}
	probes := map[string]httpserver.Probe{"postgres": pg.Healthcheck(pool)}

	var redisClient *goredis.Client
	if cfg.UsageStore == api.StoreRedis || cfg.BurstStore == api.StoreRedis {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		if redisClient, err = redis.Connect(ctx, redisCfg); err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		probes["redis"] = redis.Healthcheck(redisClient)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var usageStore usage.Store
	switch cfg.UsageStore {
	case api.StorePostgres:
		pgUsage := usage.NewPostgresStore(pool)
		if cfg.UsageRetentionMonths > 0 {
			retentionCtx, stopRetention := context.WithCancel(ctx)
			defer stopRetention()
			go usage.RunRetention(retentionCtx, pgUsage, cfg.UsageRetentionMonths,
				usage.WithRetentionLogger(log.With(logger.Component("retention"))))
		}
		usageStore = pgUsage
	case api.StoreRedis:
		usageStore = usage.NewRedisStore(redisClient)
	case api.StoreMongo:
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return err
		}
		db, err := mongo.ConnectDatabase(ctx, mongoCfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Client().Disconnect(context.WithoutCancel(ctx)) }()
		probes["mongo"] = mongo.Healthcheck(db.Client())
		if usageStore, err = usage.OpenMongoStore(ctx, db); err != nil {
			return err
		}
	case api.StoreMemory:
		usageStore = usage.NewMemoryStore()
	}

	var burstStore ratelimiter.Store
	if cfg.BurstStore == api.StoreRedis {
		burstStore = ratelimiter.NewRedisStore(redisClient, "fitmeter:burst")
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		burstStore = mem
	}
	limiter := ratelimiter.New(burstStore)

	counter := usage.NewCounter(usageStore,
		usage.WithLogger(log.With(logger.Component("usage"))),
		usage.WithObserver(m),
	)

	subs := subscription.NewPostgresStore(pool)
	provider, err := subscription.NewPaddleProvider(paddleCfg)
	if err != nil {
		return err
	}
	var subOpts []subscription.ServiceOption
	if len(paddleCfg.ProPriceIDs) > 0 {
		subOpts = append(subOpts, subscription.WithTierResolver(subscription.PriceTiers(paddleCfg.ProPriceIDs...)))
	}
	subOpts = append(subOpts, subscription.WithLogger(log.With(logger.Component("billing"))))
	subService := subscription.NewService(provider, subs, subOpts...)

	var plans entitlement.Source = entitlement.NewInMemSource(entitlement.DefaultPlans())
	if cfg.PlansFile != "" {
		plans = entitlement.NewYAMLSource(cfg.PlansFile)
	}
	resolver, err := entitlement.NewResolver(ctx, plans, subs, counter,
		entitlement.WithLogger(log.With(logger.Component("entitlement"))),
		entitlement.WithObserver(m),
	)
	if err != nil {
		return err
	}

	workouts, err := milestone.PostgresCounter(pool, cfg.MilestoneTable)
	if err != nil {
		return err
	}
	evaluator := milestone.NewEvaluator(workouts, milestone.WithThreshold(cfg.MilestoneThreshold))

	verifier, err := identity.NewVerifier(authCfg)
	if err != nil {
		return err
	}

	g := gate.New(limiter, resolver, counter,
		gate.WithLogger(log.With(logger.Component("gate"))),
		gate.WithObserver(m),
	)

	router := api.NewRouter(api.Deps{
		Log:              log,
		Verifier:         verifier,
		Limiter:          limiter,
		Gate:             g,
		Resolver:         resolver,
		Counter:          counter,
		Milestones:       evaluator,
		Webhooks:         subService,
		Bursts:           cfg.Bursts(),
		ClientIP:         clientip.New(cfg.TrustedIPHeaders...),
		Metrics:          m,
		Gatherer:         reg,
		Probes:           probes,
		ReadinessTimeout: cfg.ReadinessTimeout,
	})

	log.InfoContext(ctx, "starting meterd",
		slog.String("usage_store", cfg.UsageStore),
		slog.String("burst_store", cfg.BurstStore),
	)
	return httpserver.New(httpCfg, httpserver.WithLogger(log)).Run(ctx, router)
}
