// Command server runs the billing side of the engine: the provider webhook
// receiver, the notification dispatcher behind it, and the background cycle
// sweeper. Quota checks and plan transitions are library calls made by the
// host application; they need no process of their own.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/socialecho/echokit/pkg/audit"
	"github.com/socialecho/echokit/pkg/billing"
	"github.com/socialecho/echokit/pkg/config"
	"github.com/socialecho/echokit/pkg/cycle"
	"github.com/socialecho/echokit/pkg/email"
	"github.com/socialecho/echokit/pkg/httpserver"
	"github.com/socialecho/echokit/pkg/logger"
	"github.com/socialecho/echokit/pkg/notify"
	"github.com/socialecho/echokit/pkg/pg"
	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/redis"
	"github.com/socialecho/echokit/pkg/subscription"
	"github.com/socialecho/echokit/pkg/tenant"
)

type appConfig struct {
	ProductName string   `env:"PRODUCT_NAME" envDefault:"SocialEcho"`
	DenyList    []string `env:"NOTIFY_DENY_LIST" envSeparator:","`
}

func main() {
	var (
		appCfg    appConfig
		logCfg    logger.Config
		pgCfg     pg.Config
		redisCfg  redis.Config
		emailCfg  email.Config
		stripeCfg billing.StripeConfig
		priceCfg  plan.PriceConfig
		httpCfg   httpserver.Config
		sweepCfg  cycle.SweeperConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&logCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&stripeCfg)
	config.MustLoad(&priceCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&sweepCfg)

	log := logger.New("echokit", logger.WithLevel(logCfg.Level), logger.WithFormat(logCfg.Format))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "failed to run migrations", logger.Error(err))
		os.Exit(1)
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer rdb.Close()

	catalog, err := plan.NewCatalog(plan.DefaultPlans(priceCfg)...)
	if err != nil {
		log.ErrorContext(ctx, "failed to build plan catalog", logger.Error(err))
		os.Exit(1)
	}

	subs := subscription.NewPgStore(pool)
	accounts := tenant.NewPGStore(pool)
	auditLog := audit.NewLogger(audit.NewPGStorage(pool))

	engine := cycle.New(subs, cycle.WithLogger(log))
	sweeper := cycle.NewSweeper(subs, engine, cycle.NewRedisLocker(rdb), sweepCfg, log)

	provider := billing.NewStripeProvider(stripeCfg)
	syncer := billing.NewSyncer(subs, catalog, billing.WithSyncerLogger(log))

	dispatcher := notify.New(
		notify.NewAccountRecipientSource(accounts),
		notify.NewPGDispatchLog(pool),
		email.MustNewPostmarkSender(emailCfg),
		notify.NewRenderer(appCfg.ProductName),
		notify.WithAudit(auditLog),
		notify.WithLogger(log),
		notify.WithDenyList(appCfg.DenyList),
	)

	webhooks := billing.NewWebhookHandler(provider, syncer,
		billing.WithNotifier(dispatcher),
		billing.WithWebhookLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	webhooks.Register(r)
	r.Get("/health", httpserver.HealthCheckHandler(log))
	r.Get("/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool), redis.Healthcheck(rdb)))

	srv := httpserver.New(httpCfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, r) })
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.InfoContext(ctx, "server stopped")
}
