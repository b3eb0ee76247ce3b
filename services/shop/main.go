package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/joho/godotenv"

	"github.com/appetiteclub/cakeshop/pkg"
	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/services/shop/internal/audit"
	"github.com/appetiteclub/cakeshop/services/shop/internal/auth"
	"github.com/appetiteclub/cakeshop/services/shop/internal/blob"
	"github.com/appetiteclub/cakeshop/services/shop/internal/catalog"
	"github.com/appetiteclub/cakeshop/services/shop/internal/drafts"
	"github.com/appetiteclub/cakeshop/services/shop/internal/orders"
	"github.com/appetiteclub/cakeshop/services/shop/internal/prefs"
	"github.com/appetiteclub/cakeshop/services/shop/internal/wizard"
)

const (
	appNamespace = "SHOP"
	appName      = "shop"
	appVersion   = "0.1.0"
)

func main() {
	_ = godotenv.Load()

	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	// Tags events published by this replica.
	origin := appName + "-" + uuid.NewString()

	client, err := api.NewClient(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create api client: %v", appName, appVersion, err)
	}

	sessions, err := auth.NewSessions(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot setup sessions: %v", appName, appVersion, err)
	}

	blobs, err := blob.FromProperties(config)
	if err != nil {
		log.Fatalf("%s(%s) cannot setup blob storage: %v", appName, appVersion, err)
	}

	var lifecycles []interface{}

	var pub pkg.Publisher = pkg.NoopPublisher{}
	var sub pkg.Subscriber = pkg.NoopSubscriber{}
	if natsURL := config.GetStringOrDef("nats.url", ""); natsURL != "" {
		natsPub, err := pkg.NewNATSPublisher(natsURL, appName)
		if err != nil {
			log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
		}
		natsSub, err := pkg.NewNATSSubscriber(natsURL, appName, logger)
		if err != nil {
			log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
		}
		pub, sub = natsPub, natsSub
		lifecycles = append(lifecycles,
			apt.LifecycleHooks{OnStop: func(context.Context) error { return natsPub.Close() }},
			apt.LifecycleHooks{OnStop: func(context.Context) error { return natsSub.Close() }},
		)
	} else {
		logger.Info("nats.url not configured, cross-replica invalidation disabled")
	}

	var sink audit.Sink
	if mongoURL := config.GetStringOrDef("audit.mongo.url", ""); mongoURL != "" {
		mongoSink := audit.NewMongoSink(mongoURL, config.GetStringOrDef("audit.mongo.name", ""), logger)
		if err := mongoSink.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot start audit store: %v", appName, appVersion, err)
		}
		sink = mongoSink
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: mongoSink.Stop})
	}
	auditLog := audit.NewLogger(logger, sink)

	cat := catalog.New(client, catalog.Deps{
		Blobs:     blobs,
		Audit:     auditLog,
		Publisher: pub,
		Source:    origin,
		Logger:    logger,
	})

	feed := orders.NewFeed(client, orders.FeedOptions{
		Interval: duration(config, "orders.poll.interval", orders.DefaultPollInterval, logger),
		TTL:      duration(config, "orders.view.ttl", orders.DefaultViewTTL, logger),
		Origin:   origin,
		Logger:   logger,
	})
	orderService := orders.NewService(client, feed, auditLog, pub, origin, logger)

	draftTTL := duration(config, "drafts.ttl", 30*time.Minute, logger)
	builderStore := drafts.NewStore[*orders.Builder](draftTTL, logger)
	wizardStore := drafts.NewStore[*wizard.Wizard](draftTTL, logger)
	builderStore.StartCleanup(ctx, time.Minute)
	wizardStore.StartCleanup(ctx, time.Minute)

	builders := orders.NewBuilders(builderStore, orderService, func(token string) orders.Loaders {
		return orders.LoadersFor(client, token)
	}, logger)
	wizards := wizard.NewService(wizardStore, client, orderService, func(token string) wizard.Loaders {
		return wizard.LoadersFor(client, token)
	}, logger)

	var verifier auth.Verifier
	if config.GetStringOrDef("auth.verify", "true") == "true" {
		verifier = client
	}

	prefsService := prefs.NewService(sessions)

	staff := auth.Guarded(sessions.Require(auth.RoleStaff, verifier),
		catalog.NewHandler(cat, blobs, logger),
		orders.NewHandler(orderService, prefsService, logger),
		orders.NewBuilderHandler(builders, logger),
		audit.NewHandler(auditLog, logger),
	)
	customer := auth.Guarded(sessions.Require(auth.RoleCustomer, verifier),
		wizard.NewHandler(wizards, logger),
	)

	lifecycles = append(lifecycles,
		feed,
		orders.NewEventSubscriber(sub, feed, logger),
		catalog.NewEventSubscriber(sub, cat, logger),
	)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})
	if key := config.GetStringOrDef("csrf.key", ""); key != "" {
		stack = append(stack, csrf.Protect([]byte(key),
			csrf.Secure(config.GetStringOrDef("session.secure", "false") == "true"),
			csrf.Path("/"),
		))
	} else {
		logger.Info("csrf.key not configured, CSRF protection disabled")
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port",
			auth.NewHandler(sessions, client, logger),
			prefs.NewHandler(prefsService, logger),
			staff,
			customer,
		),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func duration(config *apt.Config, key string, def time.Duration, logger apt.Logger) time.Duration {
	raw := config.GetStringOrDef(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Error("invalid duration, using default", "key", key, "value", raw, "error", err)
		return def
	}
	return d
}
