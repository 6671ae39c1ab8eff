// cmd/fulfillment-server/main.go
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

	"go.uber.org/zap"

	"purchase-fulfillment/internal/common/alerts"
	"purchase-fulfillment/internal/common/auth"
	"purchase-fulfillment/internal/common/aws"
	"purchase-fulfillment/internal/common/camunda"
	"purchase-fulfillment/internal/common/config"
	"purchase-fulfillment/internal/common/database"
	"purchase-fulfillment/internal/common/dispatch"
	"purchase-fulfillment/internal/common/gateway"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/meta"
	"purchase-fulfillment/internal/common/observability"
	"purchase-fulfillment/internal/common/shopify"
	"purchase-fulfillment/internal/common/zoho"
	"purchase-fulfillment/internal/models"
	"purchase-fulfillment/internal/server"

	ga "purchase-fulfillment/internal/pipeline/access/grant-access"
	cp "purchase-fulfillment/internal/pipeline/fulfillment/coordinate-purchase"
	ri "purchase-fulfillment/internal/pipeline/identity/resolve-identity"
	ac "purchase-fulfillment/internal/pipeline/integrations/ad-conversion"
	at "purchase-fulfillment/internal/pipeline/integrations/automation-trigger"
	cs "purchase-fulfillment/internal/pipeline/integrations/crm-sync"
	fa "purchase-fulfillment/internal/pipeline/integrations/funnel-attribution"
	osync "purchase-fulfillment/internal/pipeline/integrations/order-sync"
	re "purchase-fulfillment/internal/pipeline/webhook/route-event"
	ve "purchase-fulfillment/internal/pipeline/webhook/verify-event"
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

// storage is the account store and product catalog the grant runs against.
type storage struct {
	store   ga.AccountStore
	catalog ga.ProductCatalog
	checks  map[string]server.Check
	close   func()
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

	zapLog.Info("Starting fulfillment server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storeDriver", cfg.Database.Driver),
		zap.String("automationDriver", cfg.Automation.Driver),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Storage ---
	st := initStorage(ctx, cfg, zapLog, log)
	defer st.close()

	// --- Background dispatcher ---
	dispatcher := dispatch.New(dispatch.Config{
		Workers:     cfg.Fulfillment.Dispatcher.Workers,
		QueueSize:   cfg.Fulfillment.Dispatcher.QueueSize,
		TaskTimeout: config.GetDuration(cfg.Fulfillment.Dispatcher.Timeout),
	}, log)

	// --- Pipeline steps ---
	verifier, err := ve.NewVerifier(&ve.Config{
		WebhookSecret:            cfg.Stripe.WebhookSecret,
		IgnoreAPIVersionMismatch: cfg.Stripe.IgnoreAPIVersionMismatch,
		Tolerance:                ve.DefaultConfig().Tolerance,
	})
	if err != nil {
		zapLog.Fatal("verifier init failed", zap.Error(err))
	}

	router, err := re.NewRouter(&re.Config{
		ProductDiscriminator: cfg.Fulfillment.ProductDiscriminator,
		DefaultSource:        models.PurchaseSource(cfg.Fulfillment.DefaultSource),
	})
	if err != nil {
		zapLog.Fatal("router init failed", zap.Error(err))
	}

	var paymentGateway ri.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		paymentGateway = gateway.NewStripeGateway(cfg.Stripe.SecretKey)
	} else {
		zapLog.Warn("stripe.secret_key not set, identity chain limited to event data")
	}
	resolver, err := ri.NewResolver(&ri.Config{PlaceholderEmails: cfg.Fulfillment.PlaceholderEmails}, paymentGateway, log)
	if err != nil {
		zapLog.Fatal("resolver init failed", zap.Error(err))
	}

	var identities ga.IdentityProvider
	if cfg.Identity.Keycloak.Enabled {
		identities = ga.NewKeycloakIdentities(auth.NewKeycloakClient(
			cfg.Identity.Keycloak.URL,
			cfg.Identity.Keycloak.Realm,
			cfg.Identity.Keycloak.ClientID,
			cfg.Identity.Keycloak.ClientSecret,
		))
	}

	granter, err := ga.NewService(ga.ServiceDependencies{
		Store:      st.store,
		Catalog:    st.catalog,
		Identities: identities,
		Logger:     log,
	}, &ga.Config{
		PrimaryProductSlug: cfg.Fulfillment.PrimaryProductSlug,
		BumpProductSlug:    cfg.Fulfillment.BumpProductSlug,
		ProductCacheTTL:    time.Duration(cfg.Database.Redis.ProductCacheTTL) * time.Second,
	})
	if err != nil {
		zapLog.Fatal("grant service init failed", zap.Error(err))
	}

	// --- Attribution tracker (critical path, runs first) ---
	var tracker cp.AttributionTracker
	if cfg.Database.Elasticsearch.GetURL() != "" && config.IsStepEnabled(cfg, models.IntegrationAttribution) {
		tracker = initTracker(ctx, cfg, zapLog, log, st)
	}

	// --- Best-effort integrations ---
	integrations, closeIntegrations := initIntegrations(ctx, cfg, zapLog, log, dispatcher)
	defer closeIntegrations()

	// --- Missing identity alerts ---
	var alerter cp.AlertNotifier
	if cfg.Alerts.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		alerter = alerts.NewAlerter(ses, cfg.Alerts.SES.FromEmail, cfg.Alerts.SES.ToEmails)
	}

	timeouts := make(map[string]time.Duration, len(integrations))
	for _, in := range integrations {
		timeouts[in.Name()] = config.GetDuration(config.GetStepConfig(cfg, in.Name()).Timeout)
	}

	coordinator, err := cp.NewCoordinator(cp.Dependencies{
		Verifier:     verifier,
		Router:       router,
		Resolver:     resolver,
		Granter:      granter,
		Tracker:      tracker,
		Integrations: integrations,
		Alerts:       alerter,
		Submitter:    dispatcher,
		Obs:          obs,
		Logger:       log,
	}, &cp.Config{
		IdentityTimeout:           config.GetDuration(config.GetStepConfig(cfg, ri.StepName).Timeout),
		AttributionTimeout:        config.GetDuration(cfg.Fulfillment.AttributionTimeout),
		GrantTimeout:              config.GetDuration(cfg.Fulfillment.GrantTimeout),
		DefaultIntegrationTimeout: config.GetDuration(config.GetStepConfig(cfg, "default").Timeout),
		IntegrationTimeouts:       timeouts,
		RetryOnGrantFailure:       cfg.Fulfillment.RetryOnGrantFailure,
		ParallelFanOut:            true,
	})
	if err != nil {
		zapLog.Fatal("coordinator init failed", zap.Error(err))
	}
	zapLog.Info("Fulfillment pipeline assembled", zap.Int("integrations", len(integrations)))

	// --- HTTP server ---
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.New(server.Options{
			Handler:      coordinator,
			Checks:       st.checks,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Logger:       log,
		}).Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		zapLog.Error("Background tasks not drained", zap.Error(err))
	}

	zapLog.Info("Fulfillment server stopped gracefully")
}

func initStorage(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) *storage {
	if cfg.Database.Driver == "memory" {
		zapLog.Warn("Using in-memory account store, data is lost on restart")
		mem := ga.NewMemoryStore(
			&models.Product{ID: "local-primary", Slug: cfg.Fulfillment.PrimaryProductSlug, Name: osync.DefaultConfig().PrimaryTitle},
			&models.Product{ID: "local-bump", Slug: cfg.Fulfillment.BumpProductSlug, Name: osync.DefaultConfig().BumpTitle},
		)
		return &storage{store: mem, catalog: mem, checks: map[string]server.Check{}, close: func() {}}
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
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
	zapLog.Info("PostgreSQL connected successfully")

	store := ga.NewPostgresStore(pg.DB)
	if cfg.Database.Postgres.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		rdb = database.NewRedis(cfg.Database.Redis)
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	catalog := ga.NewCachedCatalog(store, rdb.Client, time.Duration(cfg.Database.Redis.ProductCacheTTL)*time.Second, log)

	return &storage{
		store:   store,
		catalog: catalog,
		checks: map[string]server.Check{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
		},
		close: func() {
			_ = rdb.Close()
			_ = pg.Close()
		},
	}
}

func initTracker(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger, st *storage) cp.AttributionTracker {
	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
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
	zapLog.Info("Elasticsearch connected successfully")

	tracker := fa.NewTracker(esClient.Client, &fa.Config{Index: cfg.Database.Elasticsearch.AttributionIndex}, log)
	if err := tracker.EnsureIndex(ctx); err != nil {
		zapLog.Fatal("attribution index setup failed", zap.Error(err))
	}
	st.checks["elasticsearch"] = esClient.Ping
	return tracker
}

func initIntegrations(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger, dispatcher *dispatch.Dispatcher) ([]cp.Integration, func()) {
	var integrations []cp.Integration
	closers := []func(){}
	f := cfg.Fulfillment

	if config.IsStepEnabled(cfg, models.IntegrationCRM) {
		step := config.GetStepConfig(cfg, models.IntegrationCRM)
		crm := zoho.NewCRMClient(cfg.Integrations.Zoho.BaseURL, cfg.Integrations.Zoho.AuthToken, config.GetDuration(step.Timeout))
		integrations = append(integrations, cs.NewService(crm, &cs.Config{
			PrimarySegment: f.PrimarySegment,
			BumpSegment:    f.BumpSegment,
			LeadSource:     cs.DefaultConfig().LeadSource,
		}, log))
	}

	if config.IsStepEnabled(cfg, models.IntegrationAds) {
		step := config.GetStepConfig(cfg, models.IntegrationAds)
		m := cfg.Integrations.Meta
		sender := meta.NewConversionsClient(m.BaseURL, m.APIVersion, m.PixelID, m.AccessToken, m.TestEventCode, config.GetDuration(step.Timeout))
		adCfg := ac.DefaultConfig()
		adCfg.PrimaryContentID = f.PrimaryProductSlug
		adCfg.BumpContentID = f.BumpProductSlug
		integrations = append(integrations, ac.NewService(sender, adCfg, log))
	}

	if config.IsStepEnabled(cfg, models.IntegrationOrders) {
		step := config.GetStepConfig(cfg, models.IntegrationOrders)
		s := cfg.Integrations.Shopify
		orders := shopify.NewAdminClient(s.BaseURL, s.APIVersion, s.AccessToken, config.GetDuration(step.Timeout))
		orderCfg := osync.DefaultConfig()
		orderCfg.PrimarySKU = f.PrimaryProductSlug
		orderCfg.BumpSKU = f.BumpProductSlug
		orderCfg.BumpPriceMinorUnits = f.BumpPriceMinorUnits
		orderCfg.Tags = f.OrderTags
		integrations = append(integrations, osync.NewService(orders, orderCfg, log))
	}

	if config.IsStepEnabled(cfg, models.IntegrationAutomation) {
		var zeebe at.MessagePublisher
		var topics at.JSONPublisher

		switch cfg.Automation.Driver {
		case at.DriverCamunda:
			var client *camunda.Client
			err := retryWithBackoff(func() error {
				var err error
				client, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
					GatewayAddress:         cfg.Automation.Camunda.GatewayAddress,
					UsePlaintextConnection: cfg.Automation.Camunda.UsePlaintextConnection,
				})
				return err
			}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
			if err != nil {
				zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
			}
			zapLog.Info("Zeebe client connected successfully")
			zeebe = client
			closers = append(closers, func() { _ = client.Close() })
		case at.DriverSNS:
			sns, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client init failed", zap.Error(err))
			}
			topics = sns
		}

		engine, err := at.NewEngine(&at.Config{
			Driver:     cfg.Automation.Driver,
			MessageTTL: config.GetDuration(cfg.Automation.Camunda.MessageTTL),
			TopicARN:   cfg.Automation.SNS.TopicARN,
		}, zeebe, topics)
		if err != nil {
			zapLog.Fatal("automation engine init failed", zap.Error(err))
		}
		if engine != nil {
			integrations = append(integrations, at.NewTrigger(engine, dispatcher, log))
		}
	}

	return integrations, func() {
		for _, c := range closers {
			c()
		}
	}
}
