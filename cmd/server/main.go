package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/infrastructure/auth"
	"github.com/frontdesk/backend/internal/infrastructure/billing"
	"github.com/frontdesk/backend/internal/infrastructure/cache"
	"github.com/frontdesk/backend/internal/infrastructure/config"
	"github.com/frontdesk/backend/internal/infrastructure/event"
	"github.com/frontdesk/backend/internal/infrastructure/logger"
	"github.com/frontdesk/backend/internal/infrastructure/messaging"
	"github.com/frontdesk/backend/internal/infrastructure/persistence"
	"github.com/frontdesk/backend/internal/interfaces/http/handler"
	"github.com/frontdesk/backend/internal/interfaces/http/middleware"
	"github.com/frontdesk/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database through the zap GORM bridge
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()

	// Idempotency store: Redis when reachable, in-memory otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("failed to create idempotency store", zap.Error(err))
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	ledgerRepo := persistence.NewGormUsageLedgerRepository(db.DB)
	eventRepo := persistence.NewGormUsageEventRepository(db.DB)
	alertRepo := persistence.NewGormUsageAlertRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)

	// Event bus with the billing audit trail subscriber
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(meteringapp.NewBillingEventAuditHandler(auditRepo, log))
	ctx := context.Background()
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}

	// Application services
	catalog := metering.NewPlanCatalog()
	ledgers := meteringapp.NewLedgerService(ledgerRepo, tenantRepo, catalog, log)
	gate := meteringapp.NewQuotaGate(ledgers, ledgerRepo, log)
	statusService := meteringapp.NewUsageStatusService(ledgers, log)
	overrideService := meteringapp.NewAdminOverrideService(ledgers, ledgerRepo, tenantRepo, auditRepo, log)
	ingestService := meteringapp.NewCallIngestService(
		ledgers, ledgerRepo, eventRepo, alertRepo, tenantRepo,
		idempotencyStore,
		messaging.NewLoggingAlertNotifier(log),
		log,
	)
	reminderService := meteringapp.NewReminderDispatchService(
		gate, ledgers, ledgerRepo, eventRepo, tenantRepo,
		newSMSSender(cfg, log),
		log,
	)
	webhookService := meteringapp.NewStripeWebhookService(meteringapp.StripeWebhookServiceConfig{
		Config:      newStripeConfig(cfg, log),
		TenantRepo:  tenantRepo,
		Ledgers:     ledgers,
		LedgerRepo:  ledgerRepo,
		Idempotency: idempotencyStore,
		EventBus:    eventBus,
		Logger:      log,
	})

	// Handlers
	systemHandler := handler.NewSystemHandler()
	voiceHandler := handler.NewVoiceWebhookHandler(ingestService, cfg.Voice.WebhookToken)
	stripeHandler := handler.NewStripeWebhookHandler(webhookService)
	usageHandler := handler.NewUsageHandler(statusService, eventRepo)
	adminHandler := handler.NewAdminUsageHandler(overrideService)
	reminderHandler := handler.NewReminderHandler(reminderService)

	jwtService := auth.NewJWTService(cfg.JWT)

	engine := setupEngine(cfg, db, jwtService, idempotencyStore, log)

	// Routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	webhooks := router.NewDomainGroup("webhooks", "/webhooks")
	webhooks.POST("/voice/call-ended", voiceHandler.HandleCallEnded)
	webhooks.POST("/stripe", stripeHandler.HandleStripeWebhook)

	usage := router.NewDomainGroup("usage", "/usage")
	usage.GET("/status", usageHandler.GetCurrentUsage)
	usage.GET("/events", usageHandler.GetUsageEvents)

	reminders := router.NewDomainGroup("reminders", "/reminders")
	reminders.POST("", reminderHandler.SendReminder)

	admin := router.NewDomainGroup("admin", "/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/tenants", adminHandler.ListTenants)
	admin.GET("/tenants/:id/usage", usageHandler.GetTenantUsageByAdmin)
	admin.POST("/tenants/:id/pause", adminHandler.ForcePause)
	admin.POST("/tenants/:id/resume", adminHandler.ForceResume)
	admin.POST("/tenants/:id/credit", adminHandler.GrantCredit)

	system := router.NewDomainGroup("system", "/system")
	system.GET("/info", systemHandler.GetSystemInfo)
	system.GET("/ping", systemHandler.Ping)

	r.Register(webhooks).
		Register(usage).
		Register(reminders).
		Register(admin).
		Register(system).
		Setup()

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("event bus shutdown failed", zap.Error(err))
	}

	log.Info("server stopped")
}

// setupEngine builds the gin engine with the shared middleware stack and the
// unauthenticated health endpoint. Routes registered after this pass through
// JWT auth and, when enabled, the per-tenant rate limiter.
func setupEngine(
	cfg *config.Config,
	db *persistence.Database,
	jwtService *auth.JWTService,
	idempotencyStore shared.IdempotencyStore,
	log *zap.Logger,
) *gin.Engine {
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health endpoint stays outside auth and rate limiting
	engine.GET("/health", healthHandler(db))

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	if cfg.HTTP.RateLimitEnabled {
		engine.Use(rateLimitMiddleware(cfg, idempotencyStore, log))
	}

	return engine
}

// rateLimitMiddleware prefers the Redis sliding-window limiter so the
// per-tenant limit holds across instances; without Redis it degrades to the
// in-process token bucket.
func rateLimitMiddleware(cfg *config.Config, store shared.IdempotencyStore, log *zap.Logger) gin.HandlerFunc {
	if redisStore, ok := store.(*cache.RedisIdempotencyStore); ok {
		limiter := cache.NewRedisRateLimiterWithClient(
			redisStore.GetClient(), "",
			cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow,
		)
		return middleware.RateLimitWithStore(limiter, middleware.TenantRateLimitKey, log)
	}

	log.Warn("Redis unavailable, using in-process rate limiter")
	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	return middleware.RateLimit(limiter)
}

// newSMSSender picks the provider adapter or the dry-run sender
func newSMSSender(cfg *config.Config, log *zap.Logger) meteringapp.SMSSender {
	if cfg.SMS.DryRun {
		log.Info("SMS dry run enabled, outbound messages will be logged only")
		return messaging.NewLoggingSMSSender(log)
	}

	sender, err := messaging.NewHTTPSMSSender(cfg.SMS, log)
	if err != nil {
		log.Fatal("failed to create SMS sender", zap.Error(err))
	}
	return sender
}

// newStripeConfig maps the app config onto the billing adapter config and
// initializes the Stripe client when a key is present
func newStripeConfig(cfg *config.Config, log *zap.Logger) *billing.StripeConfig {
	stripeCfg := &billing.StripeConfig{
		SecretKey:       cfg.Stripe.SecretKey,
		PublishableKey:  cfg.Stripe.PublishableKey,
		WebhookSecret:   cfg.Stripe.WebhookSecret,
		IsTestMode:      cfg.Stripe.IsTestMode,
		DefaultCurrency: cfg.Stripe.DefaultCurrency,
		PriceIDs:        cfg.Stripe.PriceIDs,
	}

	if stripeCfg.SecretKey == "" {
		log.Warn("Stripe secret key not configured, billing webhooks will be rejected")
		return stripeCfg
	}

	if err := stripeCfg.Validate(); err != nil {
		log.Fatal("invalid Stripe configuration", zap.Error(err))
	}
	stripeCfg.InitStripeClient()

	return stripeCfg
}

// healthHandler reports service and database liveness
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
				"time":     time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		body := gin.H{
			"status":   "healthy",
			"database": "ok",
			"time":     time.Now().UTC().Format(time.RFC3339),
		}
		if stats, err := db.Stats(); err == nil {
			body["db_pool"] = gin.H{
				"open":   stats.OpenConnections,
				"in_use": stats.InUse,
				"idle":   stats.Idle,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
