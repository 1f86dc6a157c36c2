// Package main provides the main entry point for the campaign hub service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/campaign-hub/app/handlers"
	"github.com/amirphl/campaign-hub/app/router"
	"github.com/amirphl/campaign-hub/app/scheduler"
	"github.com/amirphl/campaign-hub/app/services"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title Campaign Hub API
// @version 1.0
// @description Multichannel dispatch scheduling, short links and landing page engagement.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting campaign hub...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Workers stop in reverse start order so the poll loop drains before its dependencies close.
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger(cfg, logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// newGormLogger reports queries slower than SlowQueryTime; debug level logs every statement.
func newGormLogger(cfg config.DatabaseConfig, logLevel string) gormlogger.Interface {
	if !cfg.SlowQueryLog && logLevel != "debug" {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	level := gormlogger.Warn
	if logLevel == "debug" {
		level = gormlogger.Info
	}
	return gormlogger.New(log.New(os.Stdout, "gorm ", log.LstdFlags|log.LUTC), gormlogger.Config{
		SlowThreshold:             cfg.SlowQueryTime,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// initializeCache returns nil when Redis is disabled
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeGateway picks the channel gateway named by GATEWAY_PROVIDER
func initializeGateway(cfg config.GatewayConfig) services.ChannelGateway {
	switch cfg.Provider {
	case "http":
		log.Printf("Channel gateway: http (%s)", cfg.BaseURL)
		return services.NewHTTPChannelGateway(cfg)
	default:
		log.Println("Channel gateway: mock")
		return services.NewMockChannelGateway()
	}
}

func initializeNotifier(cfg config.WebhookConfig) services.OutcomeNotifier {
	if cfg.URL == "" {
		return services.NewLogNotifier()
	}
	return services.NewWebhookNotifier(cfg)
}

// initializeApplication wires repositories, services, flows and handlers. Every
// dependency is constructed here and passed down explicitly.
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
	}

	// Repositories
	shortLinkRepo := repository.NewShortLinkRepository(db)
	metricRepo := repository.NewCampaignMetricRepository(db)
	pageViewRepo := repository.NewPageViewEventRepository(db)
	hubRepo := repository.NewHubContentRepository(db)
	blogRepo := repository.NewBlogPostRepository(db)
	dispatchRepo := repository.NewDispatchRepository(db)
	auditRepo := repository.NewDispatchAuditLogRepository(db)
	jobRepo := repository.NewDeliveryStatusJobRepository(db)
	mediaHandleRepo := repository.NewMediaHandleRepository(db)
	assetRepo := repository.NewMultimediaAssetRepository(db)

	// Services
	var publisher services.EngagementPublisher
	if cfg.NATS.Enabled {
		conn, js, err := services.ConnectNATS(cfg.NATS)
		if err != nil {
			return nil, err
		}
		publisher = services.NewNATSEngagementPublisher(js, cfg.NATS.Subject)
		stopFuncs = append(stopFuncs, func() { _ = conn.Drain() })
		log.Printf("Engagement events published to %s", cfg.NATS.Subject)
	}

	var visitors services.VisitorTracker
	if rc != nil {
		visitors = services.NewRedisVisitorTracker(rc, cfg.Cache.RedisPrefix, cfg.Cache.VisitorTTL)
	}

	codeIndex := services.NewBloomShortCodeIndex(cfg.ShortLink.BloomCapacity, cfg.ShortLink.BloomFalsePosRate)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), time.Minute)
	n, err := codeIndex.Warm(warmCtx, shortLinkRepo)
	warmCancel()
	if err != nil {
		// An unwarmed index only costs extra lookups on create.
		log.Printf("Short code index warm-up incomplete after %d codes: %v", n, err)
	} else {
		log.Printf("Short code index warmed with %d codes", n)
	}

	gateway := initializeGateway(cfg.Gateway)
	mediaResolver := services.NewMediaResolver(gateway, mediaHandleRepo, assetRepo, rc, cfg.Media, cfg.Cache.RedisPrefix)
	notifier := initializeNotifier(cfg.Webhook)

	// Flows
	shortLinkFlow := businessflow.NewShortLinkFlow(shortLinkRepo, codeIndex, publisher, nil, cfg.ShortLink)
	engagementFlow := businessflow.NewEngagementFlow(metricRepo, pageViewRepo, visitors, publisher, db)
	hubFlow := businessflow.NewHubContentFlow(hubRepo)
	reconcilerFlow := businessflow.NewStatusReconcilerFlow(hubRepo, blogRepo, db)
	batchingFlow := businessflow.NewDispatchBatchingFlow(dispatchRepo, hubRepo, auditRepo, db)
	dispatchFlow := businessflow.NewDispatchFlow(dispatchRepo, auditRepo, db)
	mediaFlow := businessflow.NewMediaAssetFlow(assetRepo, cfg.Media)

	dispatchScheduler := scheduler.NewDispatchScheduler(
		dispatchRepo,
		auditRepo,
		jobRepo,
		gateway,
		mediaResolver,
		reconcilerFlow,
		notifier,
		db,
		cfg.Scheduler,
	)

	if cfg.Scheduler.Enabled {
		stopFuncs = append(stopFuncs, dispatchScheduler.Start(context.Background()))

		deliveryReconciler := scheduler.NewDeliveryReconciler(
			dispatchRepo,
			auditRepo,
			jobRepo,
			gateway,
			reconcilerFlow,
			notifier,
			db,
			cfg.Scheduler,
		)
		stopReconciler, err := deliveryReconciler.Start(context.Background())
		if err != nil {
			return nil, err
		}
		stopFuncs = append(stopFuncs, stopReconciler)
		log.Printf("Dispatch scheduler started (poll every %s, reconcile %s)", cfg.Scheduler.PollInterval, cfg.Scheduler.ReconcileCron)
	}

	appRouter := router.NewFiberRouter(router.Handlers{
		ShortLink:  handlers.NewShortLinkHandler(shortLinkFlow),
		Engagement: handlers.NewEngagementHandler(engagementFlow),
		HubContent: handlers.NewHubContentHandler(hubFlow, reconcilerFlow),
		Dispatch:   handlers.NewDispatchHandler(batchingFlow, dispatchFlow, dispatchScheduler),
		Media:      handlers.NewMediaAssetHandler(mediaFlow),
	}, cfg)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
