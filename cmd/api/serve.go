package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	_ "retailops/api/swagger" // swagger docs
	"retailops/internal/cache"
	"retailops/internal/config"
	"retailops/internal/database"
	"retailops/internal/events"
	"retailops/internal/handler"
	"retailops/internal/middleware"
	"retailops/internal/repository"
	"retailops/internal/review"
	"retailops/internal/service"
	"retailops/internal/websocket"

	"github.com/benbjohnson/clock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Renderers report their real width on connect; sessions start in the desktop layout.
const defaultViewportWidth = 1280

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func newCache(cfg *config.Config, log *zap.SugaredLogger) (cache.Cache, func()) {
	if cfg.Redis.Addr == "" {
		log.Infow("redis disabled, analytics responses are not cached")
		return cache.Noop{}, func() {}
	}
	rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, log)
	if err != nil {
		log.Warnw("redis unavailable, analytics responses are not cached", "error", err)
		return cache.Noop{}, func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func serve(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg, log)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer closeDB(db, log)
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	kpiCache, closeCache := newCache(cfg, log)
	defer closeCache()

	bus := events.NewEventBus(log)
	clk := clock.New()
	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)
	accountRepo := repository.NewAccountRequestRepository(db)
	inventoryRepo := repository.NewInventoryRequestRepository(db)
	productRepo := repository.NewProductRepository(db)
	invTxRepo := repository.NewInventoryTxRepository(db)
	saleRepo := repository.NewSaleRepository(db)

	accountService := service.NewAccountService(accountRepo, auditRepo, txManager, bus, log)
	requestService := service.NewInventoryRequestService(inventoryRepo, productRepo, invTxRepo, auditRepo, txManager, bus, log)
	salesService := service.NewSalesService(saleRepo, productRepo, invTxRepo, auditRepo, txManager, bus, log)
	validityService := service.NewValidityService(productRepo, bus, clk, log)
	inventoryService := service.NewInventoryService(productRepo, invTxRepo)
	analyticsService := service.NewAnalyticsService(repository.NewAnalyticsRepository(db), saleRepo, accountRepo, inventoryRepo, kpiCache, log)
	auditService := service.NewAuditService(auditRepo)

	subscribeBackground(bus, analyticsService, validityService, log)

	hub := websocket.NewHub(websocket.Options{
		Session: review.SessionConfig{
			PageSize:      cfg.Review.ItemsPerPage,
			SalesPerPage:  cfg.Review.SalesPerPage,
			Washout:       cfg.Review.Washout,
			ScrollDelay:   cfg.Review.ScrollDelay,
			Breakpoint:    cfg.Review.MobileBreakpoint,
			ViewportWidth: defaultViewportWidth,
		},
		Debounce:       cfg.Dashboard.Debounce,
		Window:         cfg.Dashboard.Window,
		AllowedOrigins: cfg.Server.Origins(),
		AllowedRoles:   []string{middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleManager},
	}, websocket.Deps{
		Backend: service.NewReviewBridge(accountService, requestService, salesService, service.DefaultReviewWindow),
		Fetcher: service.ChartsFetcher(analyticsService),
		Auth:    auth,
		Clock:   clk,
		Logger:  log,
	})
	hub.Subscribe(bus)
	go hub.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.Origins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.HeaderRequestID}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", hub.ServeWs)

	api := router.Group("")
	handler.NewAccountHandler(accountService, auth).RegisterRoutes(api)
	handler.NewInventoryRequestHandler(requestService, auth).RegisterRoutes(api)
	handler.NewSalesHandler(salesService, auth).RegisterRoutes(api)
	handler.NewValidityHandler(validityService, auth).RegisterRoutes(api)
	handler.NewInventoryHandler(inventoryService, auth).RegisterRoutes(api)
	handler.NewAnalyticsHandler(analyticsService, auth, clk).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)
	handler.NewDirectiveHandler(bus, auth, clk).RegisterRoutes(api)

	server := &http.Server{
		Addr:    cfg.ServerAddr(),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server listening", "addr", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}
	bus.Wait()
	log.Infow("server stopped")
	return nil
}

// subscribeBackground keeps cached KPIs and validity summaries in step with writes.
func subscribeBackground(bus *events.EventBus, analytics service.AnalyticsService, validity service.ValidityService, log *zap.SugaredLogger) {
	invalidate := func(ctx context.Context, _ events.Event) error {
		return analytics.InvalidateKPIs(ctx)
	}
	bus.Subscribe(events.TopicSaleRecorded, invalidate)
	bus.Subscribe(events.TopicRequestCreated, invalidate)
	bus.Subscribe(events.TopicRequestDecided, invalidate)

	bus.Subscribe(events.TopicSaleRecorded, func(ctx context.Context, e events.Event) error {
		ev, ok := e.Payload().(events.SaleEvent)
		if !ok {
			return fmt.Errorf("unexpected sale payload %T", e.Payload())
		}
		return validity.Recheck(ctx, ev.Branch)
	})
	bus.Subscribe(events.TopicRequestDecided, func(ctx context.Context, e events.Event) error {
		ev, ok := e.Payload().(events.RequestEvent)
		if !ok || ev.Kind != review.KindInventory {
			return nil
		}
		log.Debugw("rechecking validity after inventory decision", "request", ev.ID, "branch", ev.Branch)
		return validity.Recheck(ctx, ev.Branch)
	})
}

func closeDB(db *gorm.DB, log *zap.SugaredLogger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorw("database close error", "error", err)
	}
}
