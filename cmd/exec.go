package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"eventhub/config"
	"eventhub/internal/handlers"
	"eventhub/internal/notify"
	"eventhub/internal/services"
	"eventhub/internal/store"
	_ "eventhub/migrations"
	"eventhub/monitoring"
	"eventhub/security"
	"eventhub/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	backend, err := openStore(app, cfg)
	if err != nil {
		return err
	}

	// Redis is optional; without it idempotency keys live in process memory
	// and rate limiting is off.
	var (
		redisClient *redis.Client
		idempotency services.IdempotencyStore = store.NewMemoryIdempotency()
		limiter     *security.RateLimiter
	)
	if cfg.RedisURL != "" {
		redisClient, err = utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		idempotency = store.NewRedisIdempotency(redisClient)
		limiter = security.NewRateLimiter(redisClient)
	}

	var notifier services.Notifier = notify.Log{}
	if cfg.PubNubPublishKey != "" {
		pn, err := notify.NewPubNub(notify.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
		if err != nil {
			return err
		}
		notifier = pn
	}

	// Initialize services
	catalog := services.NewCatalog(backend, backend)
	carts := services.NewCartStore(catalog, cfg.MaxPerPurchase)
	pipeline := services.NewPurchasePipeline(catalog, carts, backend, backend, backend, idempotency, notifier,
		services.PipelineConfig{
			DefaultFeePercent:    cfg.DefaultOrganizerFeePercent,
			IdempotencyLockTTL:   cfg.IdempotencyLockTTL,
			IdempotencyResultTTL: cfg.IdempotencyResultTTL,
		})
	ledger := services.NewRevenueLedger(backend, backend)
	payouts := services.NewPayoutWorkflow(ledger, backend, backend, notifier, services.PayoutFees{
		Percent: cfg.PayoutFeePercent,
		Flat:    cfg.PayoutFlatFee,
	})

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalog, pipeline)
	cartHandler := handlers.NewCartHandler(carts)
	checkoutHandler := handlers.NewCheckoutHandler(pipeline)
	revenueHandler := handlers.NewRevenueHandler(ledger)
	payoutHandler := handlers.NewPayoutHandler(payouts, ledger)
	adminHandler := handlers.NewAdminHandler(payouts)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background tasks
	go carts.RunSweeper(ctx, cfg.CleanupInterval, cfg.CartIdleTTL)
	if cfg.EnableMetrics {
		go func() {
			if err := monitoring.Serve(ctx, ":"+cfg.MetricsPort); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		api := se.Router.Group("/api/v1")
		if limiter != nil {
			api.BindFunc(limiter.AntiBot())
		}

		// Events and ticket types
		api.POST("/events", catalogHandler.CreateEvent)
		api.GET("/events/{eventId}", catalogHandler.GetEvent)
		api.POST("/events/{eventId}/publish", catalogHandler.PublishEvent)
		api.POST("/events/{eventId}/complete", catalogHandler.CompleteEvent)
		api.GET("/events/{eventId}/ticket-types", catalogHandler.ListTicketTypes)
		api.POST("/events/{eventId}/ticket-types", catalogHandler.CreateTicketType)
		api.GET("/ticket-types/{id}/availability", catalogHandler.Availability)

		// Cart
		api.GET("/cart", cartHandler.GetCart)
		api.POST("/cart/items", cartHandler.AddItem)
		api.PATCH("/cart/items/{itemId}", cartHandler.UpdateItem)
		api.DELETE("/cart/items/{itemId}", cartHandler.RemoveItem)
		api.DELETE("/cart", cartHandler.Clear)

		// Checkout and tickets
		checkout := api.POST("/checkout", checkoutHandler.Checkout)
		if limiter != nil {
			checkout.BindFunc(limiter.CheckoutRateLimit(cfg.CheckoutRateLimit, cfg.RateLimitWindow))
		}
		api.GET("/tickets", checkoutHandler.ListTickets)
		api.POST("/tickets/{id}/refund", checkoutHandler.Refund)

		// Revenue and payouts
		api.GET("/revenue", revenueHandler.Summary)
		api.GET("/revenue/events", revenueHandler.ByEvent)
		api.POST("/payouts/requests", payoutHandler.SubmitRequest)
		api.GET("/payouts/requests", payoutHandler.ListRequests)
		api.GET("/payouts", payoutHandler.ListPayouts)
		api.GET("/payouts/balance", payoutHandler.Balance)

		// Admin endpoints
		api.POST("/admin/payouts/requests/{id}/approve", adminHandler.ApproveRequest)
		api.POST("/admin/payouts/requests/{id}/reject", adminHandler.RejectRequest)
		api.POST("/admin/payouts/{id}/processed", adminHandler.MarkProcessed)
		api.POST("/admin/payouts/{id}/failed", adminHandler.MarkFailed)
		api.POST("/admin/events/{eventId}/complete", catalogHandler.CompleteEvent)

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
					return e.JSON(http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(http.StatusOK, map[string]string{
				"status": "healthy",
				"store":  cfg.StoreDriver,
			})
		})

		slog.Info("server routes registered", "store", cfg.StoreDriver)
		return se.Next()
	})

	// Default to serving on the configured port when started without a command.
	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http=0.0.0.0:" + cfg.Port})
	}

	return app.Start()
}

func openStore(app *pocketbase.PocketBase, cfg *config.Config) (services.Store, error) {
	switch cfg.StoreDriver {
	case "pocketbase", "":
		return store.NewPocketBase(app), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		return store.OpenPostgres(cfg.DatabaseURL)
	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, stopping background tasks")
	cancel()
}
