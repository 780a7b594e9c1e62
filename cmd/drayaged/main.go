package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"drayage-billing-backend/config"
	"drayage-billing-backend/internal/api"
	"drayage-billing-backend/internal/billing"
	"drayage-billing-backend/internal/db"
	"drayage-billing-backend/internal/engine"
	"drayage-billing-backend/internal/ledger"
	"drayage-billing-backend/internal/notification"
	"drayage-billing-backend/internal/rates"
	"drayage-billing-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "drayage-billing ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	milestoneLedger := ledger.New(appStore)
	resolver := rates.NewResolver(appStore, 5*time.Minute)
	assembler := billing.NewAssembler(appStore, resolver, &cfg.Billing)

	// Alert delivery is optional; the engine accrues and fires alerts either
	// way, collaborators can still read them from the store.
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	} else {
		logger.Println("VAPID keys not configured; push delivery of fired alerts is disabled")
	}

	billingEngine := engine.New(cfg, appStore, resolver, pool)
	go billingEngine.Run(ctx)

	handler := api.NewHandler(cfg, appStore, milestoneLedger, billingEngine, resolver, assembler, &webpushOptions)
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
