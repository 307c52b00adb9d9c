package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trade-go/internal/auth"
	"paper-trade-go/internal/config"
	"paper-trade-go/internal/database"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/logger"
	"paper-trade-go/internal/portfolio"
	"paper-trade-go/internal/quotes"
	"paper-trade-go/internal/server"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		log.Fatal("Invalid starting cash in config", zap.String("value", cfg.Trading.StartingCash), zap.Error(err))
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")
	store := ledger.NewStore(db)

	// Initialize the quote provider, with an optional Redis cache in front.
	var quoteService quotes.Service = quotes.NewClient(&cfg.Quotes, log)
	if cfg.Quotes.RedisAddr != "" {
		cache, err := quotes.NewRedisCache(cfg.Quotes.RedisAddr)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		ttl := time.Duration(cfg.Quotes.CacheTTL) * time.Second
		quoteService = quotes.NewCachedService(quoteService, cache, ttl, log)
		log.Info("Quote cache enabled", zap.String("redis_addr", cfg.Quotes.RedisAddr), zap.Duration("ttl", ttl))
	}

	engine := portfolio.NewEngine(log, store, quoteService)
	tokens := auth.NewTokens(cfg.Auth.JwtSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)

	srv := server.New(log, store, engine, tokens, startingCash)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	go func() {
		log.Info("Starting web server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}
