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

	"github.com/jtlacci/hip3-dashboard/internal/api"
	"github.com/jtlacci/hip3-dashboard/internal/config"
	"github.com/jtlacci/hip3-dashboard/internal/hyperliquid"
	"github.com/jtlacci/hip3-dashboard/internal/jobs"
	"github.com/jtlacci/hip3-dashboard/internal/listing"
	"github.com/jtlacci/hip3-dashboard/internal/log"
	"github.com/jtlacci/hip3-dashboard/internal/markets"
	"github.com/jtlacci/hip3-dashboard/internal/metrics"
	"github.com/jtlacci/hip3-dashboard/internal/store"
	"github.com/jtlacci/hip3-dashboard/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting HIP-3 markets dashboard API",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"api_url", cfg.Upstream.APIURL,
		"refresh_interval", cfg.Refresh.Interval,
	)

	metricsObj, metricsHandler, err := metrics.Setup("hip3-dashboard")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Listing-date cache: redis when configured, in-memory otherwise. This
	// is the only state carried across refresh cycles.
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()

	client := hyperliquid.NewClient(cfg.Upstream.APIURL, logger,
		hyperliquid.WithTimeout(cfg.Upstream.Timeout),
		hyperliquid.WithRetryBudget(cfg.Upstream.RetryBudget),
		hyperliquid.WithRetryBaseDelay(cfg.Upstream.RetryBaseDelay),
		hyperliquid.WithMetrics(metricsObj),
	)

	resolver := listing.NewResolver(client, cache, logger, cfg.Refresh.ResolverWorkers, cfg.Refresh.CandleGate)
	marketsSvc := markets.NewService(client, resolver, logger)

	wsHub := ws.NewHub(logger, metricsObj)
	refresher := jobs.NewRefresher(marketsSvc, wsHub, logger, metricsObj, cfg.Refresh.Interval)

	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	go wsHub.Run(jobCtx)
	go func() {
		if err := refresher.Run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Refresher error", "error", err)
		}
	}()

	handler := api.NewHandler(refresher, cache, cfg, logger, metricsObj, wsHub)
	mw := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(mw, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	router.Handle("/metrics", metricsHandler)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		jobCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
