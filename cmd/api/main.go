package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leafsii/rediskit/internal/api"
	"github.com/leafsii/rediskit/internal/config"
	"github.com/leafsii/rediskit/internal/log"
	"github.com/leafsii/rediskit/internal/metrics"
	"github.com/leafsii/rediskit/pkg/rediskit"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting rediskit API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"backend", cfg.Redis.Backend,
		"default_db", cfg.DefaultDB().Name(),
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("rediskit-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Connect the facade; lifetimes are validated before any connection is made
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Connection().ConnectTimeout+time.Second)
	client, err := rediskit.New(ctx, rediskit.Options{
		Conn:      cfg.Connection(),
		Lifetimes: cfg.Lifetimes(),
		DefaultDB: cfg.DefaultDB(),
		Logger:    logger,
		Recorder:  metricsObj,
	})
	cancel()
	if err != nil {
		logger.Fatalw("Failed to initialize store client", "error", err)
	}
	defer client.Close()
	logger.Infow("Store client initialized", "lifetimes", len(client.Lifetimes()))

	// Setup API handler and middleware
	handler := api.NewHandler(client, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
