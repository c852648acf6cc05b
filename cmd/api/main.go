package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"farmmarket/internal/config"
	"farmmarket/internal/database"
	"farmmarket/internal/logger"
	"farmmarket/internal/messaging"
	"farmmarket/internal/messaging/kafka"
	"farmmarket/internal/server"

	"go.uber.org/zap"
)

func gracefulShutdown(ctx context.Context, stop context.CancelFunc, apiServer *server.Server, broker kafka.Broker, logger *zap.Logger, done chan bool) {
	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Pending notifications still publish through the broker, so close it last
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			logger.Error("Error closing kafka writers", zap.Error(err))
		}
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting farm marketplace API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	// Run migrations
	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		if err := database.GetMigrationStatus(dbService.DB()); err != nil {
			log.Warn("Could not read migration status", zap.Error(err))
		}
	}

	var (
		broker    kafka.Broker
		publisher messaging.Publisher
	)
	if cfg.Kafka.Enabled {
		broker = kafka.NewKafkaBroker(cfg.Kafka.Brokers, log)
		publisher = broker
		log.Info("Kafka enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Create server
	srv := server.NewServer(cfg, log, dbService, publisher)

	if broker != nil {
		srv.StartConsumers(ctx, broker)
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(ctx, stop, srv, broker, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
