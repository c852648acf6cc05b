package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"farmmarket/internal/config"
	"farmmarket/internal/database"
	"farmmarket/internal/domain"
	"farmmarket/internal/messaging"
	custommiddleware "farmmarket/internal/middleware"
	"farmmarket/internal/notification"
	"farmmarket/internal/repository"
	"farmmarket/internal/service"
	"farmmarket/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config     *config.Config
	logger     *zap.Logger
	db         database.Service
	redis      *redis.Client
	dispatcher *notification.Dispatcher

	// Orders is exposed so payment and fulfillment consumers drive the same service as the API
	Orders service.OrderService
}

// NewServer wires repositories, services and handlers. With a nil publisher notifications are only logged.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, publisher messaging.Publisher) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// Initialize repositories
	store := repository.NewStore(db.DB(), database.TxConfig{
		MaxAttempts: cfg.Database.TxMaxAttempts,
		Timeout:     cfg.Database.TxTimeout,
	})

	// Notifications go to the broker when one is configured
	var sender notification.Sender = notification.LogSender{Logger: logger}
	if publisher != nil {
		sender = messaging.NewEmailSender(publisher, cfg.Kafka.NotificationTopic, cfg.Notifications.From)
	}
	dispatcher := notification.NewDispatcher(sender, store, cfg.Notifications.Timeout, logger)

	// Initialize services
	policy := domain.LifecyclePolicy{
		CancelWindow: cfg.Orders.CancelWindow,
		ReturnWindow: cfg.Orders.ReturnWindow,
	}
	cartService := service.NewCartService(store, time.Now, logger)
	orderService := service.NewOrderService(store, policy, dispatcher, time.Now, logger)
	catalogService := service.NewCatalogService(store, time.Now, logger)

	// Initialize handlers
	cartHandler := transport.NewCartHandler(cartService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)
	adminHandler := transport.NewAdminHandler(cartService, orderService, logger)

	// Owner resolution runs before the limiter so accounts are limited per account
	ownerMiddleware := custommiddleware.OwnerMiddleware(cfg.JWT.Secret, logger)
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:buyer",
		}, logger)
		resolveOwner := ownerMiddleware
		ownerMiddleware = func(next http.Handler) http.Handler {
			return resolveOwner(limiter(next))
		}
	}

	authenticate := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminOnly := []func(http.Handler) http.Handler{
		authenticate,
		custommiddleware.RequireAdmin(logger),
	}

	// Register routes
	cartHandler.RegisterRoutes(router, ownerMiddleware)
	orderHandler.RegisterRoutes(router, ownerMiddleware)
	catalogHandler.RegisterRoutes(router, authenticate)
	adminHandler.RegisterRoutes(router, adminOnly...)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		dispatcher: dispatcher,
		Orders:     orderService,
	}

	return server
}

// Close waits for in-flight notifications and releases the pools. Call it after Shutdown.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	done := make(chan struct{})
	go func() {
		s.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.config.Notifications.Timeout + time.Second):
		s.logger.Warn("Gave up waiting for pending notifications")
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}

// StartConsumers applies payment and fulfillment events to orders until ctx is cancelled
func (s *Server) StartConsumers(ctx context.Context, subscriber messaging.Subscriber) {
	kafkaCfg := s.config.Kafka
	go subscriber.Consume(ctx, kafkaCfg.PaymentTopic, kafkaCfg.GroupID, messaging.PaymentHandler(s.Orders, s.logger))
	go subscriber.Consume(ctx, kafkaCfg.FulfillmentTopic, kafkaCfg.GroupID, messaging.FulfillmentHandler(s.Orders, s.logger))
}
