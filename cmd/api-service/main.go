package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/handler"
	"github.com/cuongbtq/jobmatch-be/internal/api/router"
	"github.com/cuongbtq/jobmatch-be/internal/api/storage"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/cuongbtq/jobmatch-be/internal/config"
	"github.com/cuongbtq/jobmatch-be/internal/geocode"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/ratelimit"
	"github.com/cuongbtq/jobmatch-be/shared/logger"
	"github.com/cuongbtq/jobmatch-be/shared/postgresql"
	"github.com/cuongbtq/jobmatch-be/shared/rabbitmq"
	"github.com/cuongbtq/jobmatch-be/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	// Publisher side of the message exchange
	publishCfg := cfg.RabbitMQ
	publishCfg.Queue = config.QueueConfig{}
	publisher, err := initRabbitMQ(&publishCfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ publisher: %w", err)
	}
	defer publisher.Close()

	// Private queue feeding this process's live streams
	bridgeCfg := cfg.RabbitMQ
	bridgeCfg.Queue = config.QueueConfig{Exclusive: true, AutoDelete: true}
	bridgeClient, err := initRabbitMQ(&bridgeCfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ bridge: %w", err)
	}
	defer bridgeClient.Close()

	appLogger.Info("RabbitMQ connection established",
		slog.String("bridge_queue", bridgeClient.QueueName()),
	)

	hub := messaging.NewHub(appLogger.Logger, 16)
	bridge := messaging.NewBridge(bridgeClient, hub, "api-"+uuid.NewString(), appLogger.Logger)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			appLogger.Error("Message bridge stopped",
				slog.Any("error", err),
			)
		}
	}()

	// Rate limit store
	limiter, closeLimiter, err := initLimiter(ctx, cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer closeLimiter()

	verifier, err := auth.NewVerifier(cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	plans := billing.NewStore(dbClient)
	var billingSvc handler.Billing
	if cfg.Stripe.SecretKey != "" {
		sessions := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.Stripe.SecretKey}
		billingSvc = billing.NewService(sessions, plans, billing.Config{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
		}, appLogger.Logger)
	} else {
		appLogger.Warn("Stripe secret key not set, checkout is disabled")
	}

	translator, err := i18n.New()
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:           cfg.Geocode.BaseURL,
		Token:             cfg.Geocode.Token,
		Timeout:           cfg.Geocode.Timeout,
		RequestsPerSecond: cfg.Geocode.RequestsPerSecond,
		Burst:             cfg.Geocode.Burst,
	}, appLogger.Logger)
	if !geocoder.Configured() {
		appLogger.Warn("Geocode token not set, address search is disabled")
	}

	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:     appLogger.Logger,
		Translator: translator,
		DB:         dbClient,
		Checks: map[string]handler.LiveCheck{
			"broker": publisher.IsConnected,
			"bridge": bridge.Healthy,
		},
		Storage:         storage.NewStorage(dbClient),
		Messages:        messaging.NewStore(dbClient),
		Hub:             hub,
		Publisher:       publisher,
		Geocoder:        geocoder,
		Provider:        auth.NewProviderClient(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.Timeout, appLogger.Logger),
		Verifier:        verifier,
		Billing:         billingSvc,
		Plans:           plans,
		Limiter:         limiter,
		RateLimitMax:    cfg.RateLimit.Limit,
		RateLimitWindow: cfg.RateLimit.Window,
		CORSOrigins:     cfg.CORS.AllowedOrigins,
		CookieSecure:    cfg.Auth.CookieSecure,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := newServer(ctx, addr, r, &cfg.Server)

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	appLogger.Info("Shutting down server...")

	// Ends open streams and the bridge; Shutdown would otherwise wait on them
	cancel()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// newServer builds the HTTP server. Every request context derives from ctx
// so cancelling it ends open event streams. A non-zero WriteTimeout cuts
// live streams off.
func newServer(ctx context.Context, addr string, h http.Handler, cfg *config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		URL:             cfg.URL,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initLimiter picks the Redis store when an address is configured, the
// in-process one otherwise
func initLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.Redis.Addr == "" {
		mem := ratelimit.NewMemoryLimiter(logger, cfg.RateLimit.SweepInterval)
		logger.Info("Using in-process rate limiter")
		return mem, mem.Stop, nil
	}

	rc, err := redis.NewClient(ctx, &redis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Using Redis rate limiter",
		slog.String("addr", cfg.Redis.Addr),
	)
	return ratelimit.NewRedisLimiter(rc.GetClient(), cfg.Redis.KeyPrefix), func() { _ = rc.Close() }, nil
}
