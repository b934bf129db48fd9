package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rao30/bake-house/internal/api"
	"github.com/rao30/bake-house/internal/cache"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/config"
	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/events"
	"github.com/rao30/bake-house/internal/identity"
	"github.com/rao30/bake-house/internal/orders"
	"github.com/rao30/bake-house/internal/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run blocks until the server stops. Its deferred cleanups finish before
// main picks the exit code.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.InitTracing(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database successfully")

	var identityOpts []identity.Option
	identityOpts = append(identityOpts, identity.WithTokenTTL(cfg.Auth.TokenTTL))
	if cfg.Redis.URL != "" {
		rdb, err := cache.InitRedis(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer rdb.Close()
		identityOpts = append(identityOpts, identity.WithTokenCache(cache.NewTokenCache(rdb, cfg.Redis.TokenTTL)))
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.InitProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, cfg.Kafka.OrderTopic, logger)
	}

	if cfg.Auth.GoogleClientID == "" {
		logger.Warn("GOOGLE_CLIENT_ID is not set; /auth/google will answer 500")
	}

	products := catalog.Default()
	verifier := identity.NewGoogleVerifier(cfg.Auth.GoogleCertsURL, cfg.Auth.HTTPTimeout)
	identitySvc := identity.NewService(db, verifier, cfg.Auth.GoogleClientID, logger, identityOpts...)
	orderSvc := orders.NewService(db, products, logger, orders.WithPublisher(publisher))

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.NewHandler(products, orderSvc, identitySvc, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, server, cfg.Server.ShutdownTimeout, shutdownTracing, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

// serve runs server until ctx is done, then shuts it down and flushes
// tracing. A listen failure is returned.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, shutdownTracing func(context.Context) error, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return shutdownTracing(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
