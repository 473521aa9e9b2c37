package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiVykunta/e-commerce/config"
	"github.com/RishiVykunta/e-commerce/internal/api"
	"github.com/RishiVykunta/e-commerce/internal/auth"
	"github.com/RishiVykunta/e-commerce/internal/broker"
	"github.com/RishiVykunta/e-commerce/internal/payment"
	"github.com/RishiVykunta/e-commerce/internal/redisclient"
	"github.com/RishiVykunta/e-commerce/internal/service"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront API", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.TracingConfig{
		ServiceName:    util.ServiceName,
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		TxTimeout:    cfg.Database.TxTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Database schema applied")
	}

	readiness := map[string]api.Pinger{"postgres": db}

	// Payment intents and idempotency locks degrade gracefully without Redis.
	var registry service.IntentRegistry
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without intent registry", zap.Error(err))
	} else {
		defer redisClient.Close()
		registry = redisClient
		readiness["redis"] = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	gateway := payment.NewGateway(payment.Config{
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		BaseURL:   cfg.Payment.BaseURL,
		Currency:  cfg.Payment.Currency,
		Timeout:   10 * time.Second,
	})
	if !gateway.Configured() {
		logger.Warn("Payment gateway keys not configured")
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	services := api.Services{
		Auth:    service.NewAuthService(db, tokens),
		Catalog: service.NewCatalogService(db),
		Orders: service.NewOrderService(db, registry, eventPublisher, gateway, service.OrderOptions{
			IntentTTL:          cfg.Payment.IntentTTL,
			RequireVerified:    cfg.Payment.RequireVerified,
			ConfirmWithGateway: cfg.Payment.ConfirmWithGateway,
		}),
		Reviews: service.NewReviewService(db),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, api.Options{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadDir:      cfg.Upload.Dir,
		UploadMaxBytes: cfg.Upload.MaxBytes,
		Readiness:      readiness,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
