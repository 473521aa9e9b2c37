package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiVykunta/e-commerce/config"
	"github.com/RishiVykunta/e-commerce/internal/broker"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"
	"github.com/RishiVykunta/e-commerce/internal/worker"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting notification worker",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.TopicOrder),
		zap.String("group", cfg.Kafka.ConsumerGroup))

	tp, err := util.InitTracer(util.TracingConfig{
		ServiceName:    util.ServiceName + "-notifier",
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
		_ = tp.Shutdown(ctx)
	}()

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		TxTimeout:    cfg.Database.TxTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	w := worker.NewNotificationWorker(consumer, db, worker.NewLogSender(logger))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Notification worker stopped", zap.Error(err))
	}

	if err := w.Stop(); err != nil {
		logger.Warn("Failed to close consumer", zap.Error(err))
	}
	logger.Info("Notification worker exited")
}
