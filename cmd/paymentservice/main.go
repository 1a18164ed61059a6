// Package main запускает HTTP-сервер payment-service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ordermart-system/internal/config"
	"github.com/mmeshcher/ordermart-system/internal/events"
	"github.com/mmeshcher/ordermart-system/internal/payment"
	"github.com/mmeshcher/ordermart-system/internal/repository"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParsePayment(os.Args[1:])
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgres(cfg.DatabaseURI, "payment")
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var source payment.OutcomeSource = payment.LocalSource{}
	if cfg.RandomAPIAddress != "" {
		source = payment.NewRandomAPISource(cfg.RandomAPIAddress, 3*time.Second)
	}

	var publisher payment.Publisher
	kafkaClient := events.NewKafkaClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		kafkaPublisher := payment.NewKafkaPublisher(kafkaClient.NewWriter(events.TopicPaymentEvents))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		sugar.Info("kafka brokers not configured, payment events disabled")
	}

	svc := payment.NewService(repo, source, publisher, logger)
	defer svc.Close()

	h := payment.NewHandler(svc, logger)
	r := payment.NewRouter(h, logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting payment service", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
