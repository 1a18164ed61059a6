// Package main запускает HTTP-сервер order-service и проектор событий платежей.
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
	"github.com/mmeshcher/ordermart-system/internal/order"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseOrder(os.Args[1:])
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgres(cfg.DatabaseURI, "order")
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	users := userclient.NewClient(userclient.Config{
		BaseURL:  cfg.UserServiceAddress,
		Token:    cfg.UserServiceToken,
		RetryMax: 2,
	}, logger)

	svc := order.NewService(repo, users, logger)
	defer svc.Close()

	h := order.NewHandler(svc, logger)
	r := order.NewRouter(h, logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Проектор статусов заказов из событий платежей
	kafkaClient := events.NewKafkaClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		reader := kafkaClient.NewReader(events.TopicPaymentEvents, cfg.KafkaGroupID)
		projector := order.NewProjector(reader, svc, logger)
		defer projector.Close()

		g.Go(func() error {
			sugar.Infow("starting payment events projector", "group", cfg.KafkaGroupID)
			return projector.Run(ctx)
		})
	} else {
		sugar.Info("kafka brokers not configured, projector disabled")
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting order service", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
