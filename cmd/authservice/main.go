// Package main запускает HTTP-сервер auth-service.
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

	"github.com/mmeshcher/ordermart-system/internal/auth"
	"github.com/mmeshcher/ordermart-system/internal/config"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.ParseAuth(os.Args[1:])
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgres(cfg.DatabaseURI, "auth")
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	users := userclient.NewClient(userclient.Config{
		BaseURL: cfg.UserServiceAddress,
		Token:   cfg.UserServiceToken,
	}, logger)

	tokens := auth.NewTokenManager(cfg.JWTSecret, 15*time.Minute, 24*time.Hour)

	svc := auth.NewService(repo, users, tokens, logger)
	defer svc.Close()

	h := auth.NewHandler(svc, logger)
	r := auth.NewRouter(h, logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting auth service", "addr", cfg.RunAddress)
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
