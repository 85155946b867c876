// Package main запускает HTTP-сервер сервиса каршеринга.
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

	"github.com/mmeshcher/carsharing-system/internal/config"
	"github.com/mmeshcher/carsharing-system/internal/handler"
	"github.com/mmeshcher/carsharing-system/internal/middleware"
	"github.com/mmeshcher/carsharing-system/internal/notification"
	"github.com/mmeshcher/carsharing-system/internal/repository"
	"github.com/mmeshcher/carsharing-system/internal/service"
	"github.com/mmeshcher/carsharing-system/internal/stripe"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	// Интерфейсные поля должны остаться nil, если клиент не сконфигурирован:
	// типизированный nil-указатель в интерфейсе обошёл бы проверки s.gateway == nil.
	var gateway service.PaymentGateway
	if cfg.StripeSecretKey != "" {
		gateway = stripe.NewClient(cfg.StripeAPIAddress, cfg.StripeSecretKey)
	}

	var notifier service.Notifier
	if n := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, logger); n != nil {
		notifier = n
	}

	svc := service.NewService(repo, gateway, notifier, logger, cfg.BaseURL)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновых сверок: отчёт по просрочкам и истечение платёжных сессий
	g.Go(func() error {
		svc.StartOverdueScan(ctx, cfg.OverdueScanInterval)
		return nil
	})

	g.Go(func() error {
		svc.StartExpiryScan(ctx, cfg.PaymentExpiryInterval)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting carsharing server", "addr", cfg.RunAddress)
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
