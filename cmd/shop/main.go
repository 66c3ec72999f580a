// Package main запускает HTTP-сервер магазина.
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

	"github.com/rgshop/shop-system/internal/catalog"
	"github.com/rgshop/shop-system/internal/config"
	"github.com/rgshop/shop-system/internal/handler"
	"github.com/rgshop/shop-system/internal/middleware"
	"github.com/rgshop/shop-system/internal/notifier"
	"github.com/rgshop/shop-system/internal/repository"
	"github.com/rgshop/shop-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := repository.NewPostgres(cfg.DatabaseURI, cfg.LockOrderRows)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer store.Close()

	catalogClient := catalog.NewClient(cfg.CatalogAddress)

	orders := service.NewOrderService(store)
	payments := service.NewPaymentService(store)
	shipments := service.NewShipmentService(store)
	checkout := service.NewCheckoutService(store, catalogClient)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(orders, payments, shipments, checkout, store, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Диспетчер outbox-уведомлений включается только при настроенном шлюзе
	if cfg.NotifierAddress != "" {
		dispatcher := notifier.NewDispatcher(
			store,
			notifier.NewClient(cfg.NotifierAddress),
			logger,
			cfg.NotifierPollInterval,
			cfg.NotifierBatchSize,
		)
		g.Go(func() error {
			dispatcher.Run(ctx)
			return nil
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting shop server", "addr", cfg.RunAddress)
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
