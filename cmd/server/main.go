package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamba05/Fynnance/internal/app"
	"github.com/liamba05/Fynnance/internal/config"
	"github.com/liamba05/Fynnance/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", map[string]any{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		logger.Info("server starting", map[string]any{
			"port": cfg.AppPort,
		})
		if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", map[string]any{
			"error": err.Error(),
		})
	}
}
