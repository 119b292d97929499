// Package main запускает бота Riya.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/riya-bot/internal/app/riya"
	"github.com/magabrotheeeer/riya-bot/internal/config"
	"github.com/magabrotheeeer/riya-bot/internal/lib/logger"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, cfg.LogLevel, os.Stdout)

	log.Info("starting riya-bot", slog.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := riya.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("riya-bot stopped gracefully")
}
