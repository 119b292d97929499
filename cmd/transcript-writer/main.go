// Package main запускает transcript-writer: потребителя очереди журнала
// переписки, который пишет строки в Google-таблицу.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/riya-bot/internal/app/transcriptwriter"
	"github.com/magabrotheeeer/riya-bot/internal/config"
	"github.com/magabrotheeeer/riya-bot/internal/lib/logger"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoadWriter()
	log := logger.New(cfg.Env, cfg.LogLevel, os.Stdout)

	log.Info("starting transcript-writer", slog.String("spreadsheet", cfg.Transcript.SpreadsheetID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := transcriptwriter.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize transcript-writer", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("transcript-writer stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("transcript-writer stopped gracefully")
}
