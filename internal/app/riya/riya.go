// Package riya собирает и запускает бота: хранилище, шлюз доступа, платежи,
// генератор ответов, транспорт Telegram, журнал переписки и HTTP-сервер.
package riya

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/riya-bot/internal/cache"
	"github.com/magabrotheeeer/riya-bot/internal/config"
	"github.com/magabrotheeeer/riya-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/riya-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/migrations"
	"github.com/magabrotheeeer/riya-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/riya-bot/internal/services/chat"
	"github.com/magabrotheeeer/riya-bot/internal/services/gate"
	"github.com/magabrotheeeer/riya-bot/internal/services/language"
	"github.com/magabrotheeeer/riya-bot/internal/services/moderation"
	"github.com/magabrotheeeer/riya-bot/internal/services/payment"
	"github.com/magabrotheeeer/riya-bot/internal/services/reply"
	"github.com/magabrotheeeer/riya-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/riya-bot/internal/storage/memory"
	"github.com/magabrotheeeer/riya-bot/internal/storage/postgres"
	"github.com/magabrotheeeer/riya-bot/internal/telegram"
	"github.com/magabrotheeeer/riya-bot/internal/transcript"
)

// TelegramWebhookPath путь, по которому Telegram присылает обновления в режиме вебхука.
const TelegramWebhookPath = "/telegram"

const (
	shutdownTimeout   = 15 * time.Second
	localDedupeSize   = 10000
	webhookRatePerSec = 20
	webhookRateBurst  = 40
)

// Store хранилище состояния пользователей и заказов.
type Store interface {
	gate.Store
	payment.OrderStore
	scheduler.OrderRepository
}

// App представляет приложение бота.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	server      *http.Server
	poller      *telegram.Poller
	dispatcher  *telegram.Dispatcher
	sweeper     *scheduler.SweeperService
	transcripts *transcript.Logger
	closers     []func() error
}

// New собирает приложение по конфигу. Внешние соединения открываются здесь,
// при ошибке уже открытые закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	const op = "app.riya.New"
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	dedupe, err := a.openDedupe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Telegram.PollTimeout+10) * time.Second}
	bot, err := telegram.NewBot(cfg.Telegram.Token, "", httpClient)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("authorized on telegram", slog.String("bot", bot.Self.UserName))
	sender := telegram.NewSender(bot, logger)

	g := gate.New(store, logger, gate.Options{
		FreeLimit:             cfg.Gate.FreeLimit,
		StrikeThreshold:       cfg.Gate.StrikeThreshold,
		MuteDuration:          cfg.Gate.MuteDuration,
		ResetStrikesAfterMute: cfg.Gate.ResetStrikesAfterMute,
	})

	catalog, err := payment.NewCatalog(cfg.Plans, cfg.DefaultPlan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tokens := jwt.NewJWTMaker(cfg.Payment.LinkSecret, cfg.Payment.LinkTTL)
	provider := paymentprovider.NewClient(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.APIURL, cfg.Payment.Timeout)
	paymentService := payment.New(logger, catalog, g, store, provider, tokens, dedupe, sender, payment.Options{
		PublicURL: cfg.Payment.PublicURL,
		LinkTTL:   cfg.Payment.LinkTTL,
	})

	transcripts, err := a.openTranscripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	generator := reply.New(logger, reply.Options{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
		Persona: cfg.OpenAI.Persona,
	})

	handler := chat.New(logger, g, moderation.New(cfg.Moderation.BannedTerms), language.New(),
		generator, sender, paymentService, transcripts, chat.Options{
			AdminID:       cfg.Telegram.AdminID,
			RatePerSecond: cfg.Gate.RatePerSecond,
			RateBurst:     cfg.Gate.RateBurst,
		})
	a.dispatcher = telegram.NewDispatcher(bot, handler, logger, cfg.Telegram.Workers)

	routes := Routes{
		PaymentService: paymentService,
		PayLinks:       paymentService,
		Tokens:         tokens,
		WebhookSecret:  cfg.Payment.WebhookSecret,
		WebhookLimiter: rate.NewLimiter(webhookRatePerSec, webhookRateBurst),
	}
	if err := a.setupTelegramMode(bot, &routes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, routes)
	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	a.sweeper = scheduler.NewSweeperService(store, logger, cfg.Payment.OrderTTL, cfg.Payment.SweepInterval)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	if a.cfg.Storage.Driver != config.StoragePostgres {
		a.logger.Warn("using in-memory storage, state will be lost on restart")
		return memory.New(), nil
	}
	db, err := postgres.New(ctx, a.cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := migrations.Run(db.DB, a.cfg.Storage.MigrationsPath); err != nil {
		return nil, err
	}
	if err := db.CheckDatabaseReady(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *App) openDedupe(ctx context.Context) (payment.Deduper, error) {
	if a.cfg.Redis.Address == "" {
		return cache.NewLocal(localDedupeSize, payment.DedupeTTL), nil
	}
	c, err := cache.InitServer(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

// openTranscripts возвращает nil-интерфейс, если журнал отключён.
func (a *App) openTranscripts(ctx context.Context) (chat.Transcripts, error) {
	tc := a.cfg.Transcript
	var sink transcript.Sink
	switch tc.Sink {
	case config.SinkSheets:
		s, err := transcript.NewSheets(ctx, tc.SpreadsheetID, tc.Range, tc.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		sink = s
	case config.SinkAMQP:
		conn, err := rabbitmq.Connect(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.MaxRetries, a.cfg.RabbitMQ.RetryDelay)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.TranscriptExchange, rabbitmq.TranscriptQueues(), 0)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ch.Close)
		sink = transcript.NewQueueSink(ch)
	default:
		return nil, nil
	}
	a.transcripts = transcript.NewLogger(a.logger, sink, tc.Buffer, tc.Timeout)
	return a.transcripts, nil
}

func (a *App) setupTelegramMode(bot *tgbotapi.BotAPI, routes *Routes) error {
	if a.cfg.Telegram.Mode == config.ModeWebhook {
		url := strings.TrimRight(a.cfg.Payment.PublicURL, "/") + TelegramWebhookPath
		if err := telegram.SetWebhook(bot, url, a.cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		a.logger.Info("telegram webhook registered", slog.String("url", url))
		routes.Telegram = a.dispatcher
		routes.TelegramSecret = a.cfg.Telegram.WebhookSecret
		return nil
	}
	if err := telegram.DeleteWebhook(bot); err != nil {
		return err
	}
	a.poller = telegram.NewPoller(bot, a.dispatcher, a.logger, a.cfg.Telegram.PollTimeout)
	return nil
}

// Run запускает HTTP-сервер, получение обновлений и очистку заказов и
// блокируется до отмены ctx, после чего корректно всё останавливает.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if a.poller != nil {
			a.poller.Run(ctx)
		}
	}()
	go a.sweeper.Run(ctx)

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("HTTP server failed", sl.Err(runErr))
		}
	case <-ctx.Done():
	}
	cancel()

	a.logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}
	<-pollerDone
	a.dispatcher.Wait()
	if a.transcripts != nil {
		if err := a.transcripts.Close(shutdownCtx); err != nil {
			a.logger.Warn("transcript queue not fully flushed", sl.Err(err))
		}
	}
	a.close()
	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}
