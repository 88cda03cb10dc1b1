package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/config"
	"github.com/mwshark/shop-bot/internal/fulfillment"
	"github.com/mwshark/shop-bot/internal/handlers"
	"github.com/mwshark/shop-bot/internal/logging"
	"github.com/mwshark/shop-bot/internal/messages"
	"github.com/mwshark/shop-bot/internal/payments"
	"github.com/mwshark/shop-bot/internal/scheduler"
	"github.com/mwshark/shop-bot/internal/webhook"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open datastore")
	}
	defer st.Close()

	rdb, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "shop_bot")
	if err != nil {
		log.Fatal().Err(err).Msg("connect to redis")
	}
	defer rdb.Close()
	sessions := store.NewRedisSessionStore(rdb, time.Hour)

	var b *bot.Bot
	token, _ := st.GetSetting(types.SettingBotToken)
	if token != "" {
		b, err = bot.New(token)
		if err != nil {
			log.Fatal().Err(err).Msg("create telegram bot")
		}
	} else {
		log.Warn().Msg("telegram bot token is not configured, running web surface only")
	}

	var notifier fulfillment.Notifier
	if b != nil {
		notifier = &telegramNotifier{bot: b}
	}

	fulfiller := fulfillment.NewService(st, notifier)
	fulfiller.Start()
	defer fulfiller.Stop()

	if b != nil {
		expiry := scheduler.NewExpiryNotifier(st, notifier)
		expiry.Start()
		defer expiry.Stop()

		factory := payments.NewFactory(st)
		handlers.NewHandlers(st, sessions, factory, fulfiller).Register(b)
		go b.Start(ctx)
		log.Info().Msg("telegram bot polling started")
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: webhook.NewServer(st, fulfiller, cfg.JWTSecret).Handler(),
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}

// telegramNotifier adapts the bot client to the notification interface
// the fulfillment worker and expiry notifier use.
type telegramNotifier struct {
	bot *bot.Bot
}

func (n *telegramNotifier) Send(ctx context.Context, chatID int64, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	return err
}
