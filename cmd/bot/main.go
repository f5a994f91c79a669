// Package main runs the ecosort Telegram bot. Each chat is one capture
// session: send a photo, get the disposal category back.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/app"
	"github.com/fleveque/ecosort/internal/bot"
	"github.com/fleveque/ecosort/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ECOSORT_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is not set: use TELEGRAM_BOT_TOKEN or ECOSORT_TELEGRAM_TOKEN")
	}

	logger, err := app.NewLogger(cfg.Log.Level, false)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// NotifyContext cancels ctx on the first SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	// Chats never use a camera: every image arrives as a photo or file.
	store := a.NewStore(nil)
	defer store.Close()
	go a.RunMaintenance(ctx, store)

	b := bot.New(api, store, cfg.Capture.MaxUploadBytes, 0, logger)
	return b.Run(ctx, cfg.Telegram.Timeout)
}
