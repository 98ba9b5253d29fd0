package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"feedpush/internal/bot"
	"feedpush/internal/config"
	"feedpush/internal/fetcher"
	"feedpush/internal/push"
	"feedpush/internal/scheduler"
	"feedpush/internal/storage"
	"feedpush/internal/subs"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	f, err := newFetcher(cfg, log)
	if err != nil {
		log.Error("create fetcher", "error", err)
		os.Exit(1)
	}

	registry := subs.NewRegistry(store, cfg.MaxKeywords)
	notifiers := push.NewRegistry()
	queue := push.NewQueue(store, notifiers, cfg.PushBatchSize,
		time.Duration(cfg.PushDelayMs)*time.Millisecond, log)

	sched := scheduler.New(store, f, queue, scheduler.Options{
		Interval:     time.Duration(cfg.PollIntervalSec) * time.Second,
		CategoryCaps: cfg.CategoryCaps,
		GlobalCap:    cfg.GlobalCap,
		Retention:    time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		PushEnabled:  cfg.PushEnabled(),
	}, log)

	b, err := bot.New(cfg.TelegramBotToken, store, registry, sched, queue, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}
	notifiers.Register(b)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting feedpush", "feed_url", cfg.FeedURL, "auto_update", cfg.AutoUpdate())

	if cfg.AutoUpdate() {
		go sched.Run(ctx)
	}

	b.Run(ctx)

	log.Info("feedpush stopped")
}

func newFetcher(cfg *config.Config, log *slog.Logger) (*fetcher.Fetcher, error) {
	if cfg.ProxyURL == "" {
		return fetcher.New(http.DefaultClient, cfg.FeedURL, log), nil
	}
	proxy, err := fetcher.ProxyClient(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	return fetcher.NewWithProxy(http.DefaultClient, proxy, cfg.FeedURL, log), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
