// Package bot implements the Telegram command surface and the Telegram
// notifier session used by push delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedpush/internal/config"
	"feedpush/internal/push"
	"feedpush/internal/scheduler"
	"feedpush/internal/storage"
	"feedpush/internal/subs"
)

// platformTelegram is the platform identifier under which Telegram
// subscriptions are stored.
const platformTelegram = "telegram"

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that handles user commands and delivers push
// notifications.
type Bot struct {
	api      telegramAPI
	selfID   string
	store    storage.Storage
	registry *subs.Registry
	sched    *scheduler.Scheduler
	queue    *push.Queue
	cfg      *config.Config
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token and collaborators.
func New(token string, store storage.Storage, registry *subs.Registry, sched *scheduler.Scheduler, queue *push.Queue, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		selfID:   strconv.FormatInt(api.Self.ID, 10),
		store:    store,
		registry: registry,
		sched:    sched,
		queue:    queue,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// formatChatID maps a Telegram chat ID to the user ID under which
// subscriptions and push records are keyed.
func formatChatID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "sub":
		b.handleSub(ctx, chatID, args)
	case "suball":
		b.handleSubAll(ctx, chatID)
	case cmdUnsub:
		b.handleUnsub(ctx, chatID, args)
	case "mysub":
		b.handleMySub(ctx, chatID)
	case "latest":
		b.handleLatest(ctx, chatID, args)
	case "update":
		b.handleUpdate(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
