package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const cmdUnsub = "unsub"

func (b *Bot) askClearConfirmation(_ context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Clear your entire subscription? This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, clear", "clear:1"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send clear confirmation", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, _, ok := strings.Cut(data, ":")
	if !ok {
		return
	}

	b.log.Info("callback",
		"action", action,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case "clear":
		if _, err := b.registry.RemoveKeywords(ctx, platformTelegram, formatChatID(chatID), nil); err != nil {
			b.reply(chatID, "You have no subscription to clear.")
			return
		}
		b.reply(chatID, "Subscription cleared.")
	}
}
