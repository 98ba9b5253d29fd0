package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedpush/internal/push"
)

// The Bot doubles as the Telegram notifier session for push delivery.
var _ push.Notifier = (*Bot)(nil)

// PlatformID returns the bare platform name of this session.
func (b *Bot) PlatformID() string { return platformTelegram }

// SelfID returns the bot account's own user ID.
func (b *Bot) SelfID() string { return b.selfID }

// SendPrivate delivers a private text message to the given Telegram user.
func (b *Bot) SendPrivate(_ context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		if strings.Contains(err.Error(), "bots can't send messages to bots") {
			return fmt.Errorf("%w: %s", push.ErrRecipientUnreachable, err)
		}
		return fmt.Errorf("send private message: %w", err)
	}
	return nil
}
