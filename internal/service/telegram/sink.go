// Package telegram delivers alert messages to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
)

// sender is the part of *tgbotapi.BotAPI the sink uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sink is an AlertSink posting each alert to one chat.
type Sink struct {
	bot    sender
	chatID int64
}

var _ drepo.AlertSink = (*Sink)(nil)

// NewSink authenticates the bot token against the Bot API.
func NewSink(token string, chatID int64) (*Sink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Sink{bot: bot, chatID: chatID}, nil
}

func (s *Sink) Name() string { return "telegram" }

// Send posts the alert. The Bot API call itself cannot be cancelled, so ctx
// is only checked before sending.
func (s *Sink) Send(ctx context.Context, ev models.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, formatAlert(ev))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatAlert(ev models.AlertEvent) string {
	return fmt.Sprintf("🎯 *%s*\n%s\n`%s`",
		escapeMarkdownV2(ev.FeedLabel),
		escapeMarkdownV2(ev.Message()),
		escapeMarkdownV2(ev.FiredAt.UTC().Format("2006-01-02 15:04:05 MST")),
	)
}

var markdownV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdownV2(s string) string { return markdownV2Replacer.Replace(s) }
