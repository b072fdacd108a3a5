package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const sendSpinnerInterval = 3 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	config := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.rateLimiter.Request(config); err != nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

// withSpinner keeps the "typing" indicator alive while fn runs.
func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	}()

	return fn()
}

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	if _, err := b.rateLimiter.Send(ctx, message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (b *Bot) editKeyboard(
	ctx context.Context,
	chatID int64,
	messageID int,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.NewInlineKeyboardMarkup(keyboard...))

	if _, err := b.rateLimiter.Send(ctx, edit); err != nil {
		return fmt.Errorf("edit reply markup: %w", err)
	}

	return nil
}

func (b *Bot) sendFailed(ctx context.Context, chatID int64, err error) error {
	return b.sendOutcome(ctx, chatID, "❌ Failed\\.", err)
}

// sendOutcome reports text to the chat and joins any send error onto err.
func (b *Bot) sendOutcome(ctx context.Context, chatID int64, text string, err error) error {
	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); sendErr != nil {
		if err == nil {
			return fmt.Errorf("send message with keyboard: %w", sendErr)
		}
		return fmt.Errorf("%w; send message with keyboard: %w", err, sendErr)
	}

	return err
}
