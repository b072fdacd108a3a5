package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	user := telegramUser(callback.From)
	data := strings.TrimSpace(callback.Data)

	switch data {
	case callbackMenu:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleMenuCommand(ctx, chatID)
		})
	case callbackMenuList:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleListCommand(ctx, chatID, user, "")
		})
	case callbackMenuTags:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleTagsCommand(ctx, chatID, user)
		})
	case callbackMenuTop:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.withSpinner(ctx, chatID, func() error {
				return b.handleTopCommand(ctx, chatID)
			})
		})
	case callbackMenuUsage:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleUsageCommand(ctx, chatID, user)
		})
	}

	if tag, ok := strings.CutPrefix(data, callbackTagPrefix); ok {
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleListCommand(ctx, chatID, user, tag)
		})
	}

	if articleID, ok := strings.CutPrefix(data, callbackReadPrefix); ok {
		return b.handleReadStatusQuery(ctx, callback, articleID, true)
	}

	if articleID, ok := strings.CutPrefix(data, callbackUnreadPrefix); ok {
		return b.handleReadStatusQuery(ctx, callback, articleID, false)
	}

	if articleID, ok := strings.CutPrefix(data, callbackRemovePrefix); ok {
		return b.handleRemoveQuery(ctx, callback, articleID)
	}

	return b.withEmptyCallbackAnswer(callback, func() error { return nil })
}

func (b *Bot) handleReadStatusQuery(
	ctx context.Context,
	callback *tgbotapi.CallbackQuery,
	articleID string,
	hasRead bool,
) error {
	user := telegramUser(callback.From)

	if err := b.library.SetReadStatus(ctx, user, articleID, hasRead); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("set read status: %w", err))
	}

	answer := "✅ Marked as read."
	if !hasRead {
		answer = "↩️ Marked as unread."
	}

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, answer)); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return b.editKeyboard(
		ctx,
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		getArticleKeyboard(articleID, hasRead),
	)
}

func (b *Bot) handleRemoveQuery(
	ctx context.Context,
	callback *tgbotapi.CallbackQuery,
	articleID string,
) error {
	user := telegramUser(callback.From)

	if err := b.library.DeleteArticle(ctx, user, articleID); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("delete article: %w", err))
	}

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "🗑 Removed.")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	// Nothing left to act on once the article is gone.
	return b.editKeyboard(
		ctx,
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		[][]tgbotapi.InlineKeyboardButton{},
	)
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, fmt.Errorf("send request: %w", err)))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
