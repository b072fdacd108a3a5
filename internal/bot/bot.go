package bot

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/ratelimiter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30

	// Ingest may run a page fetch plus a provider call.
	updateProcessingTimeout = 3 * time.Minute

	BotUpdateTimeout = 60

	userIDPrefix = "telegram:"
)

// Library is the slice of the article repository the bot drives.
type Library interface {
	Ingest(ctx context.Context, user domain.User, rawURL string, rawTag string) articles.IngestResult
	ListArticles(ctx context.Context, user domain.User, rawTag string) ([]domain.SavedArticle, error)
	Tags(ctx context.Context, user domain.User) ([]string, error)
	SetReadStatus(ctx context.Context, user domain.User, articleID string, hasRead bool) error
	DeleteArticle(ctx context.Context, user domain.User, articleID string) error
	Usage(ctx context.Context, user domain.User) (articles.Usage, error)
}

type Discoverer interface {
	Top(ctx context.Context, n int) ([]domain.Story, error)
}

type messenger interface {
	Send(ctx context.Context, message tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Stop()
}

type Bot struct {
	api            *tgbotapi.BotAPI
	rateLimiter    messenger
	library        Library
	discover       Discoverer
	allowedUsers   []int64
	returnKeyboard [][]tgbotapi.InlineKeyboardButton
	menuKeyboard   [][]tgbotapi.InlineKeyboardButton
	log            *slog.Logger
}

// New connects to Telegram. discover may be nil, in which case /top is
// answered with an explanation.
func New(
	token string,
	library Library,
	discover Discoverer,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(ratelimiter.New(api, log), library, discover, allowedUsers, log)
	b.api = api

	return b, nil
}

func newBot(
	rateLimiter messenger,
	library Library,
	discover Discoverer,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		rateLimiter:    rateLimiter,
		library:        library,
		discover:       discover,
		allowedUsers:   allowedUsers,
		returnKeyboard: getReturnKeyboard(),
		menuKeyboard:   getMenuKeyboard(),
		log:            log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		chatID, chatType := chatContext(update.Message.Chat)

		userID := update.Message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", update.Message.From.UserName,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID := callbackChatID(update.CallbackQuery)

		if !b.userAllowed(update.CallbackQuery.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", update.CallbackQuery.From.ID,
				"chatID", chatID,
				"username", update.CallbackQuery.From.UserName,
				"data", update.CallbackQuery.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

// telegramUser maps a Telegram account onto the library's user identity.
// Telegram exposes no email address.
func telegramUser(from *tgbotapi.User) domain.User {
	if from == nil {
		return domain.User{}
	}

	return domain.User{ID: userIDPrefix + strconv.FormatInt(from.ID, 10)}
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
