package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/markdown"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"mvdan.cc/xurls/v2"
)

const noLinkText = `✖️ Send me a link to an article, optionally with a \#tag\.`

var hashTagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)

type submission struct {
	URL string
	Tag string
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}

	chatID := message.Chat.ID
	user := telegramUser(message.From)

	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/start", "/help":
		return b.handleStartCommand(ctx, chatID)
	case "/menu":
		return b.handleMenuCommand(ctx, chatID)
	case "/list":
		return b.handleListCommand(ctx, chatID, user, strings.TrimPrefix(strings.TrimSpace(args), "#"))
	case "/tags":
		return b.handleTagsCommand(ctx, chatID, user)
	case "/top":
		return b.handleTopCommand(ctx, chatID)
	case "/usage":
		return b.handleUsageCommand(ctx, chatID, user)
	default:
		return b.handleLink(ctx, chatID, user, text, message.Entities)
	}
}

func (b *Bot) handleLink(
	ctx context.Context,
	chatID int64,
	user domain.User,
	text string,
	entities []tgbotapi.MessageEntity,
) error {
	sub, ok, err := parseSubmission(text, entities)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("parse submission: %w", err))
	}
	if !ok {
		return b.sendMessageWithKeyboard(ctx, chatID, noLinkText, b.menuKeyboard)
	}

	return b.withSpinner(ctx, chatID, func() error {
		result := b.library.Ingest(ctx, user, sub.URL, sub.Tag)

		b.log.InfoContext(ctx, "Article submitted",
			"userID", user.ID,
			"url", sub.URL,
			"tag", sub.Tag,
			"outcome", result.Outcome)

		var keyboard [][]tgbotapi.InlineKeyboardButton
		if result.ArticleID != "" {
			keyboard = getArticleKeyboard(result.ArticleID, false)
		}
		keyboard = append(keyboard, b.returnKeyboard...)

		return b.sendMessageWithKeyboard(ctx, chatID, formatIngestResult(result), keyboard)
	})
}

// parseSubmission picks the first http(s) link of the message, preferring
// text_link entities, and the first #tag outside of it.
func parseSubmission(text string, entities []tgbotapi.MessageEntity) (submission, bool, error) {
	var sub submission

	for _, entity := range entities {
		if entity.Type == "text_link" && entity.URL != "" {
			if _, err := articles.NormalizeURL(entity.URL); err == nil {
				sub.URL = entity.URL
				break
			}
		}
	}

	rest := text

	if sub.URL == "" {
		urlRe, err := xurls.StrictMatchingScheme(`https?://`)
		if err != nil {
			return submission{}, false, fmt.Errorf("create regexp: %w", err)
		}

		loc := urlRe.FindStringIndex(text)
		if loc == nil {
			return submission{}, false, nil
		}

		sub.URL = text[loc[0]:loc[1]]
		rest = text[:loc[0]] + " " + text[loc[1]:]
	}

	if m := hashTagRe.FindStringSubmatch(rest); len(m) == 2 {
		sub.Tag = articles.NormalizeTag(m[1])
	}

	return sub, true, nil
}

func formatIngestResult(result articles.IngestResult) string {
	icon := "❌"

	switch {
	case result.Success():
		icon = "✅"
	case result.Outcome == articles.OutcomeAlreadySaved:
		icon = "ℹ️"
	case result.Outcome == articles.OutcomeQuotaExceeded:
		icon = "⛔️"
	}

	return icon + " " + markdown.EscapeV2(strings.TrimSuffix(result.Message, ".")+".")
}
