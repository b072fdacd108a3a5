package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/markdown"
)

const (
	maxListedArticles = 10
	discoverStories   = 10
)

const welcomeText = `🤖 *Welcome to Article Summarizer\!*

Send me a link and I'll read the page, summarize it and keep it in your library\.

– Add a \#tag next to the link to file it under that tag
– Browse your library with /list, or /list \#tag to filter it
– See your tags with /tags
– Mark articles read or remove them right from the list
– Find something new with /top
– Check your monthly summary quota with /usage`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleListCommand(ctx context.Context, chatID int64, user domain.User, tag string) error {
	saved, err := b.library.ListArticles(ctx, user, tag)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("list articles: %w", err))
	}

	if len(saved) == 0 {
		text := "✖️ Your library is empty\\. Send me a link to get started\\."
		if tag != "" {
			text = fmt.Sprintf("✖️ No articles tagged %s\\.", markdown.EscapeV2("#"+tag))
		}
		return b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard)
	}

	header := fmt.Sprintf("📚 *Found %d articles", len(saved))
	if tag != "" {
		header += " tagged " + markdown.EscapeV2("#"+tag)
	}
	header += ":*"
	if len(saved) > maxListedArticles {
		header += fmt.Sprintf("\nShowing the latest %d\\.", maxListedArticles)
		saved = saved[:maxListedArticles]
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID, header, nil); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	var errs []error
	for _, article := range saved {
		if err = b.sendMessageWithKeyboard(
			ctx,
			chatID,
			formatSavedArticle(article),
			getArticleKeyboard(article.ID, article.HasRead),
		); err != nil {
			errs = append(errs, fmt.Errorf("send article %s: %w", article.ID, err))
		}
	}

	if err = b.handleMenuCommand(ctx, chatID); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) handleTagsCommand(ctx context.Context, chatID int64, user domain.User) error {
	tags, err := b.library.Tags(ctx, user)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("get tags: %w", err))
	}

	if len(tags) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ You have no tags yet\\.", b.returnKeyboard)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, "🏷 *Your tags:*", getTagsKeyboard(tags))
}

func (b *Bot) handleTopCommand(ctx context.Context, chatID int64) error {
	if b.discover == nil {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Discover is not configured\\.", b.returnKeyboard)
	}

	stories, err := b.discover.Top(ctx, discoverStories)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("get top stories: %w", err))
	}

	if len(stories) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Nothing to discover right now\\.", b.returnKeyboard)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, formatStories(stories), b.returnKeyboard)
}

func (b *Bot) handleUsageCommand(ctx context.Context, chatID int64, user domain.User) error {
	usage, err := b.library.Usage(ctx, user)
	if err != nil {
		return b.sendFailed(ctx, chatID, fmt.Errorf("get usage: %w", err))
	}

	text := fmt.Sprintf(
		"📊 *Usage*\n\nPlan: %s\nSummaries this cycle: %d of %d\nCycle resets: %s",
		markdown.EscapeV2(strings.ToUpper(string(usage.Plan))),
		usage.Used,
		usage.Limit,
		markdown.EscapeV2(usage.CycleEnds.UTC().Format("2006-01-02 15:04 UTC")),
	)

	return b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard)
}
