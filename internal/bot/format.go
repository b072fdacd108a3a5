package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/markdown"
)

const (
	telegramMessageMaxLength = 4096
	// Leaves room for the title, meta line and escaping.
	maxSummaryRunes = 1500
)

func formatSavedArticle(article domain.SavedArticle) string {
	var text strings.Builder

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = article.URL
	}

	if article.HasRead {
		text.WriteString("✅ ")
	}
	text.WriteString("*")
	text.WriteString(markdown.Link(title, article.URL))
	text.WriteString("*\n")

	var meta []string
	if article.Author != nil && strings.TrimSpace(*article.Author) != "" {
		meta = append(meta, strings.TrimSpace(*article.Author))
	}
	if article.ReadTimeMinutes > 0 {
		meta = append(meta, fmt.Sprintf("%d min read", article.ReadTimeMinutes))
	}
	if article.Rating != nil {
		meta = append(meta, strings.Repeat("★", *article.Rating))
	}
	if len(meta) > 0 {
		text.WriteString("_")
		text.WriteString(markdown.EscapeV2(strings.Join(meta, " · ")))
		text.WriteString("_\n")
	}

	if summary := strings.TrimSpace(article.Summary); summary != "" {
		text.WriteString("\n")
		text.WriteString(markdown.EscapeV2(markdown.Truncate(summary, maxSummaryRunes)))
		text.WriteString("\n")
	}

	if len(article.UserTags) > 0 {
		tags := make([]string, 0, len(article.UserTags))
		for _, tag := range article.UserTags {
			tags = append(tags, markdown.EscapeV2("#"+tag))
		}
		text.WriteString("\n")
		text.WriteString(strings.Join(tags, " "))
	}

	return limitMessage(text.String())
}

func formatStories(stories []domain.Story) string {
	var text strings.Builder
	text.WriteString("🔥 *Worth reading today:*\n\n")

	for i, story := range stories {
		title := strings.TrimSpace(story.Title)
		if title == "" {
			title = story.URL
		}

		text.WriteString(fmt.Sprintf("%d\\. %s\n", i+1, markdown.Link(title, story.URL)))
	}

	text.WriteString("\nSend me any of these links to summarize it\\.")

	return limitMessage(text.String())
}

// limitMessage drops whole trailing lines so the message fits Telegram's
// limit without cutting an escape sequence or entity in half.
func limitMessage(text string) string {
	if utf8.RuneCountInString(text) <= telegramMessageMaxLength {
		return text
	}

	lines := strings.Split(text, "\n")
	for len(lines) > 1 && utf8.RuneCountInString(strings.Join(lines, "\n")) > telegramMessageMaxLength-2 {
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, "\n") + "\n…"
}
