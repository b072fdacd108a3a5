package discover

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

const (
	cacheTTL        = 10 * time.Minute
	cacheMaxEntries = 16
	fetchTimeout    = 15 * time.Second
)

// Client reads a front-page feed of stories users may want to summarize.
type Client struct {
	feedURL string
	parser  *gofeed.Parser
	cache   *storyCache
	now     func() time.Time
	log     *slog.Logger
}

func New(feedURL string, client *http.Client, log *slog.Logger) *Client {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}

	return &Client{
		feedURL: strings.TrimSpace(feedURL),
		parser:  parser,
		cache:   newStoryCache(cacheMaxEntries),
		now:     time.Now,
		log:     log,
	}
}

// Top returns at most n stories with a link, in feed order.
func (c *Client) Top(ctx context.Context, n int) ([]domain.Story, error) {
	stories, err := c.stories(ctx)
	if err != nil {
		return nil, err
	}

	if n > 0 && len(stories) > n {
		stories = stories[:n]
	}

	return stories, nil
}

func (c *Client) stories(ctx context.Context) ([]domain.Story, error) {
	now := c.now()

	if cached, ok := c.cache.get(c.feedURL, now); ok {
		return cached, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	feed, err := c.parser.ParseURLWithContext(c.feedURL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	stories := make([]domain.Story, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		story := domain.Story{
			Title:     strings.TrimSpace(item.Title),
			URL:       link,
			Published: item.PublishedParsed,
		}
		if story.Title == "" {
			story.Title = link
		}

		stories = append(stories, story)
	}

	c.cache.set(c.feedURL, stories, now.Add(cacheTTL), now)

	c.log.DebugContext(ctx, "Discover feed is fetched",
		"feedURL", c.feedURL,
		"storyCount", len(stories))

	return stories, nil
}
