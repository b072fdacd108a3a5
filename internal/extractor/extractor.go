package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const maxBodyBytes = 10 << 20

var (
	ErrFetch = errors.New("fetch page")
	ErrParse = errors.New("parse page")
)

type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: no readable content", e.URL)
	}
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// Result is the readable part of a fetched page.
type Result struct {
	Title            string
	Author           *string
	PublishedTime    *time.Time
	Content          string
	FormattedContent string
	WordCount        int
}

type Extractor struct {
	client *http.Client
	log    *slog.Logger
}

func New(timeout time.Duration, log *slog.Logger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// NewWithClient is used when the caller owns the transport.
func NewWithClient(client *http.Client, log *slog.Logger) *Extractor {
	return &Extractor{client: client, log: log}
}

func (e *Extractor) Extract(ctx context.Context, pageURL string) (Result, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, &FetchError{URL: pageURL, Err: fmt.Errorf("parse URL: %w", err)}
	}

	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return Result{}, &ParseError{URL: pageURL, Err: err}
	}

	content := CollapseWhitespace(article.TextContent)
	if content == "" {
		return Result{}, &ParseError{URL: pageURL}
	}

	meta, metaErr := readMeta(body)
	if metaErr != nil {
		e.log.WarnContext(ctx, "Failed to read page metadata",
			"error", metaErr,
			"url", pageURL)
	}

	result := Result{
		Title:            firstNonEmpty(article.Title, meta.title, parsedURL.String()),
		Content:          content,
		FormattedContent: strings.TrimSpace(article.Content),
		WordCount:        WordCount(content),
		PublishedTime:    article.PublishedTime,
	}
	if result.PublishedTime == nil {
		result.PublishedTime = meta.publishedTime
	}

	if author := firstNonEmpty(article.Byline, meta.author); author != "" {
		result.Author = &author
	}

	return result, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", closeErr,
				"url", pageURL)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}

	return body, nil
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
