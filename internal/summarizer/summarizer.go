package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	// Rough words-to-tokens ratio for English prose.
	wordsPerToken = 0.75

	systemPrompt = "You are a professional summarizer. Provide clear, concise summaries while maintaining key information."

	envelopeInstructions = `Summarize the following article in a few short paragraphs and suggest up to five short, lowercase topical tags.

Respond with JSON only, in this exact format:
{"summary": "the summary", "tags": ["tag1", "tag2"]}

Article:
`

	plainInstructions = `Summarize the following article in a few short paragraphs. Respond with the summary text only.

Article:
`
)

var (
	ErrContentTooLarge    = errors.New("content too large")
	ErrProvider           = errors.New("provider failure")
	ErrMalformedResponse  = errors.New("malformed provider response")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrNoProvidersEnabled = errors.New("no providers enabled")
)

// Result is a normalized provider output. Tags is comma-joined.
type Result struct {
	Provider string
	Summary  string
	Tags     string
}

// Provider turns article text into a summary.
type Provider interface {
	Name() string
	TokenLimit() int
	Summarize(ctx context.Context, content string, wordCount int) (Result, error)
}

type ContentTooLargeError struct {
	Provider  string
	Estimated int
	Limit     int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf("%s: content is too large (estimated %d tokens, limit %d)", e.Provider, e.Estimated, e.Limit)
}

func (e *ContentTooLargeError) Unwrap() error { return ErrContentTooLarge }

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProvider, e.Err} }

type MalformedResponseError struct {
	Provider string
	Payload  string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error { return []error{ErrMalformedResponse, e.Err} }

func EstimateTokens(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(wordCount) / wordsPerToken))
}

// CheckTokenBudget must run before any network call.
func CheckTokenBudget(provider string, wordCount, limit int) error {
	estimated := EstimateTokens(wordCount)
	if estimated > limit {
		return &ContentTooLargeError{Provider: provider, Estimated: estimated, Limit: limit}
	}
	return nil
}

func envelopePrompt(content string) string {
	return envelopeInstructions + content
}

func plainPrompt(content string) string {
	return plainInstructions + content
}

type envelope struct {
	Summary *string         `json:"summary"`
	Tags    json.RawMessage `json:"tags"`
}

// decodeEnvelope parses {"summary": string, "tags": []string | string}.
func decodeEnvelope(provider, payload string) (Result, error) {
	text := stripCodeFence(payload)

	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Result{}, &MalformedResponseError{Provider: provider, Payload: payload, Err: fmt.Errorf("decode JSON: %w", err)}
	}

	if env.Summary == nil || strings.TrimSpace(*env.Summary) == "" {
		return Result{}, &MalformedResponseError{Provider: provider, Payload: payload, Err: errors.New("summary is missing")}
	}

	tags, err := decodeTags(env.Tags)
	if err != nil {
		return Result{}, &MalformedResponseError{Provider: provider, Payload: payload, Err: err}
	}

	return Result{
		Provider: provider,
		Summary:  strings.TrimSpace(*env.Summary),
		Tags:     tags,
	}, nil
}

func decodeTags(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return joinTags(list), nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("decode tags: %w", err)
	}

	return joinTags(strings.Split(single, ",")), nil
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

var codeFenceRegex = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.+?)\\s*```\\s*$")

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeFenceRegex.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return s
}
