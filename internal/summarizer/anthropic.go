package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	AnthropicName = "anthropic"

	anthropicModel           = "claude-3-5-haiku-20241022"
	anthropicMaxTokens int64 = 500
)

type AnthropicProvider struct {
	client     anthropic.Client
	tokenLimit int
}

func NewAnthropicProvider(apiKey string, tokenLimit int, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicProvider{
		client:     anthropic.NewClient(opts...),
		tokenLimit: tokenLimit,
	}
}

func (p *AnthropicProvider) Name() string    { return AnthropicName }
func (p *AnthropicProvider) TokenLimit() int { return p.tokenLimit }

func (p *AnthropicProvider) Summarize(ctx context.Context, content string, wordCount int) (Result, error) {
	if err := CheckTokenBudget(AnthropicName, wordCount, p.tokenLimit); err != nil {
		return Result{}, err
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropicModel,
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(envelopePrompt(content))),
		},
	})
	if err != nil {
		return Result{}, &ProviderError{Provider: AnthropicName, Err: fmt.Errorf("do request: %w", err)}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return Result{}, &ProviderError{Provider: AnthropicName, Err: errors.New("message has no text content")}
	}

	return decodeEnvelope(AnthropicName, text.String())
}
