package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const (
	GroqName = "groq"

	groqBaseURL         = "https://api.groq.com/openai/v1/"
	groqModel           = "llama-3.3-70b-versatile"
	groqMaxTokens int64 = 500
)

// GroqProvider talks to Groq through its OpenAI-compatible chat API.
type GroqProvider struct {
	client     openai.Client
	tokenLimit int
}

func NewGroqProvider(apiKey string, tokenLimit int, opts ...option.RequestOption) *GroqProvider {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(groqBaseURL),
		option.WithMaxRetries(0),
	}, opts...)

	return &GroqProvider{
		client:     openai.NewClient(opts...),
		tokenLimit: tokenLimit,
	}
}

func (p *GroqProvider) Name() string    { return GroqName }
func (p *GroqProvider) TokenLimit() int { return p.tokenLimit }

func (p *GroqProvider) Summarize(ctx context.Context, content string, wordCount int) (Result, error) {
	if err := CheckTokenBudget(GroqName, wordCount, p.tokenLimit); err != nil {
		return Result{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: groqModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(envelopePrompt(content)),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(groqMaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Result{}, &ProviderError{Provider: GroqName, Err: fmt.Errorf("do request: %w", err)}
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Result{}, &ProviderError{Provider: GroqName, Err: errors.New("completion is empty")}
	}

	return decodeEnvelope(GroqName, completion.Choices[0].Message.Content)
}
