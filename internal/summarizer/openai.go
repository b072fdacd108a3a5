package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
)

const (
	OpenAIName = "openai"

	openAIModel                 = "gpt-4.1-mini"
	openAIMaxOutputTokens int64 = 1024
)

// OpenAIProvider calls OpenAI's Responses API and returns raw summary text.
type OpenAIProvider struct {
	client     openai.Client
	tokenLimit int
}

func NewOpenAIProvider(apiKey string, tokenLimit int, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		tokenLimit: tokenLimit,
	}
}

func (p *OpenAIProvider) Name() string    { return OpenAIName }
func (p *OpenAIProvider) TokenLimit() int { return p.tokenLimit }

func (p *OpenAIProvider) Summarize(ctx context.Context, content string, wordCount int) (Result, error) {
	if err := CheckTokenBudget(OpenAIName, wordCount, p.tokenLimit); err != nil {
		return Result{}, err
	}

	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:           openAIModel,
		MaxOutputTokens: openai.Int(openAIMaxOutputTokens),
		Temperature:     openai.Float(0),
		Instructions:    openai.String(systemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(plainPrompt(content)),
		},
	})
	if err != nil {
		return Result{}, &ProviderError{Provider: OpenAIName, Err: fmt.Errorf("do request: %w", err)}
	}

	if resp.Status == "incomplete" {
		return Result{}, &ProviderError{
			Provider: OpenAIName,
			Err:      fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason),
		}
	}

	summary := strings.TrimSpace(resp.OutputText())
	if summary == "" {
		return Result{}, &ProviderError{Provider: OpenAIName, Err: errors.New("output text is missing")}
	}

	return Result{Provider: OpenAIName, Summary: summary}, nil
}
