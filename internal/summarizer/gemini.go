package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	GeminiName = "gemini"

	geminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiModel   = "gemini-2.0-flash-lite"
)

type geminiRequest struct {
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Contents          []geminiContent       `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiProvider calls the generateContent REST endpoint directly.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	tokenLimit int
}

type GeminiOption func(*GeminiProvider)

func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) {
		p.httpClient = client
	}
}

func NewGeminiProvider(apiKey string, tokenLimit int, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    geminiBaseURL,
		model:      geminiModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokenLimit: tokenLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string    { return GeminiName }
func (p *GeminiProvider) TokenLimit() int { return p.tokenLimit }

func (p *GeminiProvider) Summarize(ctx context.Context, content string, wordCount int) (Result, error) {
	if err := CheckTokenBudget(GeminiName, wordCount, p.tokenLimit); err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: envelopePrompt(content)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return Result{}, &ProviderError{Provider: GeminiName, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, &ProviderError{Provider: GeminiName, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, &ProviderError{Provider: GeminiName, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, &ProviderError{
			Provider: GeminiName,
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var geminiResp geminiResponse
	if err = json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return Result{}, &ProviderError{Provider: GeminiName, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return Result{}, &ProviderError{Provider: GeminiName, Err: errors.New("response has no candidates")}
	}

	var text strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return decodeEnvelope(GeminiName, text.String())
}
