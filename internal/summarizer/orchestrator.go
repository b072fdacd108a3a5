package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type BenchmarkResult struct {
	Provider string        `json:"provider"`
	Duration time.Duration `json:"-"`
	// DurationMs mirrors Duration for JSON consumers.
	DurationMs int64  `json:"duration_ms"`
	Success    bool   `json:"success"`
	Summary    string `json:"summary,omitempty"`
	Tags       string `json:"tags,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Orchestrator selects a provider by name. It never falls back to another
// provider when the selected one fails.
type Orchestrator struct {
	defaultName string
	providers   []Provider
	byName      map[string]Provider
	log         *slog.Logger
}

func NewOrchestrator(defaultName string, log *slog.Logger, providers ...Provider) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProvidersEnabled
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("register provider %q: duplicate name", p.Name())
		}
		byName[p.Name()] = p
	}

	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q: %w", defaultName, ErrUnknownProvider)
	}

	return &Orchestrator{
		defaultName: defaultName,
		providers:   providers,
		byName:      byName,
		log:         log,
	}, nil
}

func (o *Orchestrator) DefaultProvider() string { return o.defaultName }

// Providers returns provider names in registration order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

func (o *Orchestrator) Summarize(ctx context.Context, content string, wordCount int) (Result, error) {
	return o.SummarizeWith(ctx, o.defaultName, content, wordCount)
}

func (o *Orchestrator) SummarizeWith(ctx context.Context, name, content string, wordCount int) (Result, error) {
	p, ok := o.byName[name]
	if !ok {
		return Result{}, fmt.Errorf("provider %q: %w", name, ErrUnknownProvider)
	}

	start := time.Now()
	result, err := p.Summarize(ctx, content, wordCount)
	if err != nil {
		o.log.WarnContext(ctx, "Provider failed to summarize",
			"error", err,
			"provider", name,
			"wordCount", wordCount,
			"estimatedTokens", EstimateTokens(wordCount),
			"tokenLimit", p.TokenLimit(),
			"durationMs", time.Since(start).Milliseconds())

		return Result{}, err
	}

	o.log.DebugContext(ctx, "Content is summarized",
		"provider", name,
		"wordCount", wordCount,
		"durationMs", time.Since(start).Milliseconds())

	result.Provider = name
	return result, nil
}

// BenchmarkAll runs every provider sequentially, in registration order, and
// keeps going past failures.
func (o *Orchestrator) BenchmarkAll(ctx context.Context, content string, wordCount int) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(o.providers))

	for _, p := range o.providers {
		start := time.Now()
		result, err := p.Summarize(ctx, content, wordCount)
		elapsed := time.Since(start)

		entry := BenchmarkResult{
			Provider:   p.Name(),
			Duration:   elapsed,
			DurationMs: elapsed.Milliseconds(),
			Success:    err == nil,
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Summary = result.Summary
			entry.Tags = result.Tags
		}

		results = append(results, entry)
	}

	return results
}
