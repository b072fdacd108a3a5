package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/auth"
	"github.com/jcgentr/article-summarizer/internal/billing"
	"github.com/jcgentr/article-summarizer/internal/bot"
	"github.com/jcgentr/article-summarizer/internal/config"
	"github.com/jcgentr/article-summarizer/internal/database"
	"github.com/jcgentr/article-summarizer/internal/discover"
	"github.com/jcgentr/article-summarizer/internal/domain"
	"github.com/jcgentr/article-summarizer/internal/extractor"
	"github.com/jcgentr/article-summarizer/internal/quota"
	"github.com/jcgentr/article-summarizer/internal/scheduler"
	"github.com/jcgentr/article-summarizer/internal/server"
	"github.com/jcgentr/article-summarizer/internal/summarizer"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v2/option"
)

const discoverTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config",
			"error", err)

		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	start := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return err
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	orchestrator, err := initSummarizer(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize summarizer",
			"error", err,
			"defaultProvider", cfg.SummaryProvider)

		return err
	}

	ledger := quota.NewLedger(map[domain.PlanType]int{
		domain.PlanFree: cfg.FreePlanLimit,
		domain.PlanPro:  cfg.ProPlanLimit,
	})

	repo := articles.New(db, extractor.New(cfg.FetchTimeout, log), orchestrator, ledger, log)

	discoverClient := discover.New(cfg.DiscoverFeedURL, &http.Client{Timeout: discoverTimeout}, log)

	srv := server.New(repo, initVerifier(ctx, cfg, log), log,
		server.WithDiscover(discoverClient),
		server.WithHealthCheck(db),
		server.WithBenchmark(cfg.BenchmarkEnabled),
		server.WithBilling(initBilling(ctx, cfg, db, log)),
	)

	sched := scheduler.New(ctx, cfg.CycleSweepSpec, db, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.CycleSweepSpec,
			"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

		return err
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.CycleSweepSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	var wg sync.WaitGroup

	if cfg.TelegramToken != "" {
		botInst, botErr := bot.New(cfg.TelegramToken, repo, discoverClient, cfg.AllowedUsers, log)
		if botErr != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", botErr,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return botErr
		}
		defer func() {
			botInst.Stop()
			log.InfoContext(ctx, "Bot is stopped",
				"uptimeSeconds", time.Since(start).Seconds())
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			botInst.Start(ctx)
		}()
		log.InfoContext(ctx, "Bot is started",
			"allowedUsersCount", len(cfg.AllowedUsers),
			"updateTimeoutSeconds", bot.BotUpdateTimeout)
	} else {
		log.WarnContext(ctx, "TELEGRAM_TOKEN is missing so bot is disabled",
			"envVar", "TELEGRAM_TOKEN")
	}

	err = srv.Run(ctx, cfg.HTTPAddr)
	if err != nil {
		log.ErrorContext(ctx, "HTTP server failed",
			"error", err,
			"addr", cfg.HTTPAddr)
	}

	stop()
	wg.Wait()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return err
}

// initSummarizer registers every provider that has an API key.
func initSummarizer(ctx context.Context, cfg config.Config, log *slog.Logger) (*summarizer.Orchestrator, error) {
	var providers []summarizer.Provider

	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, summarizer.NewAnthropicProvider(
			cfg.AnthropicAPIKey,
			cfg.AnthropicTokenLimit,
			anthropicoption.WithRequestTimeout(cfg.ProviderTimeout),
		))
	}

	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, summarizer.NewOpenAIProvider(
			cfg.OpenAIAPIKey,
			cfg.OpenAITokenLimit,
			openaioption.WithRequestTimeout(cfg.ProviderTimeout),
		))
	}

	if cfg.GroqAPIKey != "" {
		providers = append(providers, summarizer.NewGroqProvider(
			cfg.GroqAPIKey,
			cfg.GroqTokenLimit,
			openaioption.WithRequestTimeout(cfg.ProviderTimeout),
		))
	}

	if cfg.GeminiAPIKey != "" {
		providers = append(providers, summarizer.NewGeminiProvider(
			cfg.GeminiAPIKey,
			cfg.GeminiTokenLimit,
			summarizer.WithGeminiHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout}),
		))
	}

	orchestrator, err := summarizer.NewOrchestrator(cfg.SummaryProvider, log, providers...)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	log.InfoContext(ctx, "Summarizer is initialized",
		"defaultProvider", orchestrator.DefaultProvider(),
		"providers", orchestrator.Providers())

	return orchestrator, nil
}

func initVerifier(ctx context.Context, cfg config.Config, log *slog.Logger) *auth.Verifier {
	if cfg.JWTSecret == "" {
		log.WarnContext(ctx, "JWT_SECRET is missing so authenticated routes are disabled",
			"envVar", "JWT_SECRET")

		return nil
	}

	return auth.NewVerifier(cfg.JWTSecret)
}

// initBilling returns nil when Stripe is not configured; the server then
// answers billing routes with 503.
func initBilling(ctx context.Context, cfg config.Config, db *database.Database, log *slog.Logger) server.Billing {
	if cfg.StripeAPIKey == "" {
		log.WarnContext(ctx, "STRIPE_API_KEY is missing so billing is disabled",
			"envVar", "STRIPE_API_KEY")

		return nil
	}

	return billing.New(cfg.StripeAPIKey, cfg.StripePriceID, cfg.AppURL, db, log, nil)
}
