package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH"   envDefault:"db.sqlite"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	JWTSecret     string  `env:"JWT_SECRET"`
	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers  []int64 `env:"ALLOWED_USERS"`

	SummaryProvider string `env:"SUMMARY_PROVIDER" envDefault:"anthropic"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GroqAPIKey      string `env:"GROQ_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`

	OpenAITokenLimit    int `env:"OPENAI_TOKEN_LIMIT"    envDefault:"50000"`
	AnthropicTokenLimit int `env:"ANTHROPIC_TOKEN_LIMIT" envDefault:"50000"`
	GroqTokenLimit      int `env:"GROQ_TOKEN_LIMIT"      envDefault:"12000"`
	GeminiTokenLimit    int `env:"GEMINI_TOKEN_LIMIT"    envDefault:"50000"`

	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT"    envDefault:"20s"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"60s"`

	FreePlanLimit int `env:"FREE_PLAN_LIMIT" envDefault:"5"`
	ProPlanLimit  int `env:"PRO_PLAN_LIMIT"  envDefault:"100"`

	StripeAPIKey  string `env:"STRIPE_API_KEY"`
	StripePriceID string `env:"STRIPE_PRICE_ID"`
	AppURL        string `env:"APP_URL" envDefault:"http://localhost:8080"`

	DiscoverFeedURL  string `env:"DISCOVER_FEED_URL" envDefault:"https://news.ycombinator.com/rss"`
	BenchmarkEnabled bool   `env:"BENCHMARK_ENABLED"`
	CycleSweepSpec   string `env:"CYCLE_SWEEP_SPEC"  envDefault:"0 0 * * *"`
}

func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}
