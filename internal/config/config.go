package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Billing     BillingConfig             `json:"billing"`
	Chat        ChatConfig                `json:"chat"`
}

type BasicConfig struct {
	ServerAddress      string `json:"server_address"`
	MaxConcurrentTurns int    `json:"max_concurrent_turns"`
	AccessTokenTTL     int    `json:"access_token_ttl_hours"`
	TokenSweepInterval int    `json:"token_sweep_interval_minutes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BillingConfig struct {
	StripeAPIKey        string            `json:"stripe_api_key"`
	StripeWebhookSecret string            `json:"stripe_webhook_secret"`
	Currency            string            `json:"currency"`
	PlanAmounts         map[string]int64  `json:"plan_amounts"`
	SubscriptionPrices  map[string]string `json:"subscription_prices"`
}

// ChatConfig tunes the conversational core: which assistant runs turns, the
// rotation budget, and the polling cadence.
type ChatConfig struct {
	Provider            string  `json:"provider"`
	AssistantID         string  `json:"assistant_id"`
	ContextCeiling      int     `json:"context_ceiling_tokens"`
	RotationFraction    float64 `json:"rotation_fraction"`
	CharsPerToken       int     `json:"chars_per_token"`
	BudgetWindow        int     `json:"budget_window"`
	SummaryWindow       int     `json:"summary_window"`
	SummaryMaxTokens    int     `json:"summary_max_tokens"`
	PollIntervalSeconds int     `json:"poll_interval_seconds"`
	PollMaxAttempts     int     `json:"poll_max_attempts"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.MaxConcurrentTurns <= 0 {
		c.BasicConfig.MaxConcurrentTurns = 64
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "usd"
	}
	if c.Chat.Provider == "" {
		c.Chat.Provider = "openai"
	}
	if c.Chat.ContextCeiling <= 0 {
		c.Chat.ContextCeiling = 32768
	}
	if c.Chat.RotationFraction <= 0 || c.Chat.RotationFraction >= 1 {
		c.Chat.RotationFraction = 0.78
	}
	if c.Chat.CharsPerToken <= 0 {
		c.Chat.CharsPerToken = 4
	}
	if c.Chat.BudgetWindow <= 0 {
		c.Chat.BudgetWindow = 100
	}
	if c.Chat.SummaryWindow <= 0 {
		c.Chat.SummaryWindow = 20
	}
	if c.Chat.SummaryMaxTokens <= 0 {
		c.Chat.SummaryMaxTokens = 6000
	}
	if c.Chat.PollIntervalSeconds <= 0 {
		c.Chat.PollIntervalSeconds = 2
	}
	if c.Chat.PollMaxAttempts <= 0 {
		c.Chat.PollMaxAttempts = 45
	}
}

// RotationThreshold is the estimated token count above which a thread rotates.
func (c *ChatConfig) RotationThreshold() int {
	return int(float64(c.ContextCeiling) * c.RotationFraction)
}
