package api

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
)

// Usage store backends selectable with USAGE_STORE.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config is the service configuration read from the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppName  string `env:"APP_NAME" envDefault:"fitmeter"`
	LogLevel string `env:"LOG_LEVEL"` // Overrides the APP_ENV preset when set

	UsageStore string `env:"USAGE_STORE" envDefault:"postgres"`
	BurstStore string `env:"BURST_STORE" envDefault:"memory"`

	UsageRetentionMonths int `env:"USAGE_RETENTION_MONTHS" envDefault:"0"` // 0 keeps counters forever; postgres only

	BurstAPIWindow time.Duration `env:"BURST_API_WINDOW" envDefault:"1m"`
	BurstAPIMax    int           `env:"BURST_API_MAX" envDefault:"120"`
	BurstAIWindow  time.Duration `env:"BURST_AI_WINDOW" envDefault:"1m"`
	BurstAIMax     int           `env:"BURST_AI_MAX" envDefault:"5"`

	BurstWebhookWindow time.Duration `env:"BURST_WEBHOOK_WINDOW" envDefault:"1m"`
	BurstWebhookMax    int           `env:"BURST_WEBHOOK_MAX" envDefault:"300"`
	TrustedIPHeaders   []string      `env:"TRUSTED_IP_HEADERS" envSeparator:","` // clientip.DefaultHeaders when empty

	PlansFile          string `env:"PLANS_FILE"` // Built-in plans when empty
	MilestoneThreshold int64  `env:"MILESTONE_THRESHOLD" envDefault:"10"`
	MilestoneTable     string `env:"MILESTONE_TABLE" envDefault:"workouts"`

	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`
}

// Bursts returns the configured burst windows.
func (c Config) Bursts() Bursts {
	return Bursts{
		API:     ratelimiter.Config{Window: c.BurstAPIWindow, MaxRequests: c.BurstAPIMax},
		AI:      ratelimiter.Config{Window: c.BurstAIWindow, MaxRequests: c.BurstAIMax},
		Webhook: ratelimiter.Config{Window: c.BurstWebhookWindow, MaxRequests: c.BurstWebhookMax},
	}
}

// Validate implements config.Validator.
func (c Config) Validate() error {
	switch c.UsageStore {
	case StorePostgres, StoreRedis, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unsupported USAGE_STORE %q", c.UsageStore)
	}
	switch c.BurstStore {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unsupported BURST_STORE %q", c.BurstStore)
	}
	if c.UsageRetentionMonths < 0 {
		return fmt.Errorf("USAGE_RETENTION_MONTHS must not be negative, got %d", c.UsageRetentionMonths)
	}
	b := c.Bursts()
	if err := b.API.Validate(); err != nil {
		return fmt.Errorf("BURST_API: %w", err)
	}
	if err := b.AI.Validate(); err != nil {
		return fmt.Errorf("BURST_AI: %w", err)
	}
	if err := b.Webhook.Validate(); err != nil {
		return fmt.Errorf("BURST_WEBHOOK: %w", err)
	}
	return nil
}

// Bursts holds the burst windows the service enforces.
type Bursts struct {
	API     ratelimiter.Config // Every authenticated request, keyed by user
	AI      ratelimiter.Config // AI plan generation
	Webhook ratelimiter.Config // Billing webhooks, keyed by client IP
}
