// Package config loads the text-generation provider settings shared by the
// API and worker binaries.
//
// Values are resolved in three layers: built-in defaults, an optional YAML file
// named by AI_CONFIG_FILE, then individual environment variables. Unlike the
// worker loader, LoadAIConfig fails closed: a malformed value is an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	envconfig "grant-insight/internal/pkg/config"
	"grant-insight/internal/infra/provider"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/resilience/circuitbreaker"
)

// AIConfig holds provider, breaker, pacing and cache settings.
type AIConfig struct {
	// Provider is claude, openai or noop.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`

	// API keys are only read from the environment.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	CircuitBreaker BreakerConfig `yaml:"circuit_breaker"`
	Cache          CacheConfig   `yaml:"cache"`
}

// BreakerConfig mirrors circuitbreaker.Config.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold"`
	ResetTimeout      time.Duration `yaml:"reset_timeout"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	HalfOpenSuccesses int           `yaml:"half_open_successes"`
}

// CacheConfig sizes the result cache and sets per-operation TTLs.
type CacheConfig struct {
	MaxEntries        int           `yaml:"max_entries"`
	TTLRecommendation time.Duration `yaml:"ttl_recommendation"`
	TTLAnswer         time.Duration `yaml:"ttl_answer"`
	TTLDocument       time.Duration `yaml:"ttl_document"`
}

// DefaultAIConfig returns the noop provider with production breaker and cache settings.
func DefaultAIConfig() AIConfig {
	ttls := cache.DefaultTTLs()
	return AIConfig{
		Provider:       provider.NameNoOp,
		RateLimitRPS:   2,
		RateLimitBurst: 1,
		CircuitBreaker: BreakerConfig{
			FailureThreshold:  5,
			ResetTimeout:      30 * time.Second,
			CallTimeout:       20 * time.Second,
			HalfOpenSuccesses: 2,
		},
		Cache: CacheConfig{
			MaxEntries:        cache.DefaultMaxEntries,
			TTLRecommendation: ttls.Recommendation,
			TTLAnswer:         ttls.Answer,
			TTLDocument:       ttls.Document,
		},
	}
}

// LoadAIConfig resolves defaults, AI_CONFIG_FILE and environment overrides,
// then validates the result.
func LoadAIConfig() (*AIConfig, error) {
	cfg := DefaultAIConfig()

	if path := os.Getenv("AI_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return &cfg, nil
}

func (c *AIConfig) applyEnv() error {
	var errs []error
	check := func(warnings []string, applied bool) {
		if applied {
			errs = append(errs, errors.New(strings.Join(warnings, "; ")))
		}
	}

	c.Provider = strings.ToLower(envconfig.LoadEnvString("AI_PROVIDER", c.Provider))
	c.Model = envconfig.LoadEnvString("AI_MODEL", c.Model)
	c.BaseURL = envconfig.LoadEnvString("AI_BASE_URL", c.BaseURL)
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	rps := envconfig.LoadEnvFloat("AI_RATE_LIMIT_RPS", c.RateLimitRPS, nil)
	c.RateLimitRPS = rps.Value
	check(rps.Warnings, rps.FallbackApplied)

	burst := envconfig.LoadEnvInt("AI_RATE_LIMIT_BURST", c.RateLimitBurst, nil)
	c.RateLimitBurst = burst.Value
	check(burst.Warnings, burst.FallbackApplied)

	threshold := envconfig.LoadEnvInt("AI_CB_FAILURE_THRESHOLD", c.CircuitBreaker.FailureThreshold, nil)
	c.CircuitBreaker.FailureThreshold = threshold.Value
	check(threshold.Warnings, threshold.FallbackApplied)

	reset := envconfig.LoadEnvDuration("AI_CB_RESET_TIMEOUT", c.CircuitBreaker.ResetTimeout, nil)
	c.CircuitBreaker.ResetTimeout = reset.Value
	check(reset.Warnings, reset.FallbackApplied)

	callTimeout := envconfig.LoadEnvDuration("AI_CB_CALL_TIMEOUT", c.CircuitBreaker.CallTimeout, nil)
	c.CircuitBreaker.CallTimeout = callTimeout.Value
	check(callTimeout.Warnings, callTimeout.FallbackApplied)

	halfOpen := envconfig.LoadEnvInt("AI_CB_HALF_OPEN_SUCCESSES", c.CircuitBreaker.HalfOpenSuccesses, nil)
	c.CircuitBreaker.HalfOpenSuccesses = halfOpen.Value
	check(halfOpen.Warnings, halfOpen.FallbackApplied)

	entries := envconfig.LoadEnvInt("AI_CACHE_MAX_ENTRIES", c.Cache.MaxEntries, nil)
	c.Cache.MaxEntries = entries.Value
	check(entries.Warnings, entries.FallbackApplied)

	for _, ttl := range []struct {
		key string
		dst *time.Duration
	}{
		{"AI_CACHE_TTL_RECOMMENDATION", &c.Cache.TTLRecommendation},
		{"AI_CACHE_TTL_ANSWER", &c.Cache.TTLAnswer},
		{"AI_CACHE_TTL_DOCUMENT", &c.Cache.TTLDocument},
	} {
		r := envconfig.LoadEnvDuration(ttl.key, *ttl.dst, nil)
		*ttl.dst = r.Value
		check(r.Warnings, r.FallbackApplied)
	}

	return errors.Join(errs...)
}

// Validate checks configuration correctness.
func (c *AIConfig) Validate() error {
	var errs []error

	switch c.Provider {
	case provider.NameClaude:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for provider claude"))
		}
	case provider.NameOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for provider openai"))
		}
	case provider.NameNoOp:
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be one of claude, openai, noop; got %q", c.Provider))
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("AI_RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("AI_RATE_LIMIT_BURST must be at least 1"))
	}

	if err := envconfig.Between(c.CircuitBreaker.FailureThreshold, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("AI_CB_FAILURE_THRESHOLD: %w", err))
	}
	if err := envconfig.Between(c.CircuitBreaker.HalfOpenSuccesses, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("AI_CB_HALF_OPEN_SUCCESSES: %w", err))
	}
	if err := envconfig.Positive(c.CircuitBreaker.ResetTimeout); err != nil {
		errs = append(errs, fmt.Errorf("AI_CB_RESET_TIMEOUT: %w", err))
	}
	if err := envconfig.Positive(c.CircuitBreaker.CallTimeout); err != nil {
		errs = append(errs, fmt.Errorf("AI_CB_CALL_TIMEOUT: %w", err))
	}

	if c.Cache.MaxEntries < 1 {
		errs = append(errs, errors.New("AI_CACHE_MAX_ENTRIES must be positive"))
	}
	for name, ttl := range map[string]time.Duration{
		"AI_CACHE_TTL_RECOMMENDATION": c.Cache.TTLRecommendation,
		"AI_CACHE_TTL_ANSWER":         c.Cache.TTLAnswer,
		"AI_CACHE_TTL_DOCUMENT":       c.Cache.TTLDocument,
	} {
		if err := envconfig.Positive(ttl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// APIKey returns the key for the selected provider.
func (c *AIConfig) APIKey() string {
	switch c.Provider {
	case provider.NameClaude:
		return c.AnthropicAPIKey
	case provider.NameOpenAI:
		return c.OpenAIAPIKey
	}
	return ""
}

// ProviderConfig builds the adapter configuration.
func (c *AIConfig) ProviderConfig() provider.Config {
	return provider.Config{
		Name:      c.Provider,
		APIKey:    c.APIKey(),
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		RateLimit: c.RateLimitRPS,
		Burst:     c.RateLimitBurst,
	}
}

// BreakerConfig builds the provider breaker configuration, named after the provider.
func (c *AIConfig) BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:              c.Provider + "-api",
		FailureThreshold:  uint32(c.CircuitBreaker.FailureThreshold),
		ResetTimeout:      c.CircuitBreaker.ResetTimeout,
		CallTimeout:       c.CircuitBreaker.CallTimeout,
		HalfOpenSuccesses: uint32(c.CircuitBreaker.HalfOpenSuccesses),
	}
}

// CacheStoreConfig builds the cache store configuration.
func (c *AIConfig) CacheStoreConfig() cache.Config {
	return cache.Config{MaxEntries: c.Cache.MaxEntries}
}

// TTLs returns the per-operation cache lifetimes.
func (c *AIConfig) TTLs() cache.TTLs {
	return cache.TTLs{
		Recommendation: c.Cache.TTLRecommendation,
		Answer:         c.Cache.TTLAnswer,
		Document:       c.Cache.TTLDocument,
	}
}
