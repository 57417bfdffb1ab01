package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insight/internal/infra/provider"
)

var aiEnvVars = []string{
	"AI_CONFIG_FILE",
	"AI_PROVIDER",
	"AI_MODEL",
	"AI_BASE_URL",
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"AI_RATE_LIMIT_RPS",
	"AI_RATE_LIMIT_BURST",
	"AI_CB_FAILURE_THRESHOLD",
	"AI_CB_RESET_TIMEOUT",
	"AI_CB_CALL_TIMEOUT",
	"AI_CB_HALF_OPEN_SUCCESSES",
	"AI_CACHE_MAX_ENTRIES",
	"AI_CACHE_TTL_RECOMMENDATION",
	"AI_CACHE_TTL_ANSWER",
	"AI_CACHE_TTL_DOCUMENT",
}

// clearAIEnv blanks every variable LoadAIConfig reads; t.Setenv restores them afterwards.
func clearAIEnv(t *testing.T) {
	t.Helper()
	for _, key := range aiEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoadAIConfig_Defaults(t *testing.T) {
	clearAIEnv(t)

	cfg, err := LoadAIConfig()
	require.NoError(t, err)

	assert.Equal(t, provider.NameNoOp, cfg.Provider)
	assert.Equal(t, 2.0, cfg.RateLimitRPS)
	assert.Equal(t, 1, cfg.RateLimitBurst)
	assert.Equal(t, BreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		CallTimeout:       20 * time.Second,
		HalfOpenSuccesses: 2,
	}, cfg.CircuitBreaker)
	assert.Equal(t, CacheConfig{
		MaxEntries:        10000,
		TTLRecommendation: time.Hour,
		TTLAnswer:         30 * time.Minute,
		TTLDocument:       24 * time.Hour,
	}, cfg.Cache)
}

func TestLoadAIConfig_EnvOverrides(t *testing.T) {
	clearAIEnv(t)
	t.Setenv("AI_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("AI_MODEL", "claude-haiku")
	t.Setenv("AI_RATE_LIMIT_RPS", "0.5")
	t.Setenv("AI_CB_FAILURE_THRESHOLD", "3")
	t.Setenv("AI_CB_RESET_TIMEOUT", "1m")
	t.Setenv("AI_CB_CALL_TIMEOUT", "45s")
	t.Setenv("AI_CB_HALF_OPEN_SUCCESSES", "1")
	t.Setenv("AI_CACHE_MAX_ENTRIES", "500")
	t.Setenv("AI_CACHE_TTL_ANSWER", "5m")

	cfg, err := LoadAIConfig()
	require.NoError(t, err)

	assert.Equal(t, provider.NameClaude, cfg.Provider)
	assert.Equal(t, "sk-ant-test", cfg.APIKey())
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.TTLs().Answer)
	assert.Equal(t, time.Hour, cfg.TTLs().Recommendation)

	bc := cfg.BreakerConfig()
	assert.Equal(t, "claude-api", bc.Name)
	assert.Equal(t, uint32(3), bc.FailureThreshold)
	assert.Equal(t, time.Minute, bc.ResetTimeout)
	assert.Equal(t, 45*time.Second, bc.CallTimeout)
	assert.Equal(t, uint32(1), bc.HalfOpenSuccesses)
	assert.NoError(t, bc.Validate())

	pc := cfg.ProviderConfig()
	assert.Equal(t, provider.Config{
		Name:      "claude",
		APIKey:    "sk-ant-test",
		Model:     "claude-haiku",
		RateLimit: 0.5,
		Burst:     1,
	}, pc)
}

func TestLoadAIConfig_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unparsable threshold",
			env:     map[string]string{"AI_CB_FAILURE_THRESHOLD": "many"},
			wantErr: "AI_CB_FAILURE_THRESHOLD",
		},
		{
			name:    "zero threshold",
			env:     map[string]string{"AI_CB_FAILURE_THRESHOLD": "0"},
			wantErr: "AI_CB_FAILURE_THRESHOLD",
		},
		{
			name:    "negative call timeout",
			env:     map[string]string{"AI_CB_CALL_TIMEOUT": "-1s"},
			wantErr: "AI_CB_CALL_TIMEOUT",
		},
		{
			name:    "bad ttl",
			env:     map[string]string{"AI_CACHE_TTL_DOCUMENT": "tomorrow"},
			wantErr: "AI_CACHE_TTL_DOCUMENT",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"AI_PROVIDER": "gemini"},
			wantErr: "AI_PROVIDER",
		},
		{
			name:    "claude without key",
			env:     map[string]string{"AI_PROVIDER": "claude"},
			wantErr: "ANTHROPIC_API_KEY",
		},
		{
			name:    "openai without key",
			env:     map[string]string{"AI_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "negative rate",
			env:     map[string]string{"AI_RATE_LIMIT_RPS": "-2"},
			wantErr: "AI_RATE_LIMIT_RPS",
		},
		{
			name:    "zero cache size",
			env:     map[string]string{"AI_CACHE_MAX_ENTRIES": "0"},
			wantErr: "AI_CACHE_MAX_ENTRIES",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAIEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadAIConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAIConfig_File(t *testing.T) {
	clearAIEnv(t)
	path := filepath.Join(t.TempDir(), "ai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  provider: openai
  model: gpt-4o
  rate_limit_rps: 5
  circuit_breaker:
    failure_threshold: 8
    reset_timeout: 2m
  cache:
    ttl_recommendation: 15m
`), 0o600))
	t.Setenv("AI_CONFIG_FILE", path)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_CB_FAILURE_THRESHOLD", "4")

	cfg, err := LoadAIConfig()
	require.NoError(t, err)

	assert.Equal(t, provider.NameOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 4, cfg.CircuitBreaker.FailureThreshold, "environment wins over the file")
	assert.Equal(t, 2*time.Minute, cfg.CircuitBreaker.ResetTimeout)
	assert.Equal(t, 20*time.Second, cfg.CircuitBreaker.CallTimeout, "keys absent from the file keep defaults")
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTLRecommendation)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTLDocument)
}

func TestLoadAIConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearAIEnv(t)
		t.Setenv("AI_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := LoadAIConfig()
		assert.ErrorContains(t, err, "read AI config file")
	})

	t.Run("unknown key", func(t *testing.T) {
		clearAIEnv(t)
		path := filepath.Join(t.TempDir(), "ai.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ai:\n  grpc_address: localhost:50051\n"), 0o600))
		t.Setenv("AI_CONFIG_FILE", path)

		_, err := LoadAIConfig()
		assert.ErrorContains(t, err, "parse AI config file")
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		clearAIEnv(t)
		path := filepath.Join(t.TempDir(), "ai.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		t.Setenv("AI_CONFIG_FILE", path)

		cfg, err := LoadAIConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultAIConfig().CircuitBreaker, cfg.CircuitBreaker)
	})
}

func TestAIConfig_APIKey(t *testing.T) {
	cfg := DefaultAIConfig()
	cfg.AnthropicAPIKey = "a"
	cfg.OpenAIAPIKey = "o"

	assert.Empty(t, cfg.APIKey())
	cfg.Provider = provider.NameClaude
	assert.Equal(t, "a", cfg.APIKey())
	cfg.Provider = provider.NameOpenAI
	assert.Equal(t, "o", cfg.APIKey())
}
