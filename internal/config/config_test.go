package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.InDelta(t, 0.3, cfg.Engine.EngageThreshold, 1e-9)
	assert.Equal(t, 20, cfg.Engine.MaxTurns)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "honeypot:session:", cfg.Store.KeyPrefix)
	assert.Equal(t, 3, cfg.Delivery.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Delivery.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.Delivery.MaxBackoff)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, []string{"groq", "openai", "anthropic", "grpc"}, cfg.Generator.Order)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("ENGAGE_THRESHOLD", "0.5")
	t.Setenv("MAX_TURNS", "8")
	t.Setenv("GENERATOR_ORDER", " anthropic , ,grpc")
	t.Setenv("CALLBACK_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHECK_DOMAIN_AGE", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.InDelta(t, 0.5, cfg.Engine.EngageThreshold, 1e-9)
	assert.Equal(t, 8, cfg.Engine.MaxTurns)
	assert.Equal(t, []string{"anthropic", "grpc"}, cfg.Generator.Order)
	assert.Equal(t, 3*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.Engine.CheckDomainAge)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string][2]string{
		"threshold":  {"ENGAGE_THRESHOLD", "1.5"},
		"max turns":  {"MAX_TURNS", "0"},
		"backend":    {"STORE_BACKEND", "postgres"},
		"provider":   {"GENERATOR_ORDER", "groq,gemini"},
		"attempts":   {"CALLBACK_MAX_ATTEMPTS", "0"},
		"empty port": {"PORT", ""},
		"whois":      {"WHOIS_TIMEOUT", "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_TURNS", "many")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Engine.MaxTurns)
	assert.Equal(t, time.Hour, cfg.Store.SessionTTL)
}

func TestGeneratorOrderAcceptsStatic(t *testing.T) {
	t.Setenv("GENERATOR_ORDER", "anthropic,static")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "static"}, cfg.Generator.Order)
}

func TestWhoisTimeoutIgnoredWithoutDomainAge(t *testing.T) {
	t.Setenv("WHOIS_TIMEOUT", "0s")
	t.Setenv("CHECK_DOMAIN_AGE", "false")

	_, err := Load()
	require.NoError(t, err)
}
