// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	LogLevel        slog.Level
	Engine          EngineConfig
	Store           StoreConfig
	Delivery        DeliveryConfig
	Generator       GeneratorConfig
	ConversationLog ConversationLogConfig
	Monitor         MonitorConfig
	API             APIConfig
}

// EngineConfig controls engagement decisions and forensics.
type EngineConfig struct {
	EngageThreshold float64
	MaxTurns        int
	DefaultPersona  string
	CheckSender     bool
	CheckDomainAge  bool
	WhoisTimeout    time.Duration
	DomainCacheTTL  time.Duration
	VocabularyFile  string
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend       string
	RedisURL      string
	RedisPassword string
	DBPath        string
	SessionTTL    time.Duration
	KeyPrefix     string
	PurgeInterval time.Duration
}

// DeliveryConfig controls final report delivery.
type DeliveryConfig struct {
	URL            string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	FallbackDir    string
}

// GeneratorConfig lists reply providers and their credentials.
type GeneratorConfig struct {
	Order           []string
	Timeout         time.Duration
	GroqAPIKey      string
	GroqModel       string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	PersonaAddr     string
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// MonitorConfig controls the live websocket feed.
type MonitorConfig struct {
	Enabled        bool
	HistorySize    int
	AllowedOrigins []string
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	APIKey         string
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
		Engine: EngineConfig{
			EngageThreshold: getEnvFloat("ENGAGE_THRESHOLD", 0.3),
			MaxTurns:        getEnvInt("MAX_TURNS", 20),
			DefaultPersona:  getEnv("DEFAULT_PERSONA", "confused_senior"),
			CheckSender:     getEnvBool("CHECK_SENDER", true),
			CheckDomainAge:  getEnvBool("CHECK_DOMAIN_AGE", true),
			WhoisTimeout:    getEnvDuration("WHOIS_TIMEOUT", 5*time.Second),
			DomainCacheTTL:  getEnvDuration("DOMAIN_CACHE_TTL", time.Hour),
			VocabularyFile:  getEnv("VOCABULARY_FILE", ""),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			DBPath:        getEnv("DB_PATH", "./data/decoy.db"),
			SessionTTL:    getEnvDuration("SESSION_TTL", time.Hour),
			KeyPrefix:     getEnv("SESSION_KEY_PREFIX", "honeypot:session:"),
			PurgeInterval: getEnvDuration("STORE_PURGE_INTERVAL", 5*time.Minute),
		},
		Delivery: DeliveryConfig{
			URL:            getEnv("CALLBACK_URL", ""),
			APIKey:         getEnv("CALLBACK_API_KEY", ""),
			Timeout:        getEnvDuration("CALLBACK_TIMEOUT", 10*time.Second),
			MaxAttempts:    getEnvInt("CALLBACK_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("CALLBACK_INITIAL_BACKOFF", 2*time.Second),
			MaxBackoff:     getEnvDuration("CALLBACK_MAX_BACKOFF", 10*time.Second),
			FallbackDir:    getEnv("FALLBACK_DIR", "./data/failed_reports"),
		},
		Generator: GeneratorConfig{
			Order:           getEnvList("GENERATOR_ORDER", []string{"groq", "openai", "anthropic", "grpc"}),
			Timeout:         getEnvDuration("GENERATOR_TIMEOUT", 8*time.Second),
			GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
			GroqModel:       getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			PersonaAddr:     getEnv("PERSONA_SERVICE_ADDR", ""),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Monitor: MonitorConfig{
			Enabled:        getEnvBool("MONITOR_ENABLED", true),
			HistorySize:    getEnvInt("MONITOR_HISTORY_SIZE", 200),
			AllowedOrigins: getEnvList("MONITOR_ALLOWED_ORIGINS", nil),
		},
		API: APIConfig{
			APIKey:         getEnv("API_KEY", ""),
			RatePerSecond:  getEnvFloat("RATE_LIMIT_PER_SECOND", 2),
			RateBurst:      getEnvInt("RATE_LIMIT_BURST", 5),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			MaxBodyBytes:   int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.Engine.EngageThreshold < 0 || c.Engine.EngageThreshold > 1 {
		return errors.New("ENGAGE_THRESHOLD must be within [0,1]")
	}
	if c.Engine.MaxTurns <= 0 {
		return errors.New("MAX_TURNS must be > 0")
	}
	if c.Engine.CheckDomainAge && c.Engine.WhoisTimeout <= 0 {
		return errors.New("WHOIS_TIMEOUT must be > 0 when CHECK_DOMAIN_AGE is enabled")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("REDIS_URL cannot be empty for the redis backend")
		}
	case BackendSQLite:
		if c.Store.DBPath == "" {
			return errors.New("DB_PATH cannot be empty for the sqlite backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of memory, redis, sqlite", c.Store.Backend)
	}
	if c.Store.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.Delivery.MaxAttempts <= 0 {
		return errors.New("CALLBACK_MAX_ATTEMPTS must be > 0")
	}
	if c.Delivery.FallbackDir == "" {
		return errors.New("FALLBACK_DIR cannot be empty")
	}
	for _, name := range c.Generator.Order {
		switch name {
		case "groq", "openai", "anthropic", "grpc", "static":
		default:
			return fmt.Errorf("GENERATOR_ORDER contains unknown provider %q", name)
		}
	}
	if c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return errors.New("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.API.RatePerSecond < 0 || c.API.RateBurst < 0 {
		return errors.New("rate limit settings cannot be negative")
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
