package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the review API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	AIEnabled          bool
	AIProvider         string
	OpenAIAPIKey       string
	OpenAIModel        string
	AnthropicAPIKey    string
	AIRequestTimeout   time.Duration
	QueueSweepInterval time.Duration
	ConfigCacheTTL     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASSIGNAI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "AssignAI Review API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.request_timeout", "45s")
	v.SetDefault("queue.sweep_interval", "30s")
	v.SetDefault("config.cache_ttl", "5m")

	aiTimeout, err := time.ParseDuration(v.GetString("ai.request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai request timeout: %w", err)
	}

	sweepInterval, err := time.ParseDuration(v.GetString("queue.sweep_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid queue sweep interval: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("config.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid config cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		AIEnabled:          v.GetBool("ai.enabled"),
		AIProvider:         strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIModel:        v.GetString("openai_model"),
		AnthropicAPIKey:    v.GetString("anthropic_api_key"),
		AIRequestTimeout:   aiTimeout,
		QueueSweepInterval: sweepInterval,
		ConfigCacheTTL:     cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}
