package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the single source of service configuration. Every call
// site takes values from here; nothing else reads the environment.
type Config struct {
	AppPort string `mapstructure:"app_port"`

	// Public origin of this backend, used by the client-side link
	// and chat flows.
	BackendOrigin string `mapstructure:"backend_origin"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string `mapstructure:"google_redirect_url"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	DatabaseDSN string `mapstructure:"database_dsn"`

	// Account-aggregation provider (Plaid-compatible sandbox).
	PlaidBaseURL     string `mapstructure:"plaid_base_url"`
	PlaidClientID    string `mapstructure:"plaid_client_id"`
	PlaidSecret      string `mapstructure:"plaid_secret"`
	PlaidRedirectURI string `mapstructure:"plaid_redirect_uri"`

	// Upstream completion endpoint for the chatbot.
	ChatUpstreamURL string `mapstructure:"chat_upstream_url"`
	ChatUpstreamKey string `mapstructure:"chat_upstream_key"`
	ChatModel       string `mapstructure:"chat_model"`

	// Deadline applied to every outbound HTTP call. The retry bound
	// alone enforces no timeout, so one is imposed here.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// setDefaults registers every key so AutomaticEnv can fill it;
// viper only unmarshals keys it already knows about.
func setDefaults() {
	viper.SetDefault("app_port", "5001")
	viper.SetDefault("backend_origin", "http://localhost:5001")

	viper.SetDefault("google_client_id", "")
	viper.SetDefault("google_client_secret", "")
	viper.SetDefault("google_redirect_url", "")

	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_password", "")

	viper.SetDefault("database_dsn", "")

	viper.SetDefault("plaid_base_url", "https://sandbox.plaid.com")
	viper.SetDefault("plaid_client_id", "")
	viper.SetDefault("plaid_secret", "")
	viper.SetDefault("plaid_redirect_uri", "https://localhost:8000")

	viper.SetDefault("chat_upstream_url", "https://api.openai.com/v1/chat/completions")
	viper.SetDefault("chat_upstream_key", "")
	viper.SetDefault("chat_model", "gpt-4o")

	viper.SetDefault("http_timeout", 15*time.Second)
}

// Load reads configuration from an optional yaml file and the
// FYNN_-prefixed environment.
func Load() (Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/fynn")

	viper.SetEnvPrefix("FYNN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Env-only operation is fine; a broken file is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: failed to read file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	return cfg, nil
}
