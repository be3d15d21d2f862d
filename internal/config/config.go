package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full client SDK configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Socket  SocketConfig  `mapstructure:"socket"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Tx      TxConfig      `mapstructure:"tx"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig configures the game REST API client.
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SocketConfig configures the push-channel WebSocket connection.
type SocketConfig struct {
	URL              string        `mapstructure:"url"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	MaxReconnects    int           `mapstructure:"max_reconnects"`
}

// ChainConfig configures ledger access.
type ChainConfig struct {
	Nodes    []string `mapstructure:"nodes"`
	Prefix   string   `mapstructure:"prefix"`
	TestMode bool     `mapstructure:"test_mode"`
}

// TxConfig configures the broadcast-confirmation engine.
type TxConfig struct {
	MaxPayloadBytes       int           `mapstructure:"max_payload_bytes"`
	RetryLimit            int           `mapstructure:"retry_limit"`
	RetryBackoff          time.Duration `mapstructure:"retry_backoff"`
	ConfirmTimeout        time.Duration `mapstructure:"confirm_timeout"`
	PaymentConfirmTimeout time.Duration `mapstructure:"payment_confirm_timeout"`
}

// StorageConfig configures local persisted state.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file, applying defaults and
// MANAFORGE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MANAFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "https://api.manaforge.io")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("socket.ping_interval", 30*time.Second)
	v.SetDefault("socket.reconnect_backoff", 5*time.Second)
	v.SetDefault("socket.max_reconnects", 10)

	v.SetDefault("chain.prefix", "mf_")
	v.SetDefault("chain.test_mode", false)

	v.SetDefault("tx.max_payload_bytes", 8192)
	v.SetDefault("tx.retry_limit", 2)
	v.SetDefault("tx.retry_backoff", 3*time.Second)
	v.SetDefault("tx.confirm_timeout", 30*time.Second)
	v.SetDefault("tx.payment_confirm_timeout", 120*time.Second)

	v.SetDefault("storage.path", "manaforge.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks for configuration values the SDK cannot run without.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if c.Tx.MaxPayloadBytes <= 0 {
		return fmt.Errorf("tx.max_payload_bytes must be positive")
	}
	if c.Tx.RetryLimit < 0 {
		return fmt.Errorf("tx.retry_limit must not be negative")
	}
	return nil
}
