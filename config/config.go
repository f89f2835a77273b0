package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/stream"
)

// EnvPrefix prefixes every environment override, e.g. KAIZEN_CHAT_BASE_URL
const EnvPrefix = "KAIZEN_CHAT"

// Config represents the application configuration
type Config struct {
	BaseURL        string            `mapstructure:"base_url"`
	Variant        string            `mapstructure:"variant"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	AnswerMarker   string            `mapstructure:"answer_marker"`
	AlertDuration  time.Duration     `mapstructure:"alert_duration"`
	Framing        string            `mapstructure:"framing"`
	Headers        map[string]string `mapstructure:"headers"`
	Theme          string            `mapstructure:"theme"`
	Log            LogConfig         `mapstructure:"log"`
	Breaker        BreakerConfig     `mapstructure:"breaker"`
	RateLimit      RateLimitConfig   `mapstructure:"rate_limit"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// BreakerConfig holds circuit breaker thresholds for server requests
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig throttles requests to the server. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid base_url %q: want an http(s) URL", c.BaseURL)
	}
	if _, err := api.ParseVariant(c.Variant); err != nil {
		return err
	}
	if _, err := stream.ParseFraming(c.Framing); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	return nil
}

// VariantName returns the validated variant
func (c *Config) VariantName() api.Variant {
	v, err := api.ParseVariant(c.Variant)
	if err != nil {
		return api.Butler
	}
	return v
}

// FramingMode returns the validated framing
func (c *Config) FramingMode() stream.Framing {
	f, err := stream.ParseFraming(c.Framing)
	if err != nil {
		return stream.FramingChunks
	}
	return f
}

// Manager loads layered configuration (defaults, config file, environment,
// flags) and persists user defaults back to the config file.
type Manager struct {
	configDir  string
	configPath string
	v          *viper.Viper
}

// NewManager creates a config manager. An empty path selects
// ~/.kaizen-chat/config.json.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".kaizen-chat", "config.json")
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m := &Manager{
		configDir:  configDir,
		configPath: path,
		v:          v,
	}

	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return m, nil
}

// Load reads the configuration file. A missing file is not an error.
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Viper exposes the underlying instance so commands can bind flags
func (m *Manager) Viper() *viper.Viper {
	return m.v
}

// Path returns the config file location
func (m *Manager) Path() string {
	return m.configPath
}

// Dir returns the directory holding the config file and logs
func (m *Manager) Dir() string {
	return m.configDir
}

// Config resolves and validates the effective configuration
func (m *Manager) Config() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults persists the default variant and base URL. Empty values leave
// the stored setting unchanged.
func (m *Manager) SetDefaults(variant, baseURL string) error {
	if variant != "" {
		v, err := api.ParseVariant(variant)
		if err != nil {
			return err
		}
		variant = string(v)
	}

	// Only write what the file already holds plus the new values, never
	// defaults or environment overrides.
	file := viper.New()
	file.SetConfigFile(m.configPath)
	file.SetConfigType("json")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	if variant != "" {
		file.Set("variant", variant)
	}
	if baseURL != "" {
		file.Set("base_url", strings.TrimRight(baseURL, "/"))
	}

	if err := file.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return m.Load()
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("variant", string(api.Butler))
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("answer_marker", "🤖 ")
	v.SetDefault("alert_duration", "5s")
	v.SetDefault("framing", string(stream.FramingChunks))
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("theme", "default")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", filepath.Join(configDir, "logs", "kaizen-chat.log"))

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", "30s")

	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 10)
}
