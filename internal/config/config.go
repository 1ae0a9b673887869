// File: internal/config/config.go
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BackendConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	ProbeInterval time.Duration `yaml:"probe_interval" validate:"gte=0"`
	MaxConcurrent int           `yaml:"max_concurrent" validate:"gte=0"` // 0 means unlimited
	// Token is sent as a static bearer credential. JWTSecret, when set, wins and
	// short-lived HS256 tokens are minted instead.
	Token      string        `yaml:"token"`
	JWTSecret  string        `yaml:"jwt_secret" validate:"omitempty,min=16"`
	JWTSubject string        `yaml:"jwt_subject"`
	JWTTTL     time.Duration `yaml:"jwt_ttl" validate:"gte=0"`
}

type JobsConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval" validate:"gte=0"`
	ChatPollInterval time.Duration `yaml:"chat_poll_interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	SubmitRetries    int           `yaml:"submit_retries" validate:"gte=0,lte=10"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" validate:"gte=0"`
	Retain           time.Duration `yaml:"retain"` // terminal jobs kept in memory; negative keeps them
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type GatewayConfig struct {
	Addr               string `yaml:"addr"`
	MetricsAddr        string `yaml:"metrics_addr"`
	Workers            int    `yaml:"workers" validate:"gte=0"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" validate:"gte=0"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" validate:"omitempty,min=16"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type RedisConfig struct {
	URL           string        `yaml:"url"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	TTL           time.Duration `yaml:"ttl"`
	SubmitLockTTL time.Duration `yaml:"submit_lock_ttl"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" validate:"omitempty,len=16|len=24|len=32"`
}

type HistoryConfig struct {
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Log      LogConfig      `yaml:"log"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Security SecurityConfig `yaml:"security"`
	History  HistoryConfig  `yaml:"history"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes yaml, applies defaults and validates the result.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// Default returns a config holding only defaults, for callers without a file.
func Default(baseURL string) *Config {
	cfg := &Config{Backend: BackendConfig{BaseURL: baseURL}}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.ProbeInterval <= 0 {
		c.Backend.ProbeInterval = 30 * time.Second
	}
	if c.Backend.JWTTTL <= 0 {
		c.Backend.JWTTTL = 15 * time.Minute
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = 2 * time.Second
	}
	if c.Jobs.ChatPollInterval <= 0 {
		c.Jobs.ChatPollInterval = 3 * time.Second
	}
	if c.Jobs.Timeout <= 0 {
		c.Jobs.Timeout = 5 * time.Minute
	}
	if c.Jobs.RetryBackoff <= 0 {
		c.Jobs.RetryBackoff = 500 * time.Millisecond
	}
	if c.Jobs.Retain == 0 {
		c.Jobs.Retain = 10 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Gateway.Addr == "" {
		c.Gateway.Addr = ":8090"
	}
	if c.Gateway.MetricsAddr == "" {
		c.Gateway.MetricsAddr = ":9090"
	}
	if c.Gateway.Workers <= 0 {
		c.Gateway.Workers = 4
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "vidiwise"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Redis.SubmitLockTTL <= 0 {
		c.Redis.SubmitLockTTL = c.Jobs.Timeout
	}
	if c.History.Retention <= 0 {
		c.History.Retention = 30 * 24 * time.Hour
	}
	if c.History.SweepInterval <= 0 {
		c.History.SweepInterval = time.Hour
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
