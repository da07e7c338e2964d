// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token   string `yaml:"token"`
	Workers int    `yaml:"workers"` // polling workers
	// SendRate is the global outbound message budget per second.
	SendRate float64 `yaml:"send_rate"`
	Locale   string  `yaml:"locale"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KubeConfig struct {
	// Kubeconfig is used only when in-cluster configuration is unavailable.
	Kubeconfig string `yaml:"kubeconfig"`
}

type ResearchConfig struct {
	Image         string `yaml:"image"`
	ModelID       string `yaml:"model_id"`
	SecretName    string `yaml:"secret_name"`
	CPURequest    string `yaml:"cpu_request"`
	CPULimit      string `yaml:"cpu_limit"`
	MemoryRequest string `yaml:"memory_request"`
	MemoryLimit   string `yaml:"memory_limit"`

	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxStatusFailures drops a job after this many consecutive status errors.
	// Zero selects the default; a negative value retries forever.
	MaxStatusFailures int `yaml:"max_status_failures"`

	RateLimit     int           `yaml:"rate_limit"` // requests per chat per window
	RateLimitSpan time.Duration `yaml:"rate_limit_window"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Redis    RedisConfig    `yaml:"redis"`
	Kube     KubeConfig     `yaml:"kube"`
	Research ResearchConfig `yaml:"research"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultModelID = "qwen/qwq-32b:free"
	DefaultImage   = "ghcr.io/maccam912/open_deep_research_telegram_k8s/open-deep-research:latest"
)

// LoadConfig reads the YAML file at path (a missing file is allowed), applies
// environment overrides and defaults, then validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required (set TELEGRAM_BOT_TOKEN)")
	}
	if cfg.Research.PollInterval < time.Second {
		return nil, errors.New("research.poll_interval must be at least 1s")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		cfg.Research.ModelID = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" {
		cfg.Kube.Kubeconfig = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_PORT: %w", err)
		}
		cfg.Admin.Port = p
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.SendRate <= 0 {
		cfg.Bot.SendRate = 25
	}
	if cfg.Bot.Locale == "" {
		cfg.Bot.Locale = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}

	r := &cfg.Research
	if r.ModelID == "" {
		r.ModelID = DefaultModelID
	}
	if r.Image == "" {
		r.Image = DefaultImage
	}
	if r.SecretName == "" {
		r.SecretName = "research-api-secrets"
	}
	if r.CPURequest == "" {
		r.CPURequest = "500m"
	}
	if r.CPULimit == "" {
		r.CPULimit = "1"
	}
	if r.MemoryRequest == "" {
		r.MemoryRequest = "1Gi"
	}
	if r.MemoryLimit == "" {
		r.MemoryLimit = "2Gi"
	}
	if r.PollInterval == 0 {
		r.PollInterval = 10 * time.Second
	}
	if r.MaxStatusFailures == 0 {
		r.MaxStatusFailures = 30
	}
	if r.RateLimit <= 0 {
		r.RateLimit = 5
	}
	if r.RateLimitSpan <= 0 {
		r.RateLimitSpan = 10 * time.Minute
	}
}
