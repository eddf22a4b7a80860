// File: internal/config/config.go
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProxyConfig routes outbound AI calls through a forward proxy.
// URL wins over host/port when both are present; empty means direct.
type ProxyConfig struct {
	URL      string `yaml:"url"` // http://.. | https://.. | socks5://..
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AIConfig struct {
	APIKeys        []string      `yaml:"api_keys"`
	Models         []string      `yaml:"models"`
	BaseURL        string        `yaml:"base_url"`
	MaxOutput      int           `yaml:"max_output_tokens"`
	MinDelay       time.Duration `yaml:"min_delay"`    // politeness spacing after a successful call
	BackoffBase    time.Duration `yaml:"backoff_base"` // first quota cooldown, doubles per consecutive failure
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	SlotWaitLimit  time.Duration `yaml:"slot_wait_limit"` // ceiling on waiting for a free credential
	MaxAttempts    int           `yaml:"max_attempts"`    // total attempts across slots per request
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Offline          bool `yaml:"offline"` // deterministic evaluator, no network
	OfflineThreshold int  `yaml:"offline_threshold"`

	Proxy ProxyConfig `yaml:"proxy"`
}

type CheckerConfig struct {
	Workers    int           `yaml:"workers"`
	ReportsDir string        `yaml:"reports_dir"`
	JobTimeout time.Duration `yaml:"job_timeout"` // soft per-job ceiling; 0 disables
}

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Checker CheckerConfig `yaml:"checker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.ApplyDefaults()

	if !cfg.AI.Offline && len(cfg.AI.APIKeys) == 0 {
		return nil, fmt.Errorf("config: ai.api_keys is empty and offline mode is off")
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values. Split out of LoadConfig so tests can
// construct configs without a yaml file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.AI.Models) == 0 {
		cfg.AI.Models = []string{"gemini-2.0-flash", "gemini-2.0-flash-lite"}
	}
	if cfg.AI.MaxOutput <= 0 {
		cfg.AI.MaxOutput = 8192
	}
	if cfg.AI.MinDelay <= 0 {
		cfg.AI.MinDelay = 10 * time.Second
	}
	if cfg.AI.BackoffBase <= 0 {
		cfg.AI.BackoffBase = time.Minute
	}
	if cfg.AI.BackoffCap <= 0 {
		cfg.AI.BackoffCap = 8 * time.Minute
	}
	if cfg.AI.SlotWaitLimit <= 0 {
		cfg.AI.SlotWaitLimit = 10 * time.Minute
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 10
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 2 * time.Minute
	}
	if cfg.AI.OfflineThreshold <= 0 {
		cfg.AI.OfflineThreshold = 400
	}
	if cfg.Checker.Workers <= 0 {
		cfg.Checker.Workers = 4
	}
	if cfg.Checker.ReportsDir == "" {
		cfg.Checker.ReportsDir = "reports"
	}
}

// Resolve returns the effective proxy URL. The yaml section wins; otherwise
// the conventional environment variables are honoured so deployments behind
// a VPN keep working unchanged. Empty result means direct connection.
func (p ProxyConfig) Resolve() string {
	if p.URL != "" {
		return p.URL
	}
	if p.Host != "" && p.Port > 0 {
		if p.Username != "" && p.Password != "" {
			return fmt.Sprintf("socks5://%s:%s@%s:%d", p.Username, p.Password, p.Host, p.Port)
		}
		return fmt.Sprintf("socks5://%s:%d", p.Host, p.Port)
	}
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if host, port := os.Getenv("PROXY_HOST"), os.Getenv("PROXY_PORT"); host != "" && port != "" {
		user, pass := os.Getenv("PROXY_USER"), os.Getenv("PROXY_PASS")
		if user != "" && pass != "" {
			return fmt.Sprintf("socks5://%s:%s@%s:%s", user, pass, host, port)
		}
		return fmt.Sprintf("socks5://%s:%s", host, port)
	}
	return ""
}
