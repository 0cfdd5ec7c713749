package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SYNCDEMO_SERVER_PORT.
const EnvPrefix = "SYNCDEMO_"

type Config struct {
	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	Client ClientConfig `yaml:"client" envPrefix:"CLIENT_"`
	Demo   DemoConfig   `yaml:"demo" envPrefix:"DEMO_"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"HOST"`
}

// Addr is the listen address of the demo server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ClientConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	ClientID       string        `yaml:"client_id" env:"CLIENT_ID"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	// FailureThreshold is the number of consecutive failed polls after
	// which a job watch gives up. Zero retries forever.
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
}

// DemoConfig shapes the simulated work of the demo server.
type DemoConfig struct {
	JobSteps       int           `yaml:"job_steps" env:"JOB_STEPS"`
	StepDelay      time.Duration `yaml:"step_delay" env:"STEP_DELAY"`
	LogCount       int           `yaml:"log_count" env:"LOG_COUNT"`
	LogInterval    time.Duration `yaml:"log_interval" env:"LOG_INTERVAL"`
	MetricCount    int           `yaml:"metric_count" env:"METRIC_COUNT"`
	MetricInterval time.Duration `yaml:"metric_interval" env:"METRIC_INTERVAL"`
	DashboardDelay time.Duration `yaml:"dashboard_delay" env:"DASHBOARD_DELAY"`
}

type LogConfig struct {
	Level       string   `yaml:"level" env:"LEVEL"`
	Development bool     `yaml:"development" env:"DEVELOPMENT"`
	Output      []string `yaml:"output" env:"OUTPUT" envSeparator:","`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "127.0.0.1",
		},
		Client: ClientConfig{
			BaseURL:        "http://127.0.0.1:8000",
			ClientID:       "1",
			PollInterval:   time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Demo: DemoConfig{
			JobSteps:       10,
			StepDelay:      time.Second,
			LogCount:       50,
			LogInterval:    500 * time.Millisecond,
			MetricCount:    100,
			MetricInterval: time.Second,
			DashboardDelay: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Output: []string{"stderr"},
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault is Load, except that a missing file (or an empty path)
// yields the defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate rejects settings the client or server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Client.BaseURL == "" {
		errs = append(errs, errors.New("client.base_url is empty"))
	}
	if c.Client.PollInterval <= 0 {
		errs = append(errs, errors.New("client.poll_interval must be positive"))
	}
	if c.Client.FailureThreshold < 0 {
		errs = append(errs, errors.New("client.failure_threshold must not be negative"))
	}
	if c.Demo.JobSteps <= 0 {
		errs = append(errs, errors.New("demo.job_steps must be positive"))
	}
	return errors.Join(errs...)
}
