// Package main provides the Argus server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Notify   NotifyConfig   `yaml:"notify"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	HTTPAddress     string `yaml:"http_address"`      // HTTP listen address (default: :8080)
	IntakeRateLimit int    `yaml:"intake_rate_limit"` // incidents per minute per source IP
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// NotifyConfig contains notification engine settings.
type NotifyConfig struct {
	Timezone    string          `yaml:"timezone"`    // IANA name for recurrence evaluation (default: local)
	MatchFanout int             `yaml:"match_fanout"` // concurrent profile evaluations
	SMSGateway  string          `yaml:"sms_gateway"` // email address of the SMS gateway; empty disables SMS
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
}

// BootstrapConfig toggles per-user defaults created with new users.
type BootstrapConfig struct {
	DefaultTimeslot    *bool `yaml:"default_timeslot"`    // default true
	DefaultDestination *bool `yaml:"default_destination"` // default true
}

// SMTPConfig contains outbound mail settings.
type SMTPConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"` // 465 implicit TLS, 587 STARTTLS
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"` // prefer ARGUS_SMTP_PASSWORD
	From      string        `yaml:"from"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // outbound calls per second, 0 disables
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default: :9090
}

// envOverrides are environment settings layered over the file, so secrets
// stay out of config files checked into version control.
type envOverrides struct {
	DatabasePath string `envconfig:"DATABASE_PATH"`
	SMSGateway   string `envconfig:"SMS_GATEWAY"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
}

// LoadConfig loads configuration from a YAML file with ARGUS_* environment
// variables layered on top.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := cfg.applyEnv(); err != nil {
		// Malformed environment is a startup error either way; keep the
		// zero overrides and let Validate report what is missing.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cfg.setDefaults()
	return cfg
}

// applyEnv layers ARGUS_* environment variables over the file config.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("argus", &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	if env.DatabasePath != "" {
		c.Database.Path = env.DatabasePath
	}
	if env.SMSGateway != "" {
		c.Notify.SMSGateway = env.SMSGateway
	}
	if env.SMTPUsername != "" {
		c.SMTP.Username = env.SMTPUsername
	}
	if env.SMTPPassword != "" {
		c.SMTP.Password = env.SMTPPassword
	}
	if env.SMTPFrom != "" {
		c.SMTP.From = env.SMTPFrom
	}
	return nil
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.IntakeRateLimit == 0 {
		c.Server.IntakeRateLimit = 600
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/argus.db"
	}
	if c.Notify.MatchFanout == 0 {
		c.Notify.MatchFanout = 8
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Notify.MatchFanout < 1 {
		return fmt.Errorf("notify.match_fanout must be positive")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port must be a valid port")
	}
	if c.Notify.Timezone != "" {
		if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
			return fmt.Errorf("notify.timezone: %w", err)
		}
	}
	return nil
}

// CreateDefaultTimeslot returns the bootstrap toggle with its default.
func (c *Config) CreateDefaultTimeslot() bool {
	if c.Notify.Bootstrap.DefaultTimeslot == nil {
		return true
	}
	return *c.Notify.Bootstrap.DefaultTimeslot
}

// CreateDefaultDestination returns the bootstrap toggle with its default.
func (c *Config) CreateDefaultDestination() bool {
	if c.Notify.Bootstrap.DefaultDestination == nil {
		return true
	}
	return *c.Notify.Bootstrap.DefaultDestination
}
