package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	HTTP struct {
		Port int
	}
	JWT struct {
		SecretKey string `yaml:"secret_key"`
	}
	Throttle struct {
		MinIntervalMs int // min ms between accepted samples per driver
		MinDistanceM  int // min metres between accepted samples per driver
	}
	Stale struct {
		WindowS       int // max silence before demotion (seconds)
		TickIntervalS int // staleness worker cadence (seconds)
	}
	ETA struct {
		TickIntervalS  int     // ETA worker cadence (seconds)
		SmoothingAlpha float64 // speed EWMA weight
	}
	Socket struct {
		OutboundQueue int // per-socket outbound buffer
	}
	Near struct {
		RadiusMaxM int // cap on near-query radius (metres)
	}
	Workers struct {
		Enabled bool // run staleness + ETA workers on this instance
	}
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// HTTP
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}

	// Tracking pipeline knobs
	if cfg.Throttle.MinIntervalMs == 0 {
		cfg.Throttle.MinIntervalMs = 2000
	}
	if cfg.Throttle.MinDistanceM == 0 {
		cfg.Throttle.MinDistanceM = 20
	}
	if cfg.Stale.WindowS == 0 {
		cfg.Stale.WindowS = 60
	}
	if cfg.Stale.TickIntervalS == 0 {
		cfg.Stale.TickIntervalS = 60
	}
	if cfg.ETA.TickIntervalS == 0 {
		cfg.ETA.TickIntervalS = 10
	}
	if cfg.ETA.SmoothingAlpha == 0 {
		cfg.ETA.SmoothingAlpha = 0.3
	}
	if cfg.Socket.OutboundQueue == 0 {
		cfg.Socket.OutboundQueue = 64
	}
	if cfg.Near.RadiusMaxM == 0 {
		cfg.Near.RadiusMaxM = 50000
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.name is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// HTTP
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, "http.port must be in 1..65535")
	}

	// Tracking knobs
	if c.Throttle.MinIntervalMs < 0 {
		problems = append(problems, "throttle.min_interval_ms cannot be negative")
	}
	if c.Throttle.MinDistanceM < 0 {
		problems = append(problems, "throttle.min_distance_m cannot be negative")
	}
	if c.Stale.WindowS <= 0 {
		problems = append(problems, "stale.window_s must be positive")
	}
	if c.Stale.TickIntervalS <= 0 {
		problems = append(problems, "stale.tick_interval_s must be positive")
	}
	if c.ETA.TickIntervalS <= 0 {
		problems = append(problems, "eta.tick_interval_s must be positive")
	}
	if c.ETA.SmoothingAlpha <= 0 || c.ETA.SmoothingAlpha > 1 {
		problems = append(problems, "eta.smoothing_alpha must be in (0,1]")
	}
	if c.Socket.OutboundQueue <= 0 {
		problems = append(problems, "socket.outbound_queue must be positive")
	}
	if c.Near.RadiusMaxM <= 0 {
		problems = append(problems, "near.radius_max_m must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ThrottleMinInterval returns throttle.min_interval_ms as a duration.
func (c *Config) ThrottleMinInterval() time.Duration {
	return time.Duration(c.Throttle.MinIntervalMs) * time.Millisecond
}

// StaleWindow returns stale.window_s as a duration.
func (c *Config) StaleWindow() time.Duration {
	return time.Duration(c.Stale.WindowS) * time.Second
}

// StaleTickInterval returns stale.tick_interval_s as a duration.
func (c *Config) StaleTickInterval() time.Duration {
	return time.Duration(c.Stale.TickIntervalS) * time.Second
}

// ETATickInterval returns eta.tick_interval_s as a duration.
func (c *Config) ETATickInterval() time.Duration {
	return time.Duration(c.ETA.TickIntervalS) * time.Second
}
