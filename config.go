package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Host             string
	Port             string
	PingInterval     time.Duration
	PingTimeout      time.Duration
	MaxMessageSize   int64
	SendQueueSize    int
	AllowedOrigins   []string
	UpgradeRateLimit int
	LogLevel         zerolog.Level
	LogPretty        bool
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) WebsocketOptions() WebsocketOptions {
	return WebsocketOptions{
		PingInterval:   c.PingInterval,
		PingTimeout:    c.PingTimeout,
		MaxMessageSize: c.MaxMessageSize,
		SendQueueSize:  c.SendQueueSize,
	}
}

func MustLoadConfig() *Config {
	godotenv.Load()
	cfg, err := LoadConfig(os.Getenv)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig reads the configuration through getenv, applying defaults for
// unset variables.
func LoadConfig(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Host: env("HOST", "0.0.0.0"),
		Port: env("PORT", "8765"),
	}

	var err error
	if cfg.PingInterval, err = parsePositiveDuration("PING_INTERVAL", env("PING_INTERVAL", "30s")); err != nil {
		return nil, err
	}
	if cfg.PingTimeout, err = parsePositiveDuration("PING_TIMEOUT", env("PING_TIMEOUT", "10s")); err != nil {
		return nil, err
	}

	maxSize, err := parseInt("MAX_MESSAGE_SIZE", env("MAX_MESSAGE_SIZE", "65536"), 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageSize = int64(maxSize)

	if cfg.SendQueueSize, err = parseInt("SEND_QUEUE_SIZE", env("SEND_QUEUE_SIZE", "256"), 1); err != nil {
		return nil, err
	}
	if cfg.UpgradeRateLimit, err = parseInt("UPGRADE_RATE_LIMIT", env("UPGRADE_RATE_LIMIT", "0"), 0); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(env("ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.LogLevel, err = zerolog.ParseLevel(env("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.LogPretty, err = strconv.ParseBool(env("LOG_PRETTY", "false")); err != nil {
		return nil, fmt.Errorf("LOG_PRETTY: %w", err)
	}
	return cfg, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, value)
	}
	return d, nil
}

func parseInt(key, value string, min int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", key, min, n)
	}
	return n, nil
}
