// Package config loads hub configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Sync   SyncConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// RedisConfig holds backing-store connection settings. ForceMemory
// skips the startup probe and pins the hub to the in-process fallback.
type RedisConfig struct {
	Addr         string
	Password     string //nolint:gosec // G117: Redis connection config
	DB           int
	ProbeTimeout time.Duration
	ForceMemory  bool
}

// SyncConfig holds liveness tuning for connections and presence.
type SyncConfig struct {
	PingInterval  time.Duration // transport keepalive ping cadence
	ReadTimeout   time.Duration // connection considered dead after this silence
	PresenceSweep time.Duration // reaper cadence for expired heartbeats
}

// Load reads configuration from environment variables. Defaults are
// safe for local development.
func Load() (*Config, error) {
	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	probeTimeout, err := getEnvDuration("BOARDSYNC_REDIS_PROBE_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	forceMemory, err := getEnvBool("BOARDSYNC_FORCE_MEMORY", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pingInterval, err := getEnvDuration("BOARDSYNC_PING_INTERVAL", 25*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	connTimeout, err := getEnvDuration("BOARDSYNC_CONN_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceSweep, err := getEnvDuration("BOARDSYNC_PRESENCE_SWEEP", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("BOARDSYNC_SERVER_ADDR", ":3001"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Redis: RedisConfig{
			Addr:         getEnv("BOARDSYNC_REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:           redisDB,
			ProbeTimeout: probeTimeout,
			ForceMemory:  forceMemory,
		},
		Sync: SyncConfig{
			PingInterval:  pingInterval,
			ReadTimeout:   connTimeout,
			PresenceSweep: presenceSweep,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks value bounds.
func (c *Config) validate() error {
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Redis.ProbeTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_REDIS_PROBE_TIMEOUT must be positive, got %s", c.Redis.ProbeTimeout)
	}
	if c.Sync.PingInterval <= 0 {
		return fmt.Errorf("BOARDSYNC_PING_INTERVAL must be positive, got %s", c.Sync.PingInterval)
	}
	if c.Sync.ReadTimeout <= c.Sync.PingInterval {
		return fmt.Errorf("BOARDSYNC_CONN_TIMEOUT (%s) must exceed BOARDSYNC_PING_INTERVAL (%s)",
			c.Sync.ReadTimeout, c.Sync.PingInterval)
	}
	if c.Sync.PresenceSweep <= 0 {
		return fmt.Errorf("BOARDSYNC_PRESENCE_SWEEP must be positive, got %s", c.Sync.PresenceSweep)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
