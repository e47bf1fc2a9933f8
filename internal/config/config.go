// Package config provides configuration for the traffic service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	Host     string
	HTTPPort int

	// Runner settings
	RunTimeout time.Duration // per-subprocess ceiling for bounded tools

	// Sudo session
	SudoTimeout time.Duration // sliding expiry window

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Logging
	LogLevel string
}

// fileConfig is the optional YAML overlay; zero fields keep the env value.
type fileConfig struct {
	Host           string `yaml:"host"`
	HTTPPort       int    `yaml:"http_port"`
	RunTimeoutSec  int    `yaml:"run_timeout_sec"`
	SudoTimeoutSec int    `yaml:"sudo_timeout_sec"`
	LogLevel       string `yaml:"log_level"`
}

// Load loads configuration from environment variables, then overlays the
// YAML file named by TRAFFICD_CONFIG when set.
func Load() (*Config, error) {
	cfg := &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		HTTPPort:       getEnvInt("HTTP_PORT", 9000),
		RunTimeout:     time.Duration(getEnvInt("RUN_TIMEOUT_SEC", 300)) * time.Second,
		SudoTimeout:    time.Duration(getEnvInt("SUDO_TIMEOUT_SEC", 900)) * time.Second,
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	if path := os.Getenv("TRAFFICD_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.Host != "" {
		c.Host = fc.Host
	}
	if fc.HTTPPort != 0 {
		c.HTTPPort = fc.HTTPPort
	}
	if fc.RunTimeoutSec != 0 {
		c.RunTimeout = time.Duration(fc.RunTimeoutSec) * time.Second
	}
	if fc.SudoTimeoutSec != 0 {
		c.SudoTimeout = time.Duration(fc.SudoTimeoutSec) * time.Second
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
