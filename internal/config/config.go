// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package config loads FlixChat configuration using Koanf v2 with layered
// sources. Precedence: environment variables > YAML config file > built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable that overrides the config
// file search path.
const ConfigPathEnvVar = "FLIXCHAT_CONFIG"

// DefaultConfigPaths are searched in order for a YAML config file.
var DefaultConfigPaths = []string{
	"flixchat.yaml",
	"config/flixchat.yaml",
	"/etc/flixchat/flixchat.yaml",
}

// Config is the root configuration for the FlixChat server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Calls    CallsConfig    `koanf:"calls"`
	Stories  StoriesConfig  `koanf:"stories"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SecurityConfig holds authentication and abuse-prevention settings.
type SecurityConfig struct {
	// JWTSecret signs session tokens. Required, minimum 32 characters.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername/AdminPassword seed the admin account at startup.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	BcryptCost int `koanf:"bcrypt_cost"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GatewayConfig holds WebSocket gateway tuning.
type GatewayConfig struct {
	// SendBufferSize is the per-connection outbound queue length. When a
	// client's queue is full, events for that client are dropped and the
	// connection is closed.
	SendBufferSize int `koanf:"send_buffer_size"`

	// BroadcastBufferSize is the hub's pending-broadcast queue length.
	BroadcastBufferSize int `koanf:"broadcast_buffer_size"`

	MaxMessageSize int64         `koanf:"max_message_size"`
	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`

	// InboundRate/InboundBurst bound how many frames a single connection
	// may submit per second.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// CallsConfig holds call lifecycle settings.
type CallsConfig struct {
	// RingTimeout is how long a call may stay in the initiated state
	// before the sweeper marks it missed.
	RingTimeout   time.Duration `koanf:"ring_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// StoriesConfig holds story settings.
type StoriesConfig struct {
	// TTL is the story time-to-live from creation.
	TTL time.Duration `koanf:"ttl"`
}

// defaultConfig returns the built-in defaults.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "admin",
			BcryptCost:        12,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Gateway: GatewayConfig{
			SendBufferSize:      256,
			BroadcastBufferSize: 256,
			MaxMessageSize:      64 * 1024,
			WriteWait:           10 * time.Second,
			PongWait:            60 * time.Second,
			InboundRate:         20,
			InboundBurst:        40,
		},
		Calls: CallsConfig{
			RingTimeout:   60 * time.Second,
			SweepInterval: 10 * time.Second,
		},
		Stories: StoriesConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. FLIXCHAT_-prefixed environment variables (highest priority)
//
// Environment variables map section and key with underscores:
// FLIXCHAT_SERVER_PORT -> server.port,
// FLIXCHAT_SECURITY_JWT_SECRET -> security.jwt_secret.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("FLIXCHAT_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps FLIXCHAT_SECTION_SOME_KEY to section.some_key.
// The first underscore separates the section; the rest of the name keeps
// its underscores.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "FLIXCHAT_"))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// sourced from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required (set FLIXCHAT_SECURITY_JWT_SECRET)")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost must be between 4 and 31, got %d", c.Security.BcryptCost)
	}
	if c.Gateway.SendBufferSize < 1 {
		return fmt.Errorf("gateway.send_buffer_size must be positive, got %d", c.Gateway.SendBufferSize)
	}
	if c.Calls.RingTimeout <= 0 {
		return fmt.Errorf("calls.ring_timeout must be positive, got %v", c.Calls.RingTimeout)
	}
	if c.Stories.TTL <= 0 {
		return fmt.Errorf("stories.ttl must be positive, got %v", c.Stories.TTL)
	}
	return nil
}
