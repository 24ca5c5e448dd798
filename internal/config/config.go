// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package config loads layered configuration with Koanf v2. Precedence
// is environment variables over the optional YAML file over built-in
// defaults. Config is immutable after Load and safe for concurrent
// reads.
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

// DefaultConfigPaths lists where the config file is searched, first
// match wins.
var DefaultConfigPaths = []string{
	"festwire.yaml",
	"festwire.yml",
	"/etc/festwire/festwire.yaml",
	"/etc/festwire/festwire.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "FESTWIRE_CONFIG"

// Config holds all settings for both the server and terminal binaries.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Push    PushConfig    `koanf:"push"`
	Store   StoreConfig   `koanf:"store"`
	Client  ClientConfig  `koanf:"client"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds the command transport settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// PushConfig holds the push channel settings. Path is the websocket
// attach point served on Addr.
type PushConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// StoreConfig selects and locates the persistence backend. Backend is
// "badger" or "memory"; Seed inserts a demo catalog into an empty store.
type StoreConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Seed    bool   `koanf:"seed"`
}

// ClientConfig holds the terminal-side settings. PullInterval bounds
// how stale the local mirror can get when push events are dropped.
type ClientConfig struct {
	ServerAddr   string        `koanf:"server_addr"`
	PushURL      string        `koanf:"push_url"`
	PullInterval time.Duration `koanf:"pull_interval"`
}

// LoggingConfig mirrors the logging package's settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":55555",
		},
		Push: PushConfig{
			Addr: ":5000",
			Path: "/festival",
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/festwire",
			Seed:    true,
		},
		Client: ClientConfig{
			ServerAddr:   "127.0.0.1:55555",
			PushURL:      "ws://127.0.0.1:5000/festival",
			PullInterval: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file,
// and FESTWIRE_* environment variables, in rising precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("FESTWIRE_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings no component could start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Push.Addr == "" {
		return fmt.Errorf("push.addr must not be empty")
	}
	if !strings.HasPrefix(c.Push.Path, "/") {
		return fmt.Errorf("push.path %q must start with /", c.Push.Path)
	}
	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must not be empty for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend %q is not one of badger, memory", c.Store.Backend)
	}
	if c.Client.PullInterval <= 0 {
		return fmt.Errorf("client.pull_interval must be positive, got %s", c.Client.PullInterval)
	}
	return nil
}

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

// envTransformFunc maps FESTWIRE_* variables to config paths:
// FESTWIRE_SERVER_ADDR -> server.addr,
// FESTWIRE_CLIENT_PULL_INTERVAL -> client.pull_interval.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "FESTWIRE_"))

	mappings := map[string]string{
		"server_addr":          "server.addr",
		"push_addr":            "push.addr",
		"push_path":            "push.path",
		"store_backend":        "store.backend",
		"store_path":           "store.path",
		"store_seed":           "store.seed",
		"client_server_addr":   "client.server_addr",
		"client_push_url":      "client.push_url",
		"client_pull_interval": "client.pull_interval",
		"log_level":            "logging.level",
		"log_format":           "logging.format",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	// Unmapped keys are skipped so unrelated environment variables
	// cannot pollute the config.
	return ""
}
