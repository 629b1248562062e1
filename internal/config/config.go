// Package config loads the settings of the weft command from an optional
// YAML (or JSON) file. Command-line flags override file values; that merge
// happens in cmd/weft.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/aretw0/weft/pkg/history"
	"github.com/aretw0/weft/pkg/schema"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "weft.yaml"

// Engine transports.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Record store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// EngineConfig locates the execution engine.
type EngineConfig struct {
	// URL may contain the {workflow} placeholder (websocket transport).
	URL       string `yaml:"url" json:"url"`
	Transport string `yaml:"transport" json:"transport"`
	// Namespace is the socket.io namespace template (socketio transport).
	Namespace string        `yaml:"namespace" json:"namespace"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// StoreConfig selects where execution records are persisted.
type StoreConfig struct {
	Kind          string        `yaml:"kind" json:"kind"`
	Path          string        `yaml:"path" json:"path"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" json:"redis_password"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
	Prefix        string        `yaml:"prefix" json:"prefix"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	// Redact masks credential-looking keys in node payloads before saving.
	Redact        bool          `yaml:"redact" json:"redact"`
	// EncryptionKey (base64, 32 bytes) seals record bodies with AES-GCM.
	// FallbackKeys open records sealed with previous keys.
	EncryptionKey string        `yaml:"encryption_key" json:"encryption_key"`
	FallbackKeys  []string      `yaml:"fallback_keys" json:"fallback_keys"`
}

// HTTPConfig configures the records browser.
type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Config is the full set of settings.
type Config struct {
	LogLevel         string                   `yaml:"log_level" json:"log_level"`
	LogFormat        string                   `yaml:"log_format" json:"log_format"`
	HistoryLimit     int                      `yaml:"history_limit" json:"history_limit"`
	CleanClosePolicy string                   `yaml:"clean_close_policy" json:"clean_close_policy"`
	Engine           EngineConfig             `yaml:"engine" json:"engine"`
	Store            StoreConfig              `yaml:"store" json:"store"`
	TemplatesDir     string                   `yaml:"templates_dir" json:"templates_dir"`
	HTTP             HTTPConfig               `yaml:"http" json:"http"`
	// Schemas declares extension-data fields per node kind, e.g.
	// api: {url: string, method: "string?"}.
	Schemas          map[string]schema.Schema `yaml:"schemas" json:"schemas"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        string(logging.FormatText),
		HistoryLimit:     history.DefaultLimit,
		CleanClosePolicy: editor.CleanCloseKeep.String(),
		Engine: EngineConfig{
			URL:       "ws://localhost:8000/ws/{workflow}",
			Transport: TransportWebSocket,
			Timeout:   15 * time.Second,
		},
		Store: StoreConfig{
			Kind:      StoreFile,
			Path:      filepath.Join(".weft", "records"),
			RedisAddr: "localhost:6379",
		},
		TemplatesDir: "templates",
		HTTP:         HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated values and ranges.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	if _, err := editor.ParseCleanClosePolicy(c.CleanClosePolicy); err != nil {
		return err
	}
	switch c.Engine.Transport {
	case TransportWebSocket, TransportSocketIO, "":
	default:
		return fmt.Errorf("unknown engine transport %q", c.Engine.Transport)
	}
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis, "":
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative")
	}
	return nil
}

// Logger builds the application logger.
func (c Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level, logging.Format(c.LogFormat)), nil
}

// Registry returns the declared schemas, or nil when none are set.
func (c Config) Registry() *schema.Registry {
	if len(c.Schemas) == 0 {
		return nil
	}
	reg := schema.NewRegistry()
	for kind, s := range c.Schemas {
		reg.Register(kind, s)
	}
	return reg
}
