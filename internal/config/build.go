package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/weft/pkg/adapters/file"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/adapters/socketio"
	"github.com/aretw0/weft/pkg/adapters/websocket"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/records"
)

// ErrNoEngineURL is returned by Dialer when engine.url is empty.
var ErrNoEngineURL = errors.New("engine url is not configured")

// Records builds the record store and wraps it in a records.Manager. The
// redis store also gets a distributed locker sharing its client.
func (c Config) Records(logger *slog.Logger) (*records.Manager, error) {
	var (
		store  ports.RecordStore
		locker ports.DistributedLocker
	)
	switch c.Store.Kind {
	case StoreMemory:
		store = memory.NewStore()
	case StoreFile, "":
		store = file.New(c.Store.Path)
	case StoreRedis:
		opts := []redis.Option{redis.WithTTL(c.Store.TTL)}
		prefix := redis.DefaultPrefix
		if c.Store.Prefix != "" {
			prefix = c.Store.Prefix
			opts = append(opts, redis.WithPrefix(prefix))
		}
		rs := redis.New(c.Store.RedisAddr, c.Store.RedisPassword, c.Store.RedisDB, opts...)
		store = rs
		locker = redis.NewLocker(rs.Client(), prefix)
	default:
		return nil, fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	var mws []middleware.Middleware
	if c.Store.Redact {
		mw, err := middleware.NewRedactionMiddleware(middleware.DefaultSecretPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if c.Store.EncryptionKey != "" {
		mw, err := c.Store.encryption()
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	store = middleware.Chain(store, mws...)

	opts := []records.Option{records.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, records.WithLocker(locker))
	}
	logger.Debug("Record store configured", "kind", c.Store.Kind, "redact", c.Store.Redact, "encrypted", c.Store.EncryptionKey != "")
	return records.NewManager(store, opts...), nil
}

func (s StoreConfig) encryption() (middleware.Middleware, error) {
	decode := func(name, v string) ([]byte, error) {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("store.%s is not valid base64: %w", name, err)
		}
		return key, nil
	}
	active, err := decode("encryption_key", s.EncryptionKey)
	if err != nil {
		return nil, err
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for _, v := range s.FallbackKeys {
		key, err := decode("fallback_keys", v)
		if err != nil {
			return nil, err
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(cfg)
}

// Dialer builds the engine dialer for the configured transport.
func (c Config) Dialer(logger *slog.Logger) (ports.Dialer, error) {
	if c.Engine.URL == "" {
		return nil, ErrNoEngineURL
	}
	switch c.Engine.Transport {
	case TransportWebSocket, "":
		opts := []websocket.Option{websocket.WithLogger(logger)}
		if c.Engine.Timeout > 0 {
			opts = append(opts, websocket.WithHandshakeTimeout(c.Engine.Timeout))
		}
		return websocket.New(c.Engine.URL, opts...), nil
	case TransportSocketIO:
		opts := []socketio.Option{socketio.WithLogger(logger)}
		if c.Engine.Namespace != "" {
			opts = append(opts, socketio.WithNamespace(c.Engine.Namespace))
		}
		if c.Engine.Timeout > 0 {
			opts = append(opts, socketio.WithConnectTimeout(c.Engine.Timeout))
		}
		return socketio.New(c.Engine.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown engine transport %q", c.Engine.Transport)
	}
}

// SessionOptions returns the editor options derived from the settings.
func (c Config) SessionOptions(logger *slog.Logger) ([]editor.Option, error) {
	policy, err := editor.ParseCleanClosePolicy(c.CleanClosePolicy)
	if err != nil {
		return nil, err
	}
	opts := []editor.Option{
		editor.WithCleanClosePolicy(policy),
		editor.WithLogger(logger),
	}
	if c.HistoryLimit > 0 {
		opts = append(opts, editor.WithHistoryLimit(c.HistoryLimit))
	}
	if reg := c.Registry(); reg != nil {
		opts = append(opts, editor.WithSchemas(reg))
	}
	return opts, nil
}
