package config_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/socketio"
	"github.com/aretw0/weft/pkg/adapters/websocket"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports/tests"
	"github.com/aretw0/weft/pkg/schema"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "weft.yaml", `
log_level: debug
log_format: json
history_limit: 20
clean_close_policy: partial
engine:
  url: ws://engine:9000/runs/{workflow}
  transport: websocket
store:
  kind: redis
  redis_addr: cache:6379
  redis_db: 2
  prefix: "canvas:"
  ttl: 24h
templates_dir: ./library
http:
  addr: ":9090"
`)
	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, "partial", cfg.CleanClosePolicy)
	assert.Equal(t, "ws://engine:9000/runs/{workflow}", cfg.Engine.URL)
	assert.Equal(t, config.StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "cache:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 2, cfg.Store.RedisDB)
	assert.Equal(t, "canvas:", cfg.Store.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "./library", cfg.TemplatesDir)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	// untouched keys keep their defaults
	assert.Equal(t, config.Default().Engine.Timeout, cfg.Engine.Timeout)
}

func TestLoad_Schemas(t *testing.T) {
	path := write(t, "weft.yaml", `
schemas:
  api:
    url: string
    retries: int?
`)
	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	reg := cfg.Registry()
	require.NotNil(t, reg)
	s, ok := reg.Lookup("api")
	require.True(t, ok)
	assert.True(t, s["url"].Required)
	assert.False(t, s["retries"].Required)

	assert.NoError(t, reg.Validate("api", map[string]any{"url": "https://x"}))
	assert.Error(t, reg.Validate("api", map[string]any{}))
	assert.Nil(t, config.Default().Registry())
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "weft.json", `{"store": {"kind": "memory"}, "history_limit": 5}`)
	cfg, err := config.Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := config.Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = config.Load(missing, true)
	assert.Error(t, err)

	cfg, err = config.Load("", true)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "log_level: [\n"},
		{"level", "log_level: loud\n"},
		{"format", "log_format: xml\n"},
		{"history", "history_limit: -1\n"},
		{"policy", "clean_close_policy: drop\n"},
		{"transport", "engine:\n  transport: grpc\n"},
		{"store", "store:\n  kind: s3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, "weft.yaml", tt.content), true)
			assert.Error(t, err)
		})
	}
}

func TestRecords_File(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = t.TempDir()

	mgr, err := cfg.Records(logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, tests.NewRecord("wf", "r1", time.Now())))
	_, err = os.Stat(filepath.Join(cfg.Store.Path, "wf", "r1.json"))
	assert.NoError(t, err)
}

func TestRecords_RedisWithRedaction(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.RedisAddr = mr.Addr()
	cfg.Store.Prefix = "test:"
	cfg.Store.Redact = true

	mgr, err := cfg.Records(logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	rec := tests.NewRecord("wf", "r1", time.Now())
	rec.Nodes = []domain.ExecutionNodeView{{
		ID:      "n",
		Runtime: &domain.RuntimeSnapshot{Inputs: map[string]any{"api_key": "sk-123", "q": "x"}},
	}}
	require.NoError(t, mgr.Save(ctx, rec))

	loaded, err := mgr.Load(ctx, "wf", "r1")
	require.NoError(t, err)
	inputs := loaded.Nodes[0].Runtime.Inputs.(map[string]any)
	assert.Equal(t, "***", inputs["api_key"])
	assert.Equal(t, "x", inputs["q"])

	var prefixed bool
	for _, k := range mr.Keys() {
		if len(k) > 5 && k[:5] == "test:" {
			prefixed = true
		}
	}
	assert.True(t, prefixed)
}

func TestRecords_Encrypted(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = t.TempDir()
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

	mgr, err := cfg.Records(logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	rec := tests.NewRecord("wf", "r1", time.Now())
	rec.Append(domain.LogEntry{Timestamp: time.Now(), Level: domain.LevelInfo, Message: "private detail"})
	require.NoError(t, mgr.Save(ctx, rec))

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Path, "wf", "r1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sealed"`)
	assert.NotContains(t, string(raw), "private detail")

	loaded, err := mgr.Load(ctx, "wf", "r1")
	require.NoError(t, err)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, "private detail", loaded.Logs[0].Message)

	cfg.Store.EncryptionKey = "not base64!"
	_, err = cfg.Records(logging.NewNop())
	assert.Error(t, err)

	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = cfg.Records(logging.NewNop())
	assert.Error(t, err)
}

func TestDialer(t *testing.T) {
	cfg := config.Default()

	d, err := cfg.Dialer(logging.NewNop())
	require.NoError(t, err)
	ws, ok := d.(*websocket.Dialer)
	require.True(t, ok)
	assert.Equal(t, "ws://localhost:8000/ws/wf%201", ws.URL("wf 1"))

	cfg.Engine.Transport = config.TransportSocketIO
	cfg.Engine.URL = "http://engine:8000/socket.io/"
	cfg.Engine.Namespace = "/runs/{workflow}"
	d, err = cfg.Dialer(logging.NewNop())
	require.NoError(t, err)
	sio, ok := d.(*socketio.Dialer)
	require.True(t, ok)
	assert.Equal(t, "/runs/wf", sio.Namespace("wf"))

	cfg.Engine.URL = ""
	_, err = cfg.Dialer(logging.NewNop())
	assert.ErrorIs(t, err, config.ErrNoEngineURL)
}

func TestSessionOptions(t *testing.T) {
	cfg := config.Default()
	cfg.CleanClosePolicy = "bogus"
	_, err := cfg.SessionOptions(logging.NewNop())
	assert.Error(t, err)

	cfg.CleanClosePolicy = "partial"
	opts, err := cfg.SessionOptions(logging.NewNop())
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Schemas = map[string]schema.Schema{"api": {"url": schema.Required(schema.String())}}
	opts, err = cfg.SessionOptions(logging.NewNop())
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}
