package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/config"
)

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addGlobalFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nstore:\n  kind: redis\n  redis_addr: cache:6379\n"), 0o644))

	cfg, err := loadConfig(newTestCommand(t, "--config", path, "--store", "memory", "--engine-url", "ws://e/{workflow}"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "file value kept")
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind, "flag wins")
	assert.Equal(t, "cache:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "ws://e/{workflow}", cfg.Engine.URL)
}

func TestLoadConfig_DefaultFileIsOptional(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(newTestCommand(t))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Store.Kind, cfg.Store.Kind)

	_, err = loadConfig(newTestCommand(t, "--config", "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := loadConfig(newTestCommand(t, "--transport", "carrier-pigeon"))
	assert.Error(t, err)
}
