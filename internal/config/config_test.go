package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRAMERELAY_CONFIG", "")
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.True(t, cfg.HoldSlotDuringSend)
	assert.Equal(t, SourcePattern, cfg.Source.Kind)
	assert.Equal(t, 640*480, cfg.Source.FrameSize())
	assert.Equal(t, 30, cfg.Source.FPS)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FRAMERELAY_CONFIG", "")
	t.Setenv("SOCKET_PATH", "/tmp/other.sock")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("HOLD_SLOT_DURING_SEND", "false")
	t.Setenv("FRAME_WIDTH", "320")
	t.Setenv("FRAME_HEIGHT", "240")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.sock", cfg.SocketPath)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.HoldSlotDuringSend)
	assert.Equal(t, 320*240, cfg.Source.FrameSize())
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("FRAMERELAY_CONFIG", "")
	t.Setenv("SOCKET_PATH", "/tmp/env.sock")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("socket", "", "")
	flags.Int("fps", 0, "")
	require.NoError(t, flags.Parse([]string{"--socket", "/tmp/flag.sock"}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/flag.sock", cfg.SocketPath)
	// unset flags fall through to defaults
	assert.Equal(t, 30, cfg.Source.FPS)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	data := []byte("socket:\n  path: /tmp/file.sock\nsource:\n  kind: none\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("FRAMERELAY_CONFIG", path)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/file.sock", cfg.SocketPath)
	assert.Equal(t, SourceNone, cfg.Source.Kind)
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	t.Setenv("FRAMERELAY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SocketPath:   "/tmp/x.sock",
			PollInterval: time.Second,
			Source:       SourceConfig{Kind: SourcePattern, Width: 4, Height: 4, FPS: 10},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }},
		{"unknown kind", func(c *Config) { c.Source.Kind = "camera" }},
		{"zero width", func(c *Config) { c.Source.Width = 0 }},
		{"negative fps", func(c *Config) { c.Source.FPS = -1 }},
		{"ffmpeg without url", func(c *Config) { c.Source.Kind = SourceFFmpeg }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	none := valid()
	none.Source = SourceConfig{Kind: SourceNone}
	assert.NoError(t, none.Validate(), "geometry is irrelevant without a source")
}
