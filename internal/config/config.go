package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultSocketPath is the well-known endpoint consumers connect to.
const DefaultSocketPath = "/tmp/rpi_raw_frame_socket"

// Source kinds.
const (
	SourcePattern = "pattern"
	SourceFFmpeg  = "ffmpeg"
	SourceNone    = "none"
)

type Config struct {
	SocketPath         string
	PollInterval       time.Duration
	HoldSlotDuringSend bool
	InternalAPIAddr    string
	LogDevelopment     bool
	Source             SourceConfig
}

// SourceConfig describes the built-in frame producer.
type SourceConfig struct {
	Kind   string
	URL    string
	Width  int
	Height int
	FPS    int
}

// FrameSize is the byte length of one 8-bit grayscale frame.
func (s SourceConfig) FrameSize() int {
	return s.Width * s.Height
}

// keys maps viper keys to the environment variables that override them.
var keys = map[string]string{
	"socket.path":                 "SOCKET_PATH",
	"relay.poll_interval":         "POLL_INTERVAL",
	"relay.hold_slot_during_send": "HOLD_SLOT_DURING_SEND",
	"api.listen":                  "INTERNAL_API_ADDR",
	"log.development":             "LOG_DEVELOPMENT",
	"source.kind":                 "SOURCE_KIND",
	"source.url":                  "SOURCE_URL",
	"source.width":                "FRAME_WIDTH",
	"source.height":               "FRAME_HEIGHT",
	"source.fps":                  "SOURCE_FPS",
}

// flagKeys maps command-line flag names to viper keys.
var flagKeys = map[string]string{
	"socket":        "socket.path",
	"poll-interval": "relay.poll_interval",
	"hold-slot":     "relay.hold_slot_during_send",
	"api-listen":    "api.listen",
	"dev":           "log.development",
	"source":        "source.kind",
	"source-url":    "source.url",
	"width":         "source.width",
	"height":        "source.height",
	"fps":           "source.fps",
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("socket.path", DefaultSocketPath)
	v.SetDefault("relay.poll_interval", time.Second)
	v.SetDefault("relay.hold_slot_during_send", true)
	v.SetDefault("api.listen", "127.0.0.1:9091")
	v.SetDefault("log.development", false)
	v.SetDefault("source.kind", SourcePattern)
	v.SetDefault("source.url", "")
	v.SetDefault("source.width", 640)
	v.SetDefault("source.height", 480)
	v.SetDefault("source.fps", 30)

	for key, env := range keys {
		v.BindEnv(key, env)
	}
	return v
}

// Load resolves configuration from defaults, an optional framerelay.yaml,
// environment variables and, when flags is non-nil, explicitly set flags.
// A "config" flag or FRAMERELAY_CONFIG selects a specific config file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	configFile := os.Getenv("FRAMERELAY_CONFIG")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("framerelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(os.ExpandEnv("$HOME/.framerelay"))
		v.AddConfigPath("/etc/framerelay")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		SocketPath:         v.GetString("socket.path"),
		PollInterval:       v.GetDuration("relay.poll_interval"),
		HoldSlotDuringSend: v.GetBool("relay.hold_slot_during_send"),
		InternalAPIAddr:    v.GetString("api.listen"),
		LogDevelopment:     v.GetBool("log.development"),
		Source: SourceConfig{
			Kind:   v.GetString("source.kind"),
			URL:    v.GetString("source.url"),
			Width:  v.GetInt("source.width"),
			Height: v.GetInt("source.height"),
			FPS:    v.GetInt("source.fps"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a relay and its source.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("socket path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}

	switch c.Source.Kind {
	case SourceNone:
		return nil
	case SourcePattern, SourceFFmpeg:
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Source.Width <= 0 || c.Source.Height <= 0 {
		return fmt.Errorf("invalid frame geometry %dx%d", c.Source.Width, c.Source.Height)
	}
	if c.Source.FPS <= 0 {
		return fmt.Errorf("source fps must be positive, got %d", c.Source.FPS)
	}
	if c.Source.Kind == SourceFFmpeg && c.Source.URL == "" {
		return errors.New("ffmpeg source requires a source url")
	}
	return nil
}
