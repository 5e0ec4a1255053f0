// Package config loads server settings from a YAML file, a .env file and
// CCTV_* environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avfs/avfs"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rafall04/cctv-sub000/tier"
)

// Config holds every tunable of the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Playback PlaybackConfig `yaml:"playback"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	ViewerPage string `yaml:"viewer_page"`
	StaticDir  string `yaml:"static_dir"`
}

type StreamConfig struct {
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	FrameBufferSize int           `yaml:"frame_buffer_size"`
	ClientBuffer    int           `yaml:"client_buffer_size"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
	HealthInterval  time.Duration `yaml:"health_interval"`
	MaxStall        time.Duration `yaml:"max_stall"`
	AutoStopIdle    bool          `yaml:"auto_stop_idle"`
}

type PlaybackConfig struct {
	// Tier is low, medium, high or auto (detect from the host).
	Tier                string        `yaml:"tier"`
	PauseDelay          time.Duration `yaml:"pause_delay"`
	AutoResume          bool          `yaml:"auto_resume"`
	VisibilityThreshold float64       `yaml:"visibility_threshold"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8091",
			ViewerPage: "./stream_viewer.html",
			StaticDir:  "./",
		},
		Stream: StreamConfig{
			Width:           640,
			Height:          480,
			FrameBufferSize: 100,
			ClientBuffer:    10,
			RestartDelay:    2 * time.Second,
			HealthInterval:  5 * time.Second,
			MaxStall:        10 * time.Second,
		},
		Playback: PlaybackConfig{
			Tier:                "auto",
			AutoResume:          true,
			VisibilityThreshold: 0.1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path from vfs over the defaults. A missing file is not an error.
// Environment overrides are applied afterwards.
func Load(vfs avfs.VFS, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := vfs.ReadFile(path)
		switch {
		case isNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Stream.Width, c.Stream.Height)
	}
	if c.Stream.FrameBufferSize <= 0 || c.Stream.ClientBuffer <= 0 {
		return errors.New("buffer sizes must be positive")
	}
	if c.Stream.RestartDelay <= 0 || c.Stream.HealthInterval <= 0 || c.Stream.MaxStall <= 0 {
		return errors.New("stream restart delay, health interval and max stall must be positive")
	}
	if !isAuto(c.Playback.Tier) {
		if _, err := tier.Parse(c.Playback.Tier); err != nil {
			return fmt.Errorf("playback tier: %w", err)
		}
	}
	if c.Playback.PauseDelay < 0 || c.Playback.PauseDelay > 10*time.Second {
		return fmt.Errorf("pause delay %s out of range", c.Playback.PauseDelay)
	}
	if c.Playback.VisibilityThreshold < 0 || c.Playback.VisibilityThreshold > 1 {
		return fmt.Errorf("visibility threshold %v out of range", c.Playback.VisibilityThreshold)
	}
	return nil
}

// ResolveTier returns the configured tier, detecting the host for "auto".
func (c *Config) ResolveTier() (tier.Tier, error) {
	if isAuto(c.Playback.Tier) {
		return tier.DetectHost()
	}
	return tier.Parse(c.Playback.Tier)
}

func isAuto(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "auto")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, avfs.ErrNoSuchFileOrDir)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("CCTV_ADDR", &c.Server.Addr)
	str("CCTV_VIEWER_PAGE", &c.Server.ViewerPage)
	str("CCTV_TIER", &c.Playback.Tier)
	str("CCTV_LOG_LEVEL", &c.Log.Level)

	for _, err := range []error{
		integer("CCTV_WIDTH", &c.Stream.Width),
		integer("CCTV_HEIGHT", &c.Stream.Height),
		boolean("CCTV_AUTO_STOP_IDLE", &c.Stream.AutoStopIdle),
		boolean("CCTV_AUTO_RESUME", &c.Playback.AutoResume),
		boolean("CCTV_LOG_PRETTY", &c.Log.Pretty),
		duration("CCTV_PAUSE_DELAY", &c.Playback.PauseDelay),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
