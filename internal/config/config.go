// Package config loads the server configuration from defaults, an optional
// config file (YAML, JSON or TOML) and AETHER_ environment variables, in
// increasing order of precedence.
//
// Environment variables name the nested key with underscores:
// session.idle_timeout is AETHER_SESSION_IDLE_TIMEOUT.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/varun-un/AetherConnect/internal/auth"
	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/cache"
	"github.com/varun-un/AetherConnect/internal/catalog"
	"github.com/varun-un/AetherConnect/internal/propagation"
	"github.com/varun-un/AetherConnect/internal/session"
	"github.com/varun-un/AetherConnect/internal/stream"
	"github.com/varun-un/AetherConnect/internal/transform"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AETHER"

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig           `mapstructure:"server"`
	Log         LogConfig              `mapstructure:"log"`
	Auth        auth.Config            `mapstructure:"auth"`
	Cache       cache.Config           `mapstructure:"cache"`
	Propagation propagation.PropConfig `mapstructure:"propagation"`
	Session     session.Config         `mapstructure:"session"`
	Stream      stream.Config          `mapstructure:"stream"`
	Catalog     catalog.Config         `mapstructure:"catalog"`
	Narration   NarrationConfig        `mapstructure:"narration"`

	// Bodies replaces the built-in solar system when set.
	Bodies []bodies.Body `mapstructure:"bodies"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxPathPoints   int           `mapstructure:"max_path_points"` // Largest /orbit/path response
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn or error
	Format string `mapstructure:"format"` // json or text
}

// NarrationConfig locates the narration track. When AudioPath is set the
// track is probed for its duration, which clamps session clocks.
type NarrationConfig struct {
	AudioPath string `mapstructure:"audio_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxPathPoints:   100_000,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Cache: cache.Config{
			MaxEntries:    64,
			MaxBytes:      1 << 30,
			CheckInterval: 5 * time.Second,
		},
		Propagation: propagation.PropConfig{Workers: runtime.NumCPU()},
		Session:     session.DefaultConfig(),
		Stream:      stream.DefaultConfig(),
		Catalog:     catalog.Config{Driver: catalog.DriverSQLite},
	}
}

// setDefaults registers every scalar key so that environment variables can
// override keys absent from the config file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_path_points", d.Server.MaxPathPoints)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.token", d.Auth.Token)

	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.max_bytes", d.Cache.MaxBytes)
	v.SetDefault("cache.check_interval", d.Cache.CheckInterval)

	v.SetDefault("propagation.workers", d.Propagation.Workers)

	s := d.Session
	v.SetDefault("session.max_sessions", s.MaxSessions)
	v.SetDefault("session.idle_timeout", s.IdleTimeout)
	v.SetDefault("session.frame_every", s.FrameEvery)
	v.SetDefault("session.subscriber_buffer", s.SubscriberBuffer)
	v.SetDefault("session.track_points", s.TrackPoints)
	v.SetDefault("session.poll_interval", s.PollInterval)
	v.SetDefault("session.narration_duration", s.NarrationDuration)
	v.SetDefault("session.epoch", transform.DefaultEpoch.Format(time.RFC3339))
	v.SetDefault("session.animation.tickrate", s.Animation.TickRate)
	v.SetDefault("session.animation.basedayspersecond", s.Animation.BaseDaysPerSecond)
	v.SetDefault("session.animation.rotationspeedcap", s.Animation.RotationSpeedCap)
	v.SetDefault("session.animation.maxspeed", s.Animation.MaxSpeed)
	v.SetDefault("session.lesson.eccentricitycontrolat", s.Lesson.EccentricityControlAt)
	v.SetDefault("session.lesson.convergeatsecond", s.Lesson.ConvergeAtSecond)
	v.SetDefault("session.lesson.convergeinterval", s.Lesson.ConvergeInterval)
	v.SetDefault("session.lesson.deferredbodiesat", s.Lesson.DeferredBodiesAt)

	v.SetDefault("stream.max_concurrent_per_ip", d.Stream.MaxConcurrentPerIP)
	v.SetDefault("stream.max_concurrent", d.Stream.MaxConcurrent)
	v.SetDefault("stream.bandwidth_limit", d.Stream.BandwidthLimit)
	v.SetDefault("stream.keepalive_interval", d.Stream.KeepaliveInterval)
	v.SetDefault("stream.trust_proxy", d.Stream.TrustProxy)
	v.SetDefault("stream.allow_any_origin", d.Stream.AllowAnyOrigin)

	v.SetDefault("catalog.driver", d.Catalog.Driver)
	v.SetDefault("catalog.dsn", d.Catalog.DSN)

	v.SetDefault("narration.audio_path", "")
}

// Loader reads the configuration and can watch its file for changes.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for the config file at path. An empty path
// uses defaults and the environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path}
}

// Load reads the config file (if any), applies the environment and
// validates the result.
func (l *Loader) Load() (Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	cfg := Default()
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls fn with the reloaded configuration each time the config file
// changes. It is a no-op without a config file.
func (l *Loader) Watch(fn func(Config, error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.decode())
	})
	l.v.WatchConfig()
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token is required when auth is enabled"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	if c.Propagation.Workers < 1 {
		errs = append(errs, fmt.Errorf("propagation.workers %d must be at least 1", c.Propagation.Workers))
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxBytes < 0 {
		errs = append(errs, errors.New("cache bounds must not be negative"))
	}
	if c.Session.Animation.TickRate < 1 {
		errs = append(errs, fmt.Errorf("session.animation.tickRate %d must be at least 1", c.Session.Animation.TickRate))
	}
	if c.Server.MaxPathPoints < 1 {
		errs = append(errs, fmt.Errorf("server.max_path_points %d must be at least 1", c.Server.MaxPathPoints))
	}
	switch c.Catalog.Driver {
	case catalog.DriverSQLite, catalog.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("catalog.driver %q must be sqlite or postgres", c.Catalog.Driver))
	}
	if err := c.Session.Lesson.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Bodies) > 0 {
		if err := c.Dataset().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dataset returns the configured bodies, or the built-in solar system.
func (c Config) Dataset() *bodies.Dataset {
	if len(c.Bodies) == 0 {
		return bodies.SolarSystem()
	}
	return &bodies.Dataset{
		Source:   "config",
		LoadedAt: time.Now(),
		Bodies:   append([]bodies.Body(nil), c.Bodies...),
	}
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Level, err)
	}
	return level, nil
}

// Logger builds the process logger writing to w.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
