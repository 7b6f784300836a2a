// Package config provides Viper-based configuration loading for the
// room server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadHeaderTimeout bounds how long a client may take to send
	// request headers before the upgrade.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// WriteTimeout is the per-message write deadline on a room
	// connection.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is how long a connection may go without answering a
	// ping before it is considered dead.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// MaxMessageBytes caps the size of a single inbound wire message.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DirectoryConfig holds the GameOn map service handshake settings.
type DirectoryConfig struct {
	// Enabled controls whether the registration handshake runs at
	// startup. A disabled room still serves routed connections.
	Enabled bool `mapstructure:"enabled"`
	// URL is the directory's sites endpoint.
	URL string `mapstructure:"url"`
	// OwnerID is the GameOn user id that owns this room.
	OwnerID string `mapstructure:"owner_id"`
	// Key is the shared secret used to sign the handshake.
	Key string `mapstructure:"key"`
	// CallbackURL is the outward-facing ws:// endpoint the directory
	// routes players to.
	CallbackURL string `mapstructure:"callback_url"`
	// Timeout bounds the lookup and registration requests.
	Timeout time.Duration `mapstructure:"timeout"`
	// InsecureSkipVerify disables TLS certificate verification for the
	// directory connection. Local development only.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// RoomConfig locates the static room descriptor.
type RoomConfig struct {
	// File is the path to the room descriptor YAML file.
	File string `mapstructure:"file"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Room      RoomConfig      `mapstructure:"room"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDirectory(c.Directory); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Room.File == "" {
		errs = append(errs, "room.file must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if s.PongTimeout <= 0 {
		errs = append(errs, "server.pong_timeout must be positive")
	}
	if s.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Sprintf("server.max_message_bytes must be >= 1, got %d", s.MaxMessageBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDirectory(d DirectoryConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.URL == "" {
		errs = append(errs, "directory.url must not be empty when registration is enabled")
	}
	if d.OwnerID == "" {
		errs = append(errs, "directory.owner_id must not be empty when registration is enabled")
	}
	if d.Key == "" {
		errs = append(errs, "directory.key must not be empty when registration is enabled")
	}
	if d.CallbackURL == "" {
		errs = append(errs, "directory.callback_url must not be empty when registration is enabled")
	}
	if d.Timeout <= 0 {
		errs = append(errs, "directory.timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies
// environment variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with GAMEON_ prefix
	v.SetEnvPrefix("GAMEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper
// instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("nil viper instance")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9080)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.pong_timeout", "60s")
	v.SetDefault("server.max_message_bytes", 4096)

	v.SetDefault("directory.enabled", true)
	v.SetDefault("directory.url", "http://map:9080/map/v1/sites")
	v.SetDefault("directory.timeout", "15s")
	v.SetDefault("directory.insecure_skip_verify", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("room.file", "content/rooms/simpleroom.yaml")
}
