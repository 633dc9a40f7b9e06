package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Theme names accepted by display.theme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// envPrefix is prepended to every environment override, e.g.
// TODOSYNC_BACKEND_URL for backend.url.
const envPrefix = "TODOSYNC"

// BackendConfig locates the hosted auth and table service.
type BackendConfig struct {
	// URL is the project root, e.g. https://abc.supabase.co.
	URL string `mapstructure:"url" yaml:"url"`

	// AnonKey is the public API key sent as the apikey header.
	AnonKey string `mapstructure:"anon_key" yaml:"anon_key"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// SessionConfig tunes session refresh.
type SessionConfig struct {
	// RefreshMarginSec is how long before expiry the access token is
	// refreshed.
	RefreshMarginSec int `mapstructure:"refresh_margin_sec" yaml:"refresh_margin_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todosync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "todosync", "config.yaml")
}

// DefaultLogPath returns ~/.local/state/todosync/todosync.log.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "todosync.log"
	}
	return filepath.Join(home, ".local", "state", "todosync", "todosync.log")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Display: DisplayConfig{Theme: ThemeAuto},
		Log: LogConfig{
			Level: "info",
			File:  DefaultLogPath(),
		},
		Session: SessionConfig{RefreshMarginSec: 60},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// after loading a .env file from the working directory if one exists.
// TODOSYNC_* environment variables override file values. If the file does
// not exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	def := defaultAppConfig()
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("session.refresh_margin_sec", def.Session.RefreshMarginSec)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	cfg.Display.Theme = strings.ToLower(strings.TrimSpace(cfg.Display.Theme))
	if cfg.Session.RefreshMarginSec <= 0 {
		cfg.Session.RefreshMarginSec = def.Session.RefreshMarginSec
	}

	return cfg, nil
}

// Validate reports configuration that makes the client unusable.
func (c *AppConfig) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is not set (config file or %s_BACKEND_URL)", envPrefix)
	}
	if c.Backend.AnonKey == "" {
		return fmt.Errorf("backend.anon_key is not set (config file or %s_BACKEND_ANON_KEY)", envPrefix)
	}
	switch c.Display.Theme {
	case ThemeAuto, ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("display.theme must be one of auto, dark, light; got %q", c.Display.Theme)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("session", cfg.Session)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
