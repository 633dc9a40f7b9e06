package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ThemeAuto, cfg.Display.Theme)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60, cfg.Session.RefreshMarginSec)
	assert.Empty(t, cfg.Backend.URL)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `backend:
  url: https://example.supabase.co/
  anon_key: public-key
display:
  theme: Dark
session:
  refresh_margin_sec: 30
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co", cfg.Backend.URL)
	assert.Equal(t, "public-key", cfg.Backend.AnonKey)
	assert.Equal(t, ThemeDark, cfg.Display.Theme)
	assert.Equal(t, 30, cfg.Session.RefreshMarginSec)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: https://file.example\n  anon_key: k\n"), 0o600))

	t.Setenv("TODOSYNC_BACKEND_URL", "https://env.example")
	t.Setenv("TODOSYNC_DISPLAY_THEME", "light")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.Backend.URL)
	assert.Equal(t, "k", cfg.Backend.AnonKey)
	assert.Equal(t, ThemeLight, cfg.Display.Theme)
}

func TestValidate_RejectsUnknownTheme(t *testing.T) {
	cfg := &AppConfig{
		Backend: BackendConfig{URL: "https://x", AnonKey: "k"},
		Display: DisplayConfig{Theme: "sepia"},
	}
	assert.ErrorContains(t, cfg.Validate(), "display.theme")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &AppConfig{
		Backend: BackendConfig{URL: "https://saved.example", AnonKey: "saved-key"},
		Display: DisplayConfig{Theme: ThemeLight},
		Log:     LogConfig{Level: "debug", File: "/tmp/todosync.log"},
		Session: SessionConfig{RefreshMarginSec: 90},
	}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, ThemeLight, loaded.Display.Theme)
	assert.Equal(t, 90, loaded.Session.RefreshMarginSec)
}
