package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, "8088", cfg.Port)
	require.Equal(t, 2, cfg.MaxWorkers)
	require.ElementsMatch(t, []string{"en", "fr"}, cfg.AllowedLangs)
	require.False(t, cfg.EnfrStrictReject)
	require.Equal(t, "sqlite", cfg.StoreDriver)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_WORKERS", "7")
	t.Setenv("ENFR_STRICT_REJECT", "true")
	t.Setenv("ALLOWED_EXTS", ".wav, .mp3 ,")

	cfg := Load()
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 7, cfg.MaxWorkers)
	require.True(t, cfg.EnfrStrictReject)
	require.Equal(t, []string{".wav", ".mp3"}, cfg.AllowedExts)
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := &Config{MaxFileSizeMB: 5}
	require.Equal(t, int64(5*1024*1024), cfg.MaxUploadBytes())
}

func TestExtAllowed(t *testing.T) {
	cfg := &Config{AllowedExts: []string{".wav", ".mp3"}}
	require.True(t, cfg.ExtAllowed(".WAV"))
	require.False(t, cfg.ExtAllowed(".ogg"))
}

func TestLangAllowed(t *testing.T) {
	cfg := &Config{AllowedLangs: []string{"en", "fr"}}
	require.True(t, cfg.LangAllowed("en"))
	require.False(t, cfg.LangAllowed("de"))
}

