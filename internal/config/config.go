package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every environment-driven knob listed in spec.md §6.
type Config struct {
	Host       string
	Port       string
	LogDir     string
	StorageDir string
	DBURL      string
	LogLevel   string

	MaxWorkers    int
	MaxRetries    int
	MaxFileSizeMB int64
	AllowedExts   []string

	AllowedLangs       []string
	LangDetectMinProb  float64
	EnfrStrictReject   bool
	LangMidLower       float64
	LangMidUpper       float64
	LangMinStopwordEn  float64
	LangMinStopwordFr  float64
	LangStopwordMargin float64
	LangMinTokens      int
	LangMinTokensSpeech int
	LangMinStopwordSpeech float64

	SnippetMaxSeconds int
	ProbeDurationS    int

	StoreDriver string // "sqlite" or "postgres"

	ClusterConfigFile string
}

// MaxUploadBytes is MaxFileSizeMB converted to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// Load reads .env (if present) then the process environment via viper, with
// typed binding and defaults supplied through viper.SetDefault.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8088")
	v.SetDefault("LOG_DIR", "data/logs")
	v.SetDefault("STORAGE_DIR", "data/storage")
	v.SetDefault("DB_URL", "data/langid.db")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("MAX_WORKERS", 2)
	v.SetDefault("MAX_RETRIES", 2)
	v.SetDefault("MAX_FILE_SIZE_MB", 100)
	v.SetDefault("ALLOWED_EXTS", ".wav,.mp3,.m4a,.aac,.wave")

	v.SetDefault("ALLOWED_LANGS", "en,fr")
	v.SetDefault("LANG_DETECT_MIN_PROB", 0.60)
	v.SetDefault("ENFR_STRICT_REJECT", false)
	v.SetDefault("LANG_MID_LOWER", 0.60)
	v.SetDefault("LANG_MID_UPPER", 0.79)
	v.SetDefault("LANG_MIN_STOPWORD_EN", 0.15)
	v.SetDefault("LANG_MIN_STOPWORD_FR", 0.15)
	v.SetDefault("LANG_STOPWORD_MARGIN", 0.05)
	v.SetDefault("LANG_MIN_TOKENS", 10)
	v.SetDefault("LANG_MIN_TOKENS_SPEECH", 6)
	v.SetDefault("LANG_MIN_STOPWORD_SPEECH", 0.10)

	v.SetDefault("SNIPPET_MAX_SECONDS", 15)
	v.SetDefault("PROBE_DURATION_S", 30)

	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("CLUSTER_CONFIG_FILE", "")

	return &Config{
		Host:       v.GetString("HOST"),
		Port:       v.GetString("PORT"),
		LogDir:     v.GetString("LOG_DIR"),
		StorageDir: v.GetString("STORAGE_DIR"),
		DBURL:      v.GetString("DB_URL"),
		LogLevel:   v.GetString("LOG_LEVEL"),

		MaxWorkers:    v.GetInt("MAX_WORKERS"),
		MaxRetries:    v.GetInt("MAX_RETRIES"),
		MaxFileSizeMB: v.GetInt64("MAX_FILE_SIZE_MB"),
		AllowedExts:   splitCSV(v.GetString("ALLOWED_EXTS")),

		AllowedLangs:          splitCSV(v.GetString("ALLOWED_LANGS")),
		LangDetectMinProb:     v.GetFloat64("LANG_DETECT_MIN_PROB"),
		EnfrStrictReject:      v.GetBool("ENFR_STRICT_REJECT"),
		LangMidLower:          v.GetFloat64("LANG_MID_LOWER"),
		LangMidUpper:          v.GetFloat64("LANG_MID_UPPER"),
		LangMinStopwordEn:     v.GetFloat64("LANG_MIN_STOPWORD_EN"),
		LangMinStopwordFr:     v.GetFloat64("LANG_MIN_STOPWORD_FR"),
		LangStopwordMargin:    v.GetFloat64("LANG_STOPWORD_MARGIN"),
		LangMinTokens:         v.GetInt("LANG_MIN_TOKENS"),
		LangMinTokensSpeech:   v.GetInt("LANG_MIN_TOKENS_SPEECH"),
		LangMinStopwordSpeech: v.GetFloat64("LANG_MIN_STOPWORD_SPEECH"),

		SnippetMaxSeconds: v.GetInt("SNIPPET_MAX_SECONDS"),
		ProbeDurationS:    v.GetInt("PROBE_DURATION_S"),

		StoreDriver: v.GetString("STORE_DRIVER"),

		ClusterConfigFile: v.GetString("CLUSTER_CONFIG_FILE"),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExtAllowed reports whether ext (including the leading dot, lowercase) is
// in the configured allow-list.
func (c *Config) ExtAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range c.AllowedExts {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// LangAllowed reports whether lang is one of the configured target languages.
func (c *Config) LangAllowed(lang string) bool {
	for _, l := range c.AllowedLangs {
		if l == lang {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{storage=%s db=%s workers=%d strict_reject=%v}",
		c.StorageDir, c.DBURL, c.MaxWorkers, c.EnfrStrictReject)
}
