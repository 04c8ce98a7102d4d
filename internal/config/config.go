// Package config handles application configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
	"github.com/GriffinCanCode/live-translate/internal/translation"
)

// Interval bounds in milliseconds.
const (
	DefaultFrameIntervalMS       = 120
	MinFrameIntervalMS           = 60
	DefaultRecognitionIntervalMS = 1200
	MinRecognitionIntervalMS     = 500
)

type Config struct {
	HTTPAddr              string `yaml:"http_addr"`
	EngineAddr            string `yaml:"engine_addr"`
	FrameIntervalMS       int    `yaml:"frame_interval_ms"`
	RecognitionIntervalMS int    `yaml:"recognition_interval_ms"`
	RecognitionEnabled    bool   `yaml:"recognition_enabled"`
	SourceLang            string `yaml:"source_lang"`
	DestLang              string `yaml:"dest_lang"`
	SkipSimilarFrames     bool   `yaml:"skip_similar_frames"`
	TextColor             string `yaml:"text_color"`
	DebugDir              string `yaml:"debug_dir"`
	ExportPath            string `yaml:"export_path"`
	HookCommand           string `yaml:"hook_command"`
	RedisAddr             string `yaml:"redis_addr"`
	TranslateURL          string `yaml:"translate_url"`
	LogLevel              string `yaml:"log_level"`
	LogFile               string `yaml:"log_file"`
}

// Load reads .env (if present), the environment, and then the optional YAML
// file named by CONFIG_FILE. File values override the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:              getEnv("HTTP_ADDR", ":8000"),
		EngineAddr:            getEnv("ENGINE_ADDR", "localhost:50051"),
		FrameIntervalMS:       getEnvInt("FRAME_INTERVAL_MS", DefaultFrameIntervalMS),
		RecognitionIntervalMS: getEnvInt("RECOGNITION_INTERVAL_MS", DefaultRecognitionIntervalMS),
		RecognitionEnabled:    getEnvBool("RECOGNITION_ENABLED", true),
		SourceLang:            getEnv("SOURCE_LANG", "auto"),
		DestLang:              getEnv("DEST_LANG", "en"),
		SkipSimilarFrames:     getEnvBool("SKIP_SIMILAR_FRAMES", false),
		TextColor:             getEnv("OVERLAY_TEXT_COLOR", overlay.DefaultTextColor),
		DebugDir:              getEnv("DEBUG_DIR", ""),
		ExportPath:            getEnv("EXPORT_PATH", "translations.json"),
		HookCommand:           getEnv("HOOK_COMMAND", ""),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		TranslateURL:          getEnv("TRANSLATE_URL", translation.DefaultGoogleURL),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.Clamp()
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "read config file").WithMetadata("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "parse config file").WithMetadata("path", path)
	}
	return nil
}

// Clamp raises intervals below their minimum.
func (c *Config) Clamp() {
	c.FrameIntervalMS = max(c.FrameIntervalMS, MinFrameIntervalMS)
	c.RecognitionIntervalMS = max(c.RecognitionIntervalMS, MinRecognitionIntervalMS)
}

// Validate rejects unsupported language codes and a malformed text colour.
func (c *Config) Validate() error {
	if c.TextColor != "" {
		if _, err := overlay.ParseColor(c.TextColor); err != nil {
			return apperrors.Wrap(err, apperrors.ConfigInvalid, "invalid OVERLAY_TEXT_COLOR")
		}
	}
	return ValidateLanguages(c.SourceLang, c.DestLang)
}

// ValidateLanguages checks a translation pair. Destination may not be auto.
func ValidateLanguages(src, dst string) error {
	if !translation.Supported(src) {
		return apperrors.Newf(apperrors.ConfigInvalid, "unsupported source language %q", src)
	}
	if dst == translation.Auto || !translation.Supported(dst) {
		return apperrors.Newf(apperrors.ConfigInvalid, "unsupported destination language %q", dst)
	}
	return nil
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

func (c *Config) RecognitionInterval() time.Duration {
	return time.Duration(c.RecognitionIntervalMS) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1"
	}
	return def
}
