package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

var envKeys = []string{
	"HTTP_ADDR", "ENGINE_ADDR", "FRAME_INTERVAL_MS", "RECOGNITION_INTERVAL_MS",
	"RECOGNITION_ENABLED", "SOURCE_LANG", "DEST_LANG", "SKIP_SIMILAR_FRAMES",
	"DEBUG_DIR", "EXPORT_PATH", "HOOK_COMMAND", "REDIS_ADDR", "TRANSLATE_URL",
	"LOG_LEVEL", "LOG_FILE", "CONFIG_FILE", "OVERLAY_TEXT_COLOR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir()) // keep a stray .env out of the test
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
	}
	if cfg.FrameIntervalMS != 120 || cfg.RecognitionIntervalMS != 1200 {
		t.Errorf("intervals = %d/%d, want 120/1200", cfg.FrameIntervalMS, cfg.RecognitionIntervalMS)
	}
	if !cfg.RecognitionEnabled {
		t.Error("recognition should default on")
	}
	if cfg.SkipSimilarFrames {
		t.Error("similar-frame skip should default off")
	}
	if cfg.TextColor != "#ffd700" {
		t.Errorf("TextColor = %q, want #ffd700", cfg.TextColor)
	}
	if cfg.SourceLang != "auto" || cfg.DestLang != "en" {
		t.Errorf("langs = %s->%s, want auto->en", cfg.SourceLang, cfg.DestLang)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_ADDR", "ocr:50051")
	t.Setenv("FRAME_INTERVAL_MS", "200")
	t.Setenv("RECOGNITION_ENABLED", "false")
	t.Setenv("SOURCE_LANG", "ja")
	t.Setenv("DEST_LANG", "de")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EngineAddr != "ocr:50051" {
		t.Errorf("EngineAddr = %q", cfg.EngineAddr)
	}
	if cfg.FrameInterval().Milliseconds() != 200 {
		t.Errorf("FrameInterval = %v, want 200ms", cfg.FrameInterval())
	}
	if cfg.RecognitionEnabled {
		t.Error("RecognitionEnabled should be false")
	}
	if cfg.SourceLang != "ja" || cfg.DestLang != "de" {
		t.Errorf("langs = %s->%s, want ja->de", cfg.SourceLang, cfg.DestLang)
	}
}

func TestLoadClampsIntervals(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRAME_INTERVAL_MS", "10")
	t.Setenv("RECOGNITION_INTERVAL_MS", "100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FrameIntervalMS != MinFrameIntervalMS {
		t.Errorf("FrameIntervalMS = %d, want %d", cfg.FrameIntervalMS, MinFrameIntervalMS)
	}
	if cfg.RecognitionIntervalMS != MinRecognitionIntervalMS {
		t.Errorf("RecognitionIntervalMS = %d, want %d", cfg.RecognitionIntervalMS, MinRecognitionIntervalMS)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "translate.yaml")
	data := []byte("dest_lang: fr\nrecognition_interval_ms: 2000\nredis_addr: localhost:6379\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEST_LANG", "de")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DestLang != "fr" {
		t.Errorf("DestLang = %q, want fr from file", cfg.DestLang)
	}
	if cfg.RecognitionIntervalMS != 2000 {
		t.Errorf("RecognitionIntervalMS = %d, want 2000", cfg.RecognitionIntervalMS)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("Load() error = %v, want CONFIG_INVALID", err)
	}
}

func TestLoadTextColor(t *testing.T) {
	clearEnv(t)
	t.Setenv("OVERLAY_TEXT_COLOR", "#00ffcc")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TextColor != "#00ffcc" {
		t.Errorf("TextColor = %q, want #00ffcc", cfg.TextColor)
	}

	t.Setenv("OVERLAY_TEXT_COLOR", "gold")
	if _, err := Load(); !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("Load() error = %v, want CONFIG_INVALID", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		src, dst string
		ok       bool
	}{
		{"auto source", "auto", "en", true},
		{"chinese variants", "zh-CN", "zh-TW", true},
		{"auto destination", "en", "auto", false},
		{"unknown source", "klingon", "en", false},
		{"unknown destination", "en", "xx", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{SourceLang: tt.src, DestLang: tt.dst}
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !apperrors.IsCode(err, apperrors.ConfigInvalid) {
				t.Errorf("Validate() code = %s, want CONFIG_INVALID", apperrors.CodeOf(err))
			}
		})
	}
}
