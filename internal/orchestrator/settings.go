package orchestrator

import (
	"time"

	"github.com/GriffinCanCode/live-translate/internal/config"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
	"github.com/GriffinCanCode/live-translate/internal/pipeline"
)

// Settings are the user-adjustable session options.
type Settings struct {
	FrameIntervalMS       int    `json:"frame_interval_ms"`
	RecognitionIntervalMS int    `json:"recognition_interval_ms"`
	RecognitionEnabled    bool   `json:"recognition_enabled"`
	SourceLang            string `json:"source_lang"`
	DestLang              string `json:"dest_lang"`
	HookMode              bool   `json:"hook_mode"`
	TextColor             string `json:"text_color"`
}

// NewSettings takes the startup values from cfg.
func NewSettings(cfg *config.Config) Settings {
	return Settings{
		FrameIntervalMS:       cfg.FrameIntervalMS,
		RecognitionIntervalMS: cfg.RecognitionIntervalMS,
		RecognitionEnabled:    cfg.RecognitionEnabled,
		SourceLang:            cfg.SourceLang,
		DestLang:              cfg.DestLang,
		TextColor:             cfg.TextColor,
	}
}

// Update is a partial change to Settings. Nil fields are left alone.
type Update struct {
	FrameIntervalMS       *int    `json:"frame_interval_ms,omitempty"`
	RecognitionIntervalMS *int    `json:"recognition_interval_ms,omitempty"`
	RecognitionEnabled    *bool   `json:"recognition_enabled,omitempty"`
	SourceLang            *string `json:"source_lang,omitempty"`
	DestLang              *string `json:"dest_lang,omitempty"`
	TextColor             *string `json:"text_color,omitempty"`
}

func (s Settings) apply(u Update) Settings {
	if u.FrameIntervalMS != nil {
		s.FrameIntervalMS = max(*u.FrameIntervalMS, config.MinFrameIntervalMS)
	}
	if u.RecognitionIntervalMS != nil {
		s.RecognitionIntervalMS = max(*u.RecognitionIntervalMS, config.MinRecognitionIntervalMS)
	}
	if u.RecognitionEnabled != nil {
		s.RecognitionEnabled = *u.RecognitionEnabled
	}
	if u.SourceLang != nil {
		s.SourceLang = *u.SourceLang
	}
	if u.DestLang != nil {
		s.DestLang = *u.DestLang
	}
	if u.TextColor != nil {
		s.TextColor = *u.TextColor
	}
	return s
}

func (s Settings) validate() error {
	if s.TextColor != "" {
		if _, err := overlay.ParseColor(s.TextColor); err != nil {
			return err
		}
	}
	return config.ValidateLanguages(s.SourceLang, s.DestLang)
}

// pipelineConfig is what a running pipeline is built from. Hook mode is not
// part of it; the gate covers that without a restart.
func (s Settings) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		FrameInterval:       time.Duration(s.FrameIntervalMS) * time.Millisecond,
		RecognitionInterval: time.Duration(s.RecognitionIntervalMS) * time.Millisecond,
		RecognitionEnabled:  s.RecognitionEnabled,
		SourceLang:          s.SourceLang,
		DestLang:            s.DestLang,
	}.Normalize()
}
