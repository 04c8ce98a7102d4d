// Package pipeline schedules frame capture and text recognition for one
// attached window.
package pipeline

import "time"

const (
	DefaultFrameInterval       = 120 * time.Millisecond
	MinFrameInterval           = 60 * time.Millisecond
	DefaultRecognitionInterval = 1200 * time.Millisecond
	MinRecognitionInterval     = 500 * time.Millisecond

	// StopTimeout is added to the longest interval when waiting for workers.
	StopTimeout = 2 * time.Second

	// EventBuffer is the capacity of the events channel.
	EventBuffer = 16

	// TranslateWorkers bounds concurrent translations per recognition tick.
	TranslateWorkers = 4
)

// Config is immutable for the lifetime of a Pipeline. Reconfiguring means
// stopping the pipeline and starting a new one.
type Config struct {
	FrameInterval       time.Duration
	RecognitionInterval time.Duration
	RecognitionEnabled  bool
	SourceLang          string
	DestLang            string
}

// Normalize fills zero values with defaults and clamps intervals to their minimums.
func (c Config) Normalize() Config {
	if c.FrameInterval == 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.RecognitionInterval == 0 {
		c.RecognitionInterval = DefaultRecognitionInterval
	}
	c.FrameInterval = max(c.FrameInterval, MinFrameInterval)
	c.RecognitionInterval = max(c.RecognitionInterval, MinRecognitionInterval)
	if c.SourceLang == "" {
		c.SourceLang = "auto"
	}
	if c.DestLang == "" {
		c.DestLang = "en"
	}
	return c
}

// stopBound is how long Stop waits for both workers.
func (c Config) stopBound() time.Duration {
	return max(c.FrameInterval, c.RecognitionInterval) + StopTimeout
}
