// Package resilience provides fault tolerance patterns for the engine and
// translation provider boundaries.
package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Recognition engine: a dead engine should stop being called quickly,
	// recognition ticks are slow anyway.
	EngineThreshold         = 3
	EngineResetTimeout      = 10 * time.Second
	EngineHalfOpenSuccesses = 1

	// Translation provider: tolerate flaky responses longer before opening.
	TranslateThreshold         = 8
	TranslateResetTimeout      = 20 * time.Second
	TranslateHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // appears in state-change logs
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns general-purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// EngineConfig returns settings for the recognition engine client.
func EngineConfig() Config {
	return Config{
		Name:              "recognition-engine",
		Threshold:         EngineThreshold,
		ResetTimeout:      EngineResetTimeout,
		HalfOpenSuccesses: EngineHalfOpenSuccesses,
	}
}

// TranslateConfig returns settings for the translation provider.
func TranslateConfig() Config {
	return Config{
		Name:              "translation-provider",
		Threshold:         TranslateThreshold,
		ResetTimeout:      TranslateResetTimeout,
		HalfOpenSuccesses: TranslateHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
