// Package capture enumerates windows and grabs their pixels through an
// ordered list of platform strategies.
package capture

import (
	"context"
	"image"
	"log/slog"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

// Strategy is one way of obtaining a window's pixels.
type Strategy interface {
	Name() string
	// Resolve returns the target's rectangle in screen coordinates. An error
	// carrying TARGET_LOST means the window no longer exists.
	Resolve(ctx context.Context, t Target) (image.Rectangle, error)
	Grab(ctx context.Context, t Target, rect image.Rectangle) (*Frame, error)
}

// Platform bundles the native lister and strategy order chosen at startup.
type Platform interface {
	Lister
	Strategies() []Strategy
	Close() error
}

// Capturer tries strategies in order until one yields a valid frame.
type Capturer struct {
	strategies []Strategy
	log        *slog.Logger
}

func NewCapturer(strategies ...Strategy) *Capturer {
	return &Capturer{
		strategies: strategies,
		log:        slog.Default().With("component", "capture"),
	}
}

// Capture returns the first frame passing the validity heuristic. If none
// pass, the last non-empty frame is returned as best effort. With no frame at
// all the error is TARGET_LOST when every strategy reported the window gone,
// CAPTURE_UNAVAILABLE otherwise.
func (c *Capturer) Capture(ctx context.Context, t Target) (*Frame, error) {
	var last *Frame
	lost := 0

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rect, err := s.Resolve(ctx, t)
		if err != nil {
			if apperrors.IsCode(err, apperrors.TargetLost) {
				lost++
			}
			c.log.Debug("strategy could not resolve target", "strategy", s.Name(), "target", t.Handle(), "error", err)
			continue
		}

		f, err := s.Grab(ctx, t, rect)
		if err != nil {
			c.log.Debug("strategy grab failed", "strategy", s.Name(), "target", t.Handle(), "error", err)
			continue
		}
		if f.Empty() {
			continue
		}
		if f.LooksValid() {
			return f, nil
		}
		last = f
	}

	if last != nil {
		return last, nil
	}
	if len(c.strategies) > 0 && lost == len(c.strategies) {
		return nil, apperrors.New(apperrors.TargetLost, "window is gone").
			WithMetadata("target", t.Handle())
	}
	return nil, apperrors.New(apperrors.CaptureUnavailable, "no capture strategy produced a frame").
		WithMetadata("target", t.Handle())
}
