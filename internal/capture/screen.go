//go:build windows || linux

package capture

import (
	"context"
	"image"

	"github.com/kbinani/screenshot"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

// rectFunc resolves a target's on-screen rectangle.
type rectFunc func(ctx context.Context, t Target) (image.Rectangle, error)

// regionStrategy grabs the screen area the window occupies. It sees whatever
// is on top of the window but works where window DCs come back black.
type regionStrategy struct {
	resolve rectFunc
}

func (s regionStrategy) Name() string { return "screen-region" }

func (s regionStrategy) Resolve(ctx context.Context, t Target) (image.Rectangle, error) {
	r, err := s.resolve(ctx, t)
	if err != nil {
		return r, err
	}
	if r.Empty() {
		return r, apperrors.New(apperrors.CaptureUnavailable, "window has no visible area")
	}
	return r, nil
}

func (s regionStrategy) Grab(_ context.Context, _ Target, rect image.Rectangle) (*Frame, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// displayStrategy grabs the whole primary display as a last resort. Resolve
// still checks the window exists so a closed target reports TARGET_LOST.
type displayStrategy struct {
	alive func(ctx context.Context, t Target) error
}

func (s displayStrategy) Name() string { return "full-display" }

func (s displayStrategy) Resolve(ctx context.Context, t Target) (image.Rectangle, error) {
	if err := s.alive(ctx, t); err != nil {
		return image.Rectangle{}, err
	}
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, apperrors.New(apperrors.CaptureUnavailable, "no active display")
	}
	return screenshot.GetDisplayBounds(0), nil
}

func (s displayStrategy) Grab(_ context.Context, _ Target, rect image.Rectangle) (*Frame, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}
