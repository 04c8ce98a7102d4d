package capture

import (
	"context"
	"errors"
	"image"
	"testing"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

type fakeStrategy struct {
	name       string
	resolveErr error
	grabErr    error
	frame      *Frame
	grabs      int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Resolve(context.Context, Target) (image.Rectangle, error) {
	if f.resolveErr != nil {
		return image.Rectangle{}, f.resolveErr
	}
	return image.Rect(0, 0, 4, 4), nil
}

func (f *fakeStrategy) Grab(context.Context, Target, image.Rectangle) (*Frame, error) {
	f.grabs++
	return f.frame, f.grabErr
}

func blackFrame(w, h int) *Frame { return NewFrame(w, h) }

func noisyFrame(w, h int) *Frame {
	f := NewFrame(w, h)
	for i := range f.Pix {
		if i%2 == 0 {
			f.Pix[i] = 255
		}
	}
	return f
}

var target = Target{ID: 0x1234, Title: "Game"}

func TestCaptureRejectsBlackFrame(t *testing.T) {
	black := &fakeStrategy{name: "bitblt", frame: blackFrame(8, 8)}
	good := &fakeStrategy{name: "region", frame: noisyFrame(8, 8)}

	f, err := NewCapturer(black, good).Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if f != good.frame {
		t.Error("Capture() should skip the all-black frame and use the next strategy")
	}
}

func TestCaptureReturnsFirstValid(t *testing.T) {
	first := &fakeStrategy{name: "bitblt", frame: noisyFrame(4, 4)}
	second := &fakeStrategy{name: "region", frame: noisyFrame(4, 4)}

	f, err := NewCapturer(first, second).Capture(context.Background(), target)
	if err != nil || f != first.frame {
		t.Fatalf("Capture() = (%p, %v), want first frame", f, err)
	}
	if second.grabs != 0 {
		t.Error("later strategies should not run after a valid frame")
	}
}

func TestCaptureFallsBackToLastNonNil(t *testing.T) {
	a := &fakeStrategy{name: "a", frame: blackFrame(4, 4)}
	b := &fakeStrategy{name: "b", frame: blackFrame(6, 6)}
	c := &fakeStrategy{name: "c", grabErr: errors.New("boom")}

	f, err := NewCapturer(a, b, c).Capture(context.Background(), target)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if f != b.frame {
		t.Error("Capture() should return the last non-nil frame as best effort")
	}
}

func TestCaptureSkipsEmptyFrames(t *testing.T) {
	empty := &fakeStrategy{name: "empty", frame: &Frame{Width: 0, Height: 10}}

	f, err := NewCapturer(empty).Capture(context.Background(), target)
	if f != nil {
		t.Errorf("Capture() returned zero-size frame %+v", f)
	}
	if !apperrors.IsCode(err, apperrors.CaptureUnavailable) {
		t.Errorf("error = %v, want CAPTURE_UNAVAILABLE", err)
	}
}

func TestCaptureTargetLost(t *testing.T) {
	gone := apperrors.New(apperrors.TargetLost, "window is gone")
	a := &fakeStrategy{name: "a", resolveErr: gone}
	b := &fakeStrategy{name: "b", resolveErr: gone}

	_, err := NewCapturer(a, b).Capture(context.Background(), target)
	if !apperrors.IsCode(err, apperrors.TargetLost) {
		t.Errorf("error = %v, want TARGET_LOST", err)
	}
}

func TestCaptureMixedFailuresUnavailable(t *testing.T) {
	a := &fakeStrategy{name: "a", resolveErr: apperrors.New(apperrors.TargetLost, "gone")}
	b := &fakeStrategy{name: "b", grabErr: errors.New("grab failed")}

	_, err := NewCapturer(a, b).Capture(context.Background(), target)
	if !apperrors.IsCode(err, apperrors.CaptureUnavailable) {
		t.Errorf("error = %v, want CAPTURE_UNAVAILABLE", err)
	}
}

func TestCaptureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeStrategy{name: "a", frame: noisyFrame(4, 4)}

	if _, err := NewCapturer(s).Capture(ctx, target); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
