//go:build darwin

package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

// listScript prints on-screen windows as JSON using CoreGraphics from JXA.
const listScript = `ObjC.import('CoreGraphics');
var opts = $.kCGWindowListOptionOnScreenOnly | $.kCGWindowListExcludeDesktopElements;
var info = ObjC.deepUnwrap(ObjC.castRefToObject($.CGWindowListCopyWindowInfo(opts, $.kCGNullWindowID)));
JSON.stringify((info || []).map(function (w) {
  var b = w.kCGWindowBounds || {};
  return {id: w.kCGWindowNumber, pid: w.kCGWindowOwnerPID, owner: w.kCGWindowOwnerName || '',
          name: w.kCGWindowName || '', x: b.X || 0, y: b.Y || 0, w: b.Width || 0, h: b.Height || 0};
}));`

type cgWindow struct {
	ID    uint64  `json:"id"`
	PID   int     `json:"pid"`
	Owner string  `json:"owner"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

type darwinPlatform struct{ tempDir string }

// Native returns the macOS platform: screencapture of the window id, then
// of the main display.
func Native() Platform {
	dir, err := os.MkdirTemp("", "live-translate-capture-*")
	if err != nil {
		dir = os.TempDir()
	}
	return &darwinPlatform{tempDir: dir}
}

func (p *darwinPlatform) Close() error {
	return os.RemoveAll(p.tempDir)
}

func (p *darwinPlatform) Strategies() []Strategy {
	return []Strategy{
		screencaptureStrategy{name: "cg-window", dir: p.tempDir, window: true, resolve: p.windowRect},
		screencaptureStrategy{name: "full-display", dir: p.tempDir, resolve: p.windowRect},
	}
}

func (p *darwinPlatform) windows(ctx context.Context) ([]cgWindow, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-l", "JavaScript", "-e", listScript).Output()
	if err != nil {
		return nil, fmt.Errorf("osascript: %w", err)
	}
	var wins []cgWindow
	if err := json.Unmarshal(bytes.TrimSpace(out), &wins); err != nil {
		return nil, fmt.Errorf("decode window list: %w", err)
	}
	return wins, nil
}

// List prefixes window names with their owning application. Untitled
// windows are left for Enumerate to filter.
func (p *darwinPlatform) List(ctx context.Context) ([]Target, error) {
	wins, err := p.windows(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(wins))
	for _, w := range wins {
		title := w.Name
		if title != "" && w.Owner != "" && !strings.Contains(title, w.Owner) {
			title = w.Owner + " - " + title
		}
		targets = append(targets, Target{ID: w.ID, PID: w.PID, Title: title})
	}
	return targets, nil
}

func (p *darwinPlatform) windowRect(ctx context.Context, t Target) (image.Rectangle, error) {
	wins, err := p.windows(ctx)
	if err != nil {
		return image.Rectangle{}, err
	}
	for _, w := range wins {
		if w.ID == t.ID {
			x, y := int(w.X), int(w.Y)
			return image.Rect(x, y, x+int(w.W), y+int(w.H)), nil
		}
	}
	return image.Rectangle{}, apperrors.New(apperrors.TargetLost, "window is gone")
}

type screencaptureStrategy struct {
	name    string
	dir     string
	window  bool
	resolve func(ctx context.Context, t Target) (image.Rectangle, error)
}

func (s screencaptureStrategy) Name() string { return s.name }

func (s screencaptureStrategy) Resolve(ctx context.Context, t Target) (image.Rectangle, error) {
	return s.resolve(ctx, t)
}

func (s screencaptureStrategy) Grab(ctx context.Context, t Target, _ image.Rectangle) (*Frame, error) {
	file := filepath.Join(s.dir, s.name+".png")
	defer os.Remove(file)

	// -x: no sound, -o: no window shadow, -m: main display only
	args := []string{"-x", "-t", "png"}
	if s.window {
		args = append(args, "-o", "-l", strconv.FormatUint(t.ID, 10))
	} else {
		args = append(args, "-m")
	}
	cmd := exec.CommandContext(ctx, "screencapture", append(args, file)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode screencapture: %w", err)
	}
	return FromImage(img), nil
}
