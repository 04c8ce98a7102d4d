//go:build linux

package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

type linuxPlatform struct{}

// Native returns the X11 platform: wmctrl for listing, ImageMagick import for
// window dumps, xwininfo for geometry.
func Native() Platform { return linuxPlatform{} }

func (linuxPlatform) Close() error { return nil }

func (linuxPlatform) Strategies() []Strategy {
	return []Strategy{
		x11DumpStrategy{},
		regionStrategy{resolve: xwininfoRect},
		displayStrategy{alive: func(ctx context.Context, t Target) error {
			_, err := xwininfoRect(ctx, t)
			return err
		}},
	}
}

// List parses `wmctrl -lp`: id, desktop, pid, host, title.
func (linuxPlatform) List(ctx context.Context) ([]Target, error) {
	out, err := run(ctx, "wmctrl", "-lp")
	if err != nil {
		return nil, err
	}
	return parseWmctrl(out), nil
}

func parseWmctrl(out []byte) []Target {
	var targets []Target
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 0, 64)
		if err != nil {
			continue
		}
		pid, _ := strconv.Atoi(fields[2])
		targets = append(targets, Target{ID: id, PID: pid, Title: strings.Join(fields[4:], " ")})
	}
	return targets
}

type x11DumpStrategy struct{}

func (x11DumpStrategy) Name() string { return "x11-window-dump" }

func (x11DumpStrategy) Resolve(ctx context.Context, t Target) (image.Rectangle, error) {
	return xwininfoRect(ctx, t)
}

func (x11DumpStrategy) Grab(ctx context.Context, t Target, _ image.Rectangle) (*Frame, error) {
	out, err := run(ctx, "import", "-silent", "-window", t.Handle(), "png:-")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode window dump: %w", err)
	}
	return FromImage(img), nil
}

func xwininfoRect(ctx context.Context, t Target) (image.Rectangle, error) {
	out, err := run(ctx, "xwininfo", "-id", t.Handle())
	if err != nil {
		if bytes.Contains(out, []byte("BadWindow")) || strings.Contains(err.Error(), "BadWindow") {
			return image.Rectangle{}, apperrors.Wrap(err, apperrors.TargetLost, "window is gone")
		}
		return image.Rectangle{}, err
	}
	return parseXwininfo(out)
}

func parseXwininfo(out []byte) (image.Rectangle, error) {
	vals := map[string]int{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		switch key {
		case "Absolute upper-left X", "Absolute upper-left Y", "Width", "Height":
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err == nil {
				vals[key] = n
			}
		}
	}
	w, okW := vals["Width"]
	h, okH := vals["Height"]
	if !okW || !okH {
		return image.Rectangle{}, fmt.Errorf("xwininfo output has no geometry")
	}
	x, y := vals["Absolute upper-left X"], vals["Absolute upper-left Y"]
	return image.Rect(x, y, x+w, y+h), nil
}

// run executes an external tool, folding stderr into the error.
func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return stderr.Bytes(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
