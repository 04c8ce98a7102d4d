package recognition

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/trace"
)

const (
	// MaxWidth is the widest raster sent to the engine.
	MaxWidth = 1600
	// MinBoxSide drops boxes narrower or shorter than this.
	MinBoxSide = 5
	// MaxHashDistance is the perceptual-hash Hamming distance above which
	// two frames are known to differ without comparing pixels.
	MaxHashDistance = 3

	debugFrameName = "debug_frame.png"
)

// Adapter prepares frames for an Engine and normalizes its output.
type Adapter struct {
	engine      Engine
	debugDir    string
	debugEvery  rate.Sometimes
	skipSimilar bool
	log         *slog.Logger

	mu          sync.Mutex
	lastHash    *goimagehash.ImageHash
	lastFrame   *capture.Frame
	lastLang    string
	lastRegions []Region
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDebugDir enables the once-per-second frame dump into dir.
func WithDebugDir(dir string) Option {
	return func(a *Adapter) { a.debugDir = dir }
}

// WithSimilaritySkip reuses the previous result when a frame is pixel-identical
// to the last recognized one.
func WithSimilaritySkip(on bool) Option {
	return func(a *Adapter) { a.skipSimilar = on }
}

func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{
		engine:     engine,
		debugEvery: rate.Sometimes{Interval: time.Second},
		log:        slog.Default().With("component", "recognition"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recognize returns the text regions of f with boxes in f's pixel space.
func (a *Adapter) Recognize(ctx context.Context, f *capture.Frame, lang string) ([]Region, error) {
	if f.Empty() {
		return nil, apperrors.New(apperrors.InvalidArgument, "empty frame")
	}
	if a.debugDir != "" {
		a.debugEvery.Do(func() { go a.dump(f) })
	}

	img := f.Image()
	hash, same := a.unchanged(f, img, lang)
	if same {
		a.log.Debug("skipping recognition for similar frame")
		return a.previous(), nil
	}

	raster, ratio := a.prepare(img)
	ctx, span := trace.StartSpan(ctx, "recognition.detect")
	span.SetAttr("width", raster.Width)
	dets, err := a.engine.Detect(ctx, raster, lang)
	span.Finish(err)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.RecognitionFailed, "engine detect")
	}

	regions := Postprocess(dets, ratio)
	a.remember(hash, f, lang, regions)
	return regions, nil
}

// Postprocess drops blank text, envelopes each quadrilateral, maps the box
// back to source pixels by dividing by ratio and drops boxes under 5x5.
func Postprocess(dets []Detection, ratio float64) []Region {
	if ratio <= 0 {
		ratio = 1
	}
	regions := make([]Region, 0, len(dets))
	for _, d := range dets {
		text := strings.TrimSpace(d.Text)
		if text == "" || len(d.Quad) == 0 {
			continue
		}
		box := envelope(d.Quad, ratio)
		if box.W < MinBoxSide || box.H < MinBoxSide {
			continue
		}
		regions = append(regions, Region{Text: text, Box: box, Lang: UnknownLang})
	}
	return regions
}

func envelope(quad []Point, ratio float64) Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range quad {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	x, y := int(minX/ratio), int(minY/ratio)
	return Box{X: x, Y: y, W: int(maxX/ratio) - x, H: int(maxY/ratio) - y}
}

// prepare downscales wide images and packs them in the engine's channel
// order. ratio is raster width over source width.
func (a *Adapter) prepare(img *image.RGBA) (Raster, float64) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	ratio := 1.0
	if w > MaxWidth {
		ratio = float64(MaxWidth) / float64(w)
		nh := max(int(float64(h)*ratio), 1)
		dst := image.NewRGBA(image.Rect(0, 0, MaxWidth, nh))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	return pack(img, a.engine.Order()), ratio
}

func pack(img *image.RGBA, order ChannelOrder) Raster {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	r := Raster{Width: w, Height: h, Order: order, Pix: make([]byte, w*h*3)}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		out := r.Pix[y*w*3:]
		for x := 0; x < w; x++ {
			if order == BGR {
				out[x*3], out[x*3+1], out[x*3+2] = row[x*4+2], row[x*4+1], row[x*4]
			} else {
				out[x*3], out[x*3+1], out[x*3+2] = row[x*4], row[x*4+1], row[x*4+2]
			}
		}
	}
	return r
}

// unchanged reports whether f matches the last recognized frame for the same
// language. The hash rules out most changed frames; the rest are compared
// pixel by pixel so a single new subtitle line still counts as a change.
func (a *Adapter) unchanged(f *capture.Frame, img image.Image, lang string) (*goimagehash.ImageHash, bool) {
	if !a.skipSimilar {
		return nil, false
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastHash == nil || a.lastFrame == nil || a.lastLang != lang {
		return hash, false
	}
	if dist, err := a.lastHash.Distance(hash); err != nil || dist > MaxHashDistance {
		return hash, false
	}
	last := a.lastFrame
	return hash, last.Width == f.Width && last.Height == f.Height && bytes.Equal(last.Pix, f.Pix)
}

func (a *Adapter) remember(hash *goimagehash.ImageHash, f *capture.Frame, lang string, regions []Region) {
	if !a.skipSimilar {
		return
	}
	snap := &capture.Frame{Width: f.Width, Height: f.Height, Pix: append([]byte(nil), f.Pix...)}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastHash = hash
	a.lastFrame = snap
	a.lastLang = lang
	a.lastRegions = regions
}

func (a *Adapter) previous() []Region {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Region(nil), a.lastRegions...)
}

// dump writes the frame for inspection. Failures are only logged.
func (a *Adapter) dump(f *capture.Frame) {
	if err := os.MkdirAll(a.debugDir, 0o755); err != nil {
		a.log.Debug("debug dir unavailable", "error", err)
		return
	}
	path := filepath.Join(a.debugDir, debugFrameName)
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		a.log.Debug("debug frame create failed", "error", err)
		return
	}
	err = png.Encode(out, f.Image())
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		a.log.Debug("debug frame write failed", "error", err)
		_ = os.Remove(tmp)
	}
}
