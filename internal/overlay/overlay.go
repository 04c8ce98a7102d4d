// Package overlay maps translated text regions from source-frame pixels onto
// a display surface of arbitrary size and word-wraps their labels.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
)

const (
	PointSize     = 13
	DPI           = 96
	Padding       = 6
	MaxWidthRatio = 0.6
)

// Hook line box, as fractions of the source frame.
const (
	hookX = 0.05
	hookY = 0.70
	hookW = 0.90
	hookH = 0.22
)

// DefaultTextColor is the label colour unless configured otherwise.
const DefaultTextColor = "#ffd700"

var labelBackground = color.NRGBA{0, 0, 0, 160}

// ParseColor reads "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("want #rrggbb or #rrggbbaa")
	}
	if err != nil {
		return color.NRGBA{}, apperrors.Wrap(err, apperrors.InvalidArgument, "bad colour").WithMetadata("color", s)
	}
	return c, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Placement is one label positioned in display-surface pixels. X and Y are
// the scaled anchor; W and H include padding on both sides.
type Placement struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	W     int      `json:"w"`
	H     int      `json:"h"`
	Color string   `json:"color"`
}

// Compositor lays out labels using a fixed face. Safe for concurrent use.
type Compositor struct {
	mu         sync.Mutex
	face       font.Face
	lineHeight int
	ascent     int
	text       color.NRGBA
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithTextColor sets the label text colour.
func WithTextColor(c color.NRGBA) Option {
	return func(comp *Compositor) { comp.text = c }
}

func NewCompositor(opts ...Option) (*Compositor, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "parse overlay font")
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: PointSize, DPI: DPI, Hinting: font.HintingFull})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "create overlay face")
	}
	m := face.Metrics()
	def, _ := ParseColor(DefaultTextColor)
	c := &Compositor{face: face, lineHeight: m.Height.Ceil(), ascent: m.Ascent.Ceil(), text: def}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTextColor changes the colour of labels laid out or rendered afterwards.
func (c *Compositor) SetTextColor(col color.NRGBA) {
	c.mu.Lock()
	c.text = col
	c.mu.Unlock()
}

func (c *Compositor) TextColor() color.NRGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Layout positions one label per region. The region box only supplies the
// anchor; label size comes from the wrapped text.
func (c *Compositor) Layout(regions []recognition.Region, source, surface image.Point) []Placement {
	sx, sy := scale(source, surface)
	maxWidth := int(float64(surface.X) * MaxWidthRatio)

	c.mu.Lock()
	defer c.mu.Unlock()

	hex := FormatColor(c.text)
	out := make([]Placement, 0, len(regions))
	for _, r := range regions {
		text := r.Label()
		if text == "" {
			continue
		}
		lines := c.wrap(text, maxWidth)
		w, h := c.extent(lines)
		anchor := r.Box.Scale(sx, sy)
		out = append(out, Placement{
			Text:  text,
			Lines: lines,
			X:     anchor.X,
			Y:     anchor.Y,
			W:     w + 2*Padding,
			H:     h + 2*Padding,
			Color: hex,
		})
	}
	return out
}

// LayoutHook positions the most recent hooked line in the lower band of the
// frame.
func (c *Compositor) LayoutHook(line string, source, surface image.Point) []Placement {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return c.Layout([]recognition.Region{HookRegion(line, source)}, source, surface)
}

// HookRegion returns the region a hooked line occupies in a frame of the
// given size.
func HookRegion(line string, source image.Point) recognition.Region {
	return recognition.Region{
		Text: line,
		Box: recognition.Box{
			X: int(float64(source.X) * hookX),
			Y: int(float64(source.Y) * hookY),
			W: int(float64(source.X) * hookW),
			H: int(float64(source.Y) * hookH),
		},
		Lang:        recognition.UnknownLang,
		Translation: line,
	}
}

// Render draws placements onto dst.
func (c *Compositor) Render(dst draw.Image, placements []Placement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bg := image.NewUniform(labelBackground)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c.text), Face: c.face}
	for _, p := range placements {
		rect := image.Rect(p.X, p.Y, p.X+p.W, p.Y+p.H)
		draw.Draw(dst, rect, bg, image.Point{}, draw.Over)
		for i, line := range p.Lines {
			d.Dot = fixed.P(p.X+Padding, p.Y+Padding+c.ascent+i*c.lineHeight)
			d.DrawString(line)
		}
	}
}

func scale(source, surface image.Point) (float64, float64) {
	return float64(surface.X) / float64(max(1, source.X)), float64(surface.Y) / float64(max(1, source.Y))
}

func (c *Compositor) extent(lines []string) (int, int) {
	w := 0
	for _, l := range lines {
		w = max(w, c.measure(l))
	}
	return w, len(lines) * c.lineHeight
}

func (c *Compositor) measure(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

// wrap breaks text at word boundaries so no line exceeds maxWidth. Explicit
// newlines are kept. A word wider than maxWidth is broken between runes.
func (c *Compositor) wrap(text string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		cur := ""
		for _, word := range words {
			candidate := word
			if cur != "" {
				candidate = cur + " " + word
			}
			if c.measure(candidate) <= maxWidth {
				cur = candidate
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = ""
			for _, piece := range c.breakWord(word, maxWidth) {
				if cur != "" {
					lines = append(lines, cur)
				}
				cur = piece
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

func (c *Compositor) breakWord(word string, maxWidth int) []string {
	if c.measure(word) <= maxWidth {
		return []string{word}
	}
	var pieces []string
	var b strings.Builder
	for _, r := range word {
		if b.Len() > 0 && c.measure(b.String()+string(r)) > maxWidth {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
