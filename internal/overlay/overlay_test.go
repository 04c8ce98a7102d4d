package overlay

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/GriffinCanCode/live-translate/internal/recognition"
)

func newCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	return c
}

func TestLayoutScalesAnchor(t *testing.T) {
	c := newCompositor(t)
	regions := []recognition.Region{{Text: "Hello", Box: recognition.Box{X: 100, Y: 100, W: 50, H: 20}}}

	got := c.Layout(regions, image.Pt(800, 600), image.Pt(1600, 300))
	if len(got) != 1 {
		t.Fatalf("got %d placements, want 1", len(got))
	}
	if got[0].X != 200 || got[0].Y != 50 {
		t.Errorf("anchor = (%d,%d), want (200,50)", got[0].X, got[0].Y)
	}
}

func TestLayoutIdentityScale(t *testing.T) {
	c := newCompositor(t)
	regions := []recognition.Region{{Text: "a", Box: recognition.Box{X: 37, Y: 411, W: 5, H: 5}}}

	got := c.Layout(regions, image.Pt(640, 480), image.Pt(640, 480))
	if got[0].X != 37 || got[0].Y != 411 {
		t.Errorf("anchor = (%d,%d), want (37,411)", got[0].X, got[0].Y)
	}
}

func TestLayoutPrefersTranslation(t *testing.T) {
	c := newCompositor(t)
	regions := []recognition.Region{
		{Text: "こんにちは", Translation: "Hello", Box: recognition.Box{W: 10, H: 10}},
		{Text: "untranslated", Box: recognition.Box{W: 10, H: 10}},
	}

	got := c.Layout(regions, image.Pt(100, 100), image.Pt(400, 400))
	if got[0].Text != "Hello" || got[1].Text != "untranslated" {
		t.Errorf("labels = %q, %q", got[0].Text, got[1].Text)
	}
}

func TestLayoutSizeFromTextNotBox(t *testing.T) {
	c := newCompositor(t)
	small := recognition.Region{Text: "Hi", Box: recognition.Box{W: 500, H: 300}}
	long := recognition.Region{Text: "a considerably longer label", Box: recognition.Box{W: 5, H: 5}}

	got := c.Layout([]recognition.Region{small, long}, image.Pt(1000, 1000), image.Pt(1000, 1000))
	if got[0].W >= got[1].W {
		t.Errorf("short label width %d should be below long label width %d", got[0].W, got[1].W)
	}
	if got[0].W >= 500 {
		t.Errorf("label width %d follows the recognized box", got[0].W)
	}
	if got[0].H != c.lineHeight+2*Padding {
		t.Errorf("single-line height = %d, want %d", got[0].H, c.lineHeight+2*Padding)
	}
}

func TestLayoutWrapsToSurfaceFraction(t *testing.T) {
	c := newCompositor(t)
	text := strings.Repeat("word ", 40)
	surface := image.Pt(300, 600)

	got := c.Layout([]recognition.Region{{Text: text}}, image.Pt(300, 600), surface)
	p := got[0]
	if len(p.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", len(p.Lines))
	}
	limit := int(float64(surface.X) * MaxWidthRatio)
	if p.W-2*Padding > limit {
		t.Errorf("text width %d exceeds %d", p.W-2*Padding, limit)
	}
	if p.H != len(p.Lines)*c.lineHeight+2*Padding {
		t.Errorf("height %d does not match %d lines", p.H, len(p.Lines))
	}
	if strings.Join(p.Lines, " ") != strings.TrimSpace(text) {
		t.Error("wrapping lost or reordered words")
	}
}

func TestWrapBreaksLongWord(t *testing.T) {
	c := newCompositor(t)
	word := strings.Repeat("x", 200)

	lines := c.wrap(word, 100)
	if len(lines) < 2 {
		t.Fatalf("long word not broken: %d line(s)", len(lines))
	}
	for _, l := range lines {
		if c.measure(l) > 100 {
			t.Errorf("piece %q measures %d > 100", l, c.measure(l))
		}
	}
	if strings.Join(lines, "") != word {
		t.Error("pieces do not reassemble the word")
	}
}

func TestLayoutHook(t *testing.T) {
	c := newCompositor(t)
	source := image.Pt(1000, 500)

	got := c.LayoutHook("  translated line ", source, image.Pt(2000, 1000))
	if len(got) != 1 {
		t.Fatalf("got %d placements, want 1", len(got))
	}
	if got[0].X != 100 || got[0].Y != 700 {
		t.Errorf("hook anchor = (%d,%d), want (100,700)", got[0].X, got[0].Y)
	}
	if got[0].Text != "translated line" {
		t.Errorf("hook text = %q", got[0].Text)
	}
	if c.LayoutHook("   ", source, source) != nil {
		t.Error("blank hook line should produce no placement")
	}

	r := HookRegion("x", source)
	if r.Box != (recognition.Box{X: 50, Y: 350, W: 900, H: 110}) {
		t.Errorf("HookRegion box = %+v", r.Box)
	}
}

func TestLayoutZeroSource(t *testing.T) {
	c := newCompositor(t)
	got := c.Layout([]recognition.Region{{Text: "a", Box: recognition.Box{X: 3, Y: 4}}}, image.Point{}, image.Pt(10, 10))
	if got[0].X != 30 || got[0].Y != 40 {
		t.Errorf("anchor = (%d,%d), want (30,40)", got[0].X, got[0].Y)
	}
}

func TestRenderDrawsBackground(t *testing.T) {
	c := newCompositor(t)
	dst := image.NewRGBA(image.Rect(0, 0, 200, 100))
	placements := c.Layout([]recognition.Region{{Text: "Hi", Box: recognition.Box{X: 10, Y: 10}}}, image.Pt(200, 100), image.Pt(200, 100))

	c.Render(dst, placements)

	// Padding corner is background only.
	got := dst.RGBAAt(11, 11)
	if got == (color.RGBA{}) {
		t.Error("label background not drawn")
	}
	if dst.RGBAAt(199, 99) != (color.RGBA{}) {
		t.Error("pixels outside labels should be untouched")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ffd700", color.NRGBA{255, 215, 0, 255}, false},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}, false},
		{"ffd700", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && FormatColor(got) != tt.in {
			t.Errorf("FormatColor(%v) = %q, want %q", got, FormatColor(got), tt.in)
		}
	}
}

func TestTextColor(t *testing.T) {
	c := newCompositor(t)
	regions := []recognition.Region{{Text: "Hello", Box: recognition.Box{X: 10, Y: 10}}}
	if got := c.Layout(regions, image.Pt(200, 100), image.Pt(200, 100)); got[0].Color != DefaultTextColor {
		t.Errorf("default color = %q, want %q", got[0].Color, DefaultTextColor)
	}

	red, err := NewCompositor(WithTextColor(color.NRGBA{255, 0, 0, 255}))
	if err != nil {
		t.Fatal(err)
	}
	placements := red.Layout(regions, image.Pt(200, 100), image.Pt(200, 100))
	if placements[0].Color != "#ff0000" {
		t.Errorf("color = %q, want #ff0000", placements[0].Color)
	}

	dst := image.NewRGBA(image.Rect(0, 0, 200, 100))
	red.Render(dst, placements)
	p := placements[0]
	var reddish bool
	for y := p.Y; y < p.Y+p.H && !reddish; y++ {
		for x := p.X; x < p.X+p.W; x++ {
			if px := dst.RGBAAt(x, y); px.R > 100 && px.G == 0 && px.B == 0 {
				reddish = true
				break
			}
		}
	}
	if !reddish {
		t.Error("label text not drawn in the configured colour")
	}

	red.SetTextColor(color.NRGBA{0, 0, 255, 255})
	if got := red.Layout(regions, image.Pt(200, 100), image.Pt(200, 100)); got[0].Color != "#0000ff" {
		t.Errorf("color after SetTextColor = %q, want #0000ff", got[0].Color)
	}
}
