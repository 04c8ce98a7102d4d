package capture

import (
	"image"
	"image/draw"
)

// Frame is an RGB raster, 3 bytes per pixel, row-major from the top-left.
// A published frame is never mutated.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame allocates a zeroed frame.
func NewFrame(w, h int) *Frame {
	return &Frame{Width: w, Height: h, Pix: make([]byte, w*h*3)}
}

// Empty reports whether the frame has no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*3
}

// FromImage copies img into a new RGB frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return fromPacked(rgba.Pix, rgba.Stride, b.Dx(), b.Dy(), 0, 1, 2)
}

// FromBGRA converts a top-down 32-bit BGRA buffer (GDI, CoreGraphics) to RGB.
func FromBGRA(buf []byte, w, h int) *Frame {
	return fromPacked(buf, w*4, w, h, 2, 1, 0)
}

func fromPacked(src []byte, stride, w, h, r, g, b int) *Frame {
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		row := src[y*stride:]
		out := f.Pix[y*w*3:]
		for x := 0; x < w; x++ {
			out[x*3] = row[x*4+r]
			out[x*3+1] = row[x*4+g]
			out[x*3+2] = row[x*4+b]
		}
	}
	return f
}

// Image returns the frame as an opaque RGBA image.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// MinVariance is the channel-value variance below which a frame is treated
// as a blank or black grab.
const MinVariance = 50.0

// Variance returns the population variance of every channel byte.
func (f *Frame) Variance() float64 {
	n := float64(len(f.Pix))
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range f.Pix {
		x := float64(v)
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	return sumSq/n - mean*mean
}

// LooksValid applies the validity heuristic: non-empty and not near-uniform.
func (f *Frame) LooksValid() bool {
	return !f.Empty() && f.Variance() >= MinVariance
}
