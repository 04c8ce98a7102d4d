// Package recognition turns captured frames into text regions using an
// external recognition engine.
package recognition

import (
	"context"
	"fmt"
)

// ChannelOrder is the byte order an engine expects for each pixel.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

func (o ChannelOrder) String() string {
	if o == BGR {
		return "bgr"
	}
	return "rgb"
}

// Raster is a packed 3-channel image handed to an engine.
type Raster struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []byte
}

// Point is a vertex of a detection quadrilateral in raster pixels.
type Point struct {
	X, Y float64
}

// Detection is one raw engine result.
type Detection struct {
	Text  string
	Quad  []Point
	Score float64
}

// Engine detects text in a raster. lang is a hint and may be "auto".
type Engine interface {
	Order() ChannelOrder
	Detect(ctx context.Context, r Raster, lang string) ([]Detection, error)
}

// Box is an axis-aligned rectangle in source-frame pixels.
type Box struct {
	X, Y, W, H int
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b Box) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "[%d,%d,%d,%d]", b.X, b.Y, b.W, b.H), nil
}

// Scale maps the box by independent x and y factors.
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		X: int(float64(b.X) * sx),
		Y: int(float64(b.Y) * sy),
		W: int(float64(b.W) * sx),
		H: int(float64(b.H) * sy),
	}
}

// UnknownLang marks a region whose language was not detected.
const UnknownLang = "unknown"

// Region is recognized text positioned on the source frame.
type Region struct {
	Text        string `json:"text"`
	Box         Box    `json:"bbox"`
	Lang        string `json:"lang"`
	Translation string `json:"translation"`
}

// Label is the text an overlay shows: the translation when present.
func (r Region) Label() string {
	if r.Translation != "" {
		return r.Translation
	}
	return r.Text
}
