// Package geometry converts rectangles between the pixel space of a rendered
// page and the resolution-independent percentage space used on the wire.
package geometry

import (
	"errors"
	"math"
)

// MinRegionPx is the smallest width or height, in pixels, a drawn region may
// have. Anything smaller is treated as an accidental click.
const MinRegionPx = 20.0

var (
	// ErrRegionTooSmall is returned for pixel boxes below MinRegionPx.
	ErrRegionTooSmall = errors.New("region smaller than minimum size")
	// ErrInvalidPage is returned when the page dimensions are not positive.
	ErrInvalidPage = errors.New("page dimensions must be positive")
)

// BoundingBox is a rectangle in percent of the page dimensions (0-100).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelBox is a rectangle in pixels of the currently rendered page. Values are
// not snapped to integers.
type PixelBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Point is a pointer position in page pixels.
type Point struct {
	X float64
	Y float64
}

// Acceptable reports whether px is large enough to be emitted as a region.
func Acceptable(px PixelBox) bool {
	return px.Width >= MinRegionPx && px.Height >= MinRegionPx
}

// ToPercent normalizes a pixel box against the page it was drawn on.
func ToPercent(px PixelBox, pageW, pageH float64) (BoundingBox, error) {
	if !(pageW > 0) || !(pageH > 0) {
		return BoundingBox{}, ErrInvalidPage
	}
	if !Acceptable(px) {
		return BoundingBox{}, ErrRegionTooSmall
	}
	return BoundingBox{
		X:      px.X / pageW * 100,
		Y:      px.Y / pageH * 100,
		Width:  px.Width / pageW * 100,
		Height: px.Height / pageH * 100,
	}, nil
}

// ToPixels maps a percentage box onto a page of the given pixel size.
func ToPixels(b BoundingBox, pageW, pageH float64) (PixelBox, error) {
	if !(pageW > 0) || !(pageH > 0) {
		return PixelBox{}, ErrInvalidPage
	}
	return PixelBox{
		X:      b.X * pageW / 100,
		Y:      b.Y * pageH / 100,
		Width:  b.Width * pageW / 100,
		Height: b.Height * pageH / 100,
	}, nil
}

// RectFromPoints returns the rectangle spanned by a drag from a to b, with the
// origin always at the top-left corner whatever the drag direction.
func RectFromPoints(a, b Point) PixelBox {
	return PixelBox{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// ClampPoint keeps p inside a page of size w x h.
func ClampPoint(p Point, w, h float64) Point {
	return Point{
		X: math.Max(0, math.Min(p.X, w)),
		Y: math.Max(0, math.Min(p.Y, h)),
	}
}

// Valid reports whether b describes a non-empty rectangle inside the page.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Width <= 0 || b.Height <= 0 || b.X < 0 || b.Y < 0 {
		return false
	}
	const eps = 1e-9
	return b.X+b.Width <= 100+eps && b.Y+b.Height <= 100+eps
}

// Clamp trims b so it lies within the page.
func (b BoundingBox) Clamp() BoundingBox {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(100, b.X+b.Width)
	y1 := math.Min(100, b.Y+b.Height)
	return BoundingBox{X: x0, Y: y0, Width: math.Max(0, x1-x0), Height: math.Max(0, y1-y0)}
}

// Contains reports whether the pixel point p lies inside px.
func (px PixelBox) Contains(p Point) bool {
	return p.X >= px.X && p.X <= px.X+px.Width && p.Y >= px.Y && p.Y <= px.Y+px.Height
}
