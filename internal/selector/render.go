package selector

import "github.com/jwulff/stmtimport/internal/geometry"

// OpKind identifies a draw call.
type OpKind int

const (
	OpImage OpKind = iota
	OpRect
	OpLabel
)

// Stroke is the outline style of a rectangle.
type Stroke int

const (
	StrokeSolid Stroke = iota
	StrokeDashed
)

// DrawOp is one draw call in page pixel coordinates. Which fields are set
// depends on Kind.
type DrawOp struct {
	Kind   OpKind
	Rect   geometry.PixelBox
	Stroke Stroke
	Fill   bool // translucent fill
	Active bool // in-progress rectangle
	Text   string
}

// Region is a previously captured area shown as a labeled overlay.
type Region struct {
	Label string
	Box   geometry.BoundingBox
}

// Frame is everything needed to draw the surface once.
type Frame struct {
	PageW, PageH float64
	HasImage     bool
	Regions      []Region
	Pending      *geometry.PixelBox
}

// Frame builds a render frame from the surface state and regions.
func (s Surface) Frame(hasImage bool, regions []Region) Frame {
	f := Frame{PageW: s.pageW, PageH: s.pageH, HasImage: hasImage, Regions: regions}
	if r, ok := s.Pending(); ok {
		f.Pending = &r
	}
	return f
}

// Render describes a full redraw of the surface: the base image, every
// region with its label, then the in-progress rectangle on top.
func Render(f Frame) []DrawOp {
	ops := make([]DrawOp, 0, 2+2*len(f.Regions))
	if f.HasImage {
		ops = append(ops, DrawOp{
			Kind: OpImage,
			Rect: geometry.PixelBox{Width: f.PageW, Height: f.PageH},
		})
	}
	for _, r := range f.Regions {
		px, err := geometry.ToPixels(r.Box, f.PageW, f.PageH)
		if err != nil {
			continue
		}
		ops = append(ops,
			DrawOp{Kind: OpRect, Rect: px, Stroke: StrokeSolid},
			DrawOp{Kind: OpLabel, Rect: px, Text: r.Label},
		)
	}
	if f.Pending != nil {
		ops = append(ops, DrawOp{
			Kind:   OpRect,
			Rect:   *f.Pending,
			Stroke: StrokeDashed,
			Fill:   true,
			Active: true,
		})
	}
	return ops
}
