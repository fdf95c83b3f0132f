// Package selector implements the region drawing surface laid over a rendered
// statement page. Pointer events produce at most one normalized bounding box
// per completed drag.
package selector

import "github.com/jwulff/stmtimport/internal/geometry"

// Surface is the drawing state for one rendered page. The zero value is a
// disabled surface with no page.
type Surface struct {
	pageW, pageH float64
	enabled      bool

	capturing bool
	anchor    geometry.Point
	current   geometry.Point
}

// New returns a surface for a page of the given pixel size.
func New(pageW, pageH float64) Surface {
	return Surface{pageW: pageW, pageH: pageH}
}

// PageSize returns the pixel size of the page the surface covers.
func (s Surface) PageSize() (float64, float64) { return s.pageW, s.pageH }

// Resize points the surface at a newly rendered page. Any capture in progress
// is dropped since its coordinates belong to the old page.
func (s Surface) Resize(pageW, pageH float64) Surface {
	s.pageW, s.pageH = pageW, pageH
	s.capturing = false
	return s
}

// Enabled reports whether pointer events are being captured.
func (s Surface) Enabled() bool { return s.enabled }

// SetEnabled turns drawing on or off. Disabling discards any capture.
func (s Surface) SetEnabled(on bool) Surface {
	s.enabled = on
	if !on {
		s.capturing = false
	}
	return s
}

// Capturing reports whether a drag is in progress.
func (s Surface) Capturing() bool { return s.capturing }

// Pending returns the in-progress rectangle, if any.
func (s Surface) Pending() (geometry.PixelBox, bool) {
	if !s.capturing {
		return geometry.PixelBox{}, false
	}
	return geometry.RectFromPoints(s.anchor, s.current), true
}

// PointerDown starts a capture at p. Presses off the page are ignored.
func (s Surface) PointerDown(p geometry.Point) Surface {
	if !s.enabled || s.pageW <= 0 || s.pageH <= 0 {
		return s
	}
	if !(geometry.PixelBox{Width: s.pageW, Height: s.pageH}).Contains(p) {
		return s
	}
	s.capturing = true
	s.anchor = p
	s.current = p
	return s
}

// PointerMove extends the capture to p.
func (s Surface) PointerMove(p geometry.Point) Surface {
	if !s.enabled || !s.capturing {
		return s
	}
	s.current = geometry.ClampPoint(p, s.pageW, s.pageH)
	return s
}

// PointerUp finishes the capture at p. The returned box is nil when nothing
// was being captured or the rectangle is below the minimum size.
func (s Surface) PointerUp(p geometry.Point) (Surface, *geometry.BoundingBox) {
	if !s.enabled || !s.capturing {
		return s, nil
	}
	s.current = geometry.ClampPoint(p, s.pageW, s.pageH)
	rect := geometry.RectFromPoints(s.anchor, s.current)
	s.capturing = false

	box, err := geometry.ToPercent(rect, s.pageW, s.pageH)
	if err != nil {
		return s, nil
	}
	return s, &box
}

// Cancel drops any capture in progress without emitting.
func (s Surface) Cancel() Surface {
	s.capturing = false
	return s
}
